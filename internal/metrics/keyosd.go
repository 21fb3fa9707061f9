package metrics

// Keyosd holds all keyosd-specific metrics.
type Keyosd struct {
	registry *Registry

	// Counters
	EventsDown        *Counter
	EventsUp          *Counter
	EventsRepeat      *Counter
	EvictionsCapacity *Counter
	EvictionsTimeout  *Counter
	ListenerErrors    *Counter
	Notifications     *Counter

	// Gauges
	DevicesActive *Gauge
	KeysVisible   *Gauge
}

// NewKeyosd registers the keyosd metric set in registry.
func NewKeyosd(registry *Registry) *Keyosd {
	return &Keyosd{
		registry: registry,

		EventsDown: registry.Counter("keyosd_events_down_total",
			"Key press events consumed by the engine"),
		EventsUp: registry.Counter("keyosd_events_up_total",
			"Key release events consumed by the engine"),
		EventsRepeat: registry.Counter("keyosd_events_repeat_total",
			"Key repeat events consumed by the engine"),
		EvictionsCapacity: registry.Counter("keyosd_evictions_capacity_total",
			"Visible keys evicted by the capacity bound"),
		EvictionsTimeout: registry.Counter("keyosd_evictions_timeout_total",
			"Visible keys evicted by the decay sweep"),
		ListenerErrors: registry.Counter("keyosd_listener_errors_total",
			"Device listeners that exited on error"),
		Notifications: registry.Counter("keyosd_notifications_total",
			"State-change snapshots published to subscribers"),

		DevicesActive: registry.Gauge("keyosd_devices_active",
			"Keyboard devices currently being listened to"),
		KeysVisible: registry.Gauge("keyosd_keys_visible",
			"Keys currently in the visible set"),
	}
}

// Registry returns the registry the metric set is bound to.
func (m *Keyosd) Registry() *Registry {
	return m.registry
}
