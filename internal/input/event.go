// Package input discovers keyboard devices and captures their raw key
// events.
//
// One Listener goroutine runs per open device, all feeding a single shared
// channel owned by a Capture. Within one device, events reach the channel
// in read order; no ordering is promised across devices.
package input

import (
	"encoding/binary"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// Action is the kind of a raw key event.
type Action uint8

// Actions, matching the kernel's input_event value field.
const (
	ActionUp Action = iota
	ActionDown
	ActionRepeat
)

// String returns the string representation of the Action.
func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// RawEvent is one semantic key event read from a device. Produced by a
// Listener and consumed exactly once by the key state engine.
type RawEvent struct {
	// Device is the event node path the event was read from.
	Device string

	// Code is the raw evdev key code.
	Code evdev.EvCode

	// Action is down, up, or repeat.
	Action Action

	// Time is the monotonic read timestamp.
	Time time.Time
}

// input_event on 64-bit Linux: two 64-bit time fields, type, code, value.
const eventSize = 24

const (
	evKey = uint16(evdev.EV_KEY)

	valueUp     = 0
	valueDown   = 1
	valueRepeat = 2
)

// decodeEvents parses complete input_event records from buf and appends
// the EV_KEY ones to dst. Non-key records and unrecognized values are
// skipped. Trailing partial records are ignored; the kernel delivers whole
// records per read.
func decodeEvents(dst []RawEvent, device string, buf []byte, now time.Time) []RawEvent {
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		typ := binary.LittleEndian.Uint16(buf[off+16 : off+18])
		if typ != evKey {
			continue
		}
		code := evdev.EvCode(binary.LittleEndian.Uint16(buf[off+18 : off+20]))
		value := int32(binary.LittleEndian.Uint32(buf[off+20 : off+24]))

		var action Action
		switch value {
		case valueDown:
			action = ActionDown
		case valueUp:
			action = ActionUp
		case valueRepeat:
			action = ActionRepeat
		default:
			continue
		}

		dst = append(dst, RawEvent{
			Device: device,
			Code:   code,
			Action: action,
			Time:   now,
		})
	}
	return dst
}
