package keymap

import (
	"strings"
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func TestTranslateCuratedLabels(t *testing.T) {
	cases := []struct {
		code  evdev.EvCode
		label string
	}{
		{evdev.KEY_A, "A"},
		{evdev.KEY_LEFTCTRL, "Ctrl"},
		{evdev.KEY_RIGHTCTRL, "Ctrl"},
		{evdev.KEY_RIGHTALT, "AltGr"},
		{evdev.KEY_LEFTMETA, "Super"},
		{evdev.KEY_ESC, "Esc"},
		{evdev.KEY_SPACE, "Space"},
	}
	for _, tc := range cases {
		got := Translate(tc.code)
		if got.Label != tc.label {
			t.Errorf("Translate(%d): expected %q, got %q", tc.code, tc.label, got.Label)
		}
		if got.Code != tc.code {
			t.Errorf("Translate(%d): code not preserved, got %d", tc.code, got.Code)
		}
		if got.IsUnknown() {
			t.Errorf("Translate(%d): unexpectedly unknown", tc.code)
		}
	}
}

func TestTranslateFallsBackToEvdevName(t *testing.T) {
	// Not in the curated table, but known to evdev.
	got := Translate(evdev.KEY_PROG1)
	if got.IsUnknown() {
		t.Fatalf("expected evdev-name fallback, got sentinel")
	}
	if got.Label == "" || strings.HasPrefix(got.Label, "KEY_") {
		t.Fatalf("fallback label not stripped: %q", got.Label)
	}
}

func TestTranslateUnknownCodeYieldsSentinel(t *testing.T) {
	got := Translate(evdev.EvCode(0x2ff + 100))
	if !got.IsUnknown() {
		t.Fatalf("expected Unknown sentinel, got %+v", got)
	}
	if got.Label != UnknownLabel {
		t.Fatalf("sentinel label mismatch: %q", got.Label)
	}
}

func TestTranslateIsTotal(t *testing.T) {
	// Every code in and beyond the key code space yields a labeled Key.
	for code := evdev.EvCode(0); code < 0x300; code++ {
		got := Translate(code)
		if got.Label == "" {
			t.Fatalf("Translate(%d) produced an empty label", code)
		}
		if got.Code != code {
			t.Fatalf("Translate(%d) lost the code: %d", code, got.Code)
		}
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	for code := evdev.EvCode(0); code < 0x300; code++ {
		if Translate(code) != Translate(code) {
			t.Fatalf("Translate(%d) is not stable", code)
		}
	}
}

func TestIsModifier(t *testing.T) {
	modifiers := []evdev.EvCode{
		evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL,
		evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT,
		evdev.KEY_LEFTALT, evdev.KEY_RIGHTALT,
		evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA,
	}
	for _, code := range modifiers {
		if !IsModifier(code) {
			t.Errorf("expected %d to be a modifier", code)
		}
		if !Translate(code).Modifier {
			t.Errorf("Translate(%d).Modifier is false", code)
		}
	}

	// Lock and ordinary keys are not modifiers: they latch or print, they
	// are not held as part of a chord.
	for _, code := range []evdev.EvCode{evdev.KEY_CAPSLOCK, evdev.KEY_A, evdev.KEY_ENTER, evdev.KEY_F5} {
		if IsModifier(code) {
			t.Errorf("%d must not be a modifier", code)
		}
	}
}

func TestFromName(t *testing.T) {
	code, ok := FromName("KEY_CAPSLOCK")
	if !ok || code != evdev.KEY_CAPSLOCK {
		t.Fatalf("FromName(KEY_CAPSLOCK) = %d, %v", code, ok)
	}
	if _, ok := FromName("KEY_DOES_NOT_EXIST"); ok {
		t.Fatal("FromName accepted a bogus name")
	}
}
