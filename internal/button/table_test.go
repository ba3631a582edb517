package button

import (
	"testing"

	"github.com/sweeney/gpio-buttons/internal/gpio"
)

func TestDefaultTable(t *testing.T) {
	want := map[string]int{
		"DOWN":      23,
		"UP":        24,
		"LEFT":      16,
		"RIGHT":     26,
		"ENTER":     27,
		"BACKSPACE": 5,
		"ESCAPE":    6,
	}
	if len(DefaultTable) != len(want) {
		t.Fatalf("expected %d buttons, got %d", len(want), len(DefaultTable))
	}
	for _, s := range DefaultTable {
		if want[s.Name] != s.Pin {
			t.Errorf("%s: got pin %d, want %d", s.Name, s.Pin, want[s.Name])
		}
	}
	if DefaultTable[0].Name != "DOWN" || DefaultTable[6].Name != "ESCAPE" {
		t.Error("default table order changed")
	}
}

func TestParseTable(t *testing.T) {
	specs, err := ParseTable("down=23, UP=24,,ESCAPE = 6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Spec{{"DOWN", 23}, {"UP", 24}, {"ESCAPE", 6}}
	if len(specs) != len(want) {
		t.Fatalf("expected %d specs, got %d", len(want), len(specs))
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("spec %d: got %+v, want %+v", i, specs[i], want[i])
		}
	}
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no equals", "DOWN"},
		{"empty name", "=23"},
		{"bad pin", "DOWN=x"},
		{"negative pin", "DOWN=-1"},
		{"duplicate name", "DOWN=23,down=24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTable(tt.input); err == nil {
				t.Errorf("ParseTable(%q): expected error", tt.input)
			}
		})
	}
}

func TestParseTableDuplicatePinAllowed(t *testing.T) {
	specs, err := ParseTable("A=23,B=23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 2 {
		t.Errorf("expected 2 specs, got %d", len(specs))
	}
}

func TestFormatTableDefault(t *testing.T) {
	got := FormatTable(DefaultTable)
	want := "DOWN=23,UP=24,LEFT=16,RIGHT=26,ENTER=27,BACKSPACE=5,ESCAPE=6"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	specs, err := ParseTable(got)
	if err != nil {
		t.Fatalf("parse formatted table: %v", err)
	}
	if len(specs) != len(DefaultTable) {
		t.Errorf("expected %d specs, got %d", len(DefaultTable), len(specs))
	}
}

func TestRegistry(t *testing.T) {
	chip := gpio.NewFakeChip()
	r := NewRegistry()

	l1, _ := chip.Acquire(23)
	l2, _ := chip.Acquire(24)

	if _, err := r.Add(Spec{"DOWN", 23}, l1); err != nil {
		t.Fatalf("add DOWN: %v", err)
	}
	if _, err := r.Add(Spec{"UP", 24}, l2); err != nil {
		t.Fatalf("add UP: %v", err)
	}
	if _, err := r.Add(Spec{"OTHER", 23}, l1); err != gpio.ErrInUse {
		t.Errorf("duplicate pin: got %v, want ErrInUse", err)
	}
	if _, err := r.Add(Spec{"UP", 5}, l1); err != gpio.ErrInUse {
		t.Errorf("duplicate name: got %v, want ErrInUse", err)
	}

	if !r.Claimed(23) || r.Claimed(5) {
		t.Error("Claimed reports wrong pins")
	}
	h, ok := r.Get("UP")
	if !ok || h.Spec.Pin != 24 {
		t.Errorf("Get(UP): got %+v, %v", h, ok)
	}

	handles := r.Handles()
	if len(handles) != 2 || handles[0].Spec.Name != "DOWN" {
		t.Errorf("Handles: unexpected order %+v", handles)
	}

	drained := r.Drain()
	if len(drained) != 2 {
		t.Errorf("Drain: got %d, want 2", len(drained))
	}
	if r.Len() != 0 || r.Claimed(23) {
		t.Error("registry should be empty after Drain")
	}
	if len(r.Drain()) != 0 {
		t.Error("second Drain should return nothing")
	}
}
