package keys

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/bendahl/uinput"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/gpio-buttons/internal/button"
)

func ev(name string, typ button.EventType) button.Event {
	return button.Event{Button: name, Type: typ}
}

func TestDefaultKeymapCoversDefaultTable(t *testing.T) {
	for _, spec := range button.DefaultTable {
		if _, ok := DefaultKeymap[spec.Name]; !ok {
			t.Errorf("no key for %s", spec.Name)
		}
	}
	if DefaultKeymap["ESCAPE"] != uinput.KeyEsc {
		t.Errorf("ESCAPE: got %d, want KEY_ESC", DefaultKeymap["ESCAPE"])
	}
	if DefaultKeymap["DOWN"] != uinput.KeyDown {
		t.Errorf("DOWN: got %d, want KEY_DOWN", DefaultKeymap["DOWN"])
	}
}

func TestInjectorPressAndRelease(t *testing.T) {
	kb := NewFakeKeyboard()
	in := NewInjector(kb, DefaultKeymap, zaptest.NewLogger(t).Sugar())

	in.Notify(ev("ENTER", button.EventPressed))
	in.Notify(ev("ENTER", button.EventHeld))
	in.Notify(ev("ENTER", button.EventHeld))
	in.Notify(ev("ENTER", button.EventReleased))

	want := []Stroke{
		{Key: uinput.KeyEnter, Down: true},
		{Key: uinput.KeyEnter},
	}
	got := kb.Strokes()
	if len(got) != len(want) {
		t.Fatalf("strokes: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stroke %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInjectorIgnoresUnmappedButton(t *testing.T) {
	kb := NewFakeKeyboard()
	in := NewInjector(kb, DefaultKeymap, zaptest.NewLogger(t).Sugar())

	in.Notify(ev("SELECT", button.EventPressed))
	in.Notify(ev("SELECT", button.EventReleased))

	if len(kb.Strokes()) != 0 {
		t.Errorf("expected no strokes, got %+v", kb.Strokes())
	}
	if in.Mapped("SELECT") || !in.Mapped("UP") {
		t.Error("Mapped disagrees with keymap")
	}
}

func TestInjectorRepressSendsFreshStroke(t *testing.T) {
	kb := NewFakeKeyboard()
	in := NewInjector(kb, DefaultKeymap, zaptest.NewLogger(t).Sugar())

	// Two overlapping hold tasks each end with a RELEASED.
	in.Notify(ev("UP", button.EventPressed))
	in.Notify(ev("UP", button.EventPressed))
	in.Notify(ev("UP", button.EventReleased))
	in.Notify(ev("UP", button.EventReleased))

	want := []Stroke{
		{Key: uinput.KeyUp, Down: true},
		{Key: uinput.KeyUp},
		{Key: uinput.KeyUp, Down: true},
		{Key: uinput.KeyUp},
	}
	got := kb.Strokes()
	if len(got) != len(want) {
		t.Fatalf("strokes: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stroke %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInjectorKeyDownErrorNotHeld(t *testing.T) {
	kb := NewFakeKeyboard()
	kb.DownError = errors.New("write failed")
	in := NewInjector(kb, DefaultKeymap, zaptest.NewLogger(t).Sugar())

	in.Notify(ev("LEFT", button.EventPressed))
	in.Notify(ev("LEFT", button.EventReleased))

	if len(kb.Strokes()) != 0 {
		t.Errorf("a failed key down must not be released, got %+v", kb.Strokes())
	}
}

func TestInjectorCloseReleasesHeldKeys(t *testing.T) {
	kb := NewFakeKeyboard()
	in := NewInjector(kb, DefaultKeymap, zaptest.NewLogger(t).Sugar())

	in.Notify(ev("RIGHT", button.EventPressed))
	in.Notify(ev("BACKSPACE", button.EventPressed))
	if err := in.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	in.Notify(ev("DOWN", button.EventPressed))

	want := []Stroke{
		{Key: uinput.KeyRight, Down: true},
		{Key: uinput.KeyBackspace, Down: true},
		{Key: uinput.KeyBackspace},
		{Key: uinput.KeyRight},
	}
	got := kb.Strokes()
	if len(got) != len(want) {
		t.Fatalf("strokes: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stroke %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	if !kb.IsClosed() {
		t.Error("keyboard not closed")
	}
	if err := in.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func requireSleep(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestNewRelauncherEmptyCommand(t *testing.T) {
	if _, err := NewRelauncher("ESCAPE", "  ", zaptest.NewLogger(t).Sugar()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestRelauncherRestartsOnTrigger(t *testing.T) {
	requireSleep(t)
	r, err := NewRelauncher("ESCAPE", "sleep 30", zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)

	r.Notify(ev("ENTER", button.EventPressed))
	r.Notify(ev("ESCAPE", button.EventHeld))
	if r.Pid() != 0 {
		t.Fatal("only a trigger press may start the command")
	}

	r.Notify(ev("ESCAPE", button.EventPressed))
	first := r.Pid()
	if first == 0 {
		t.Fatal("command not started")
	}

	r.Notify(ev("ESCAPE", button.EventPressed))
	second := r.Pid()
	if second == 0 || second == first {
		t.Fatalf("expected a new instance, pids %d then %d", first, second)
	}
	if alive(first) {
		t.Errorf("previous instance %d still running", first)
	}

	r.Stop()
	if r.Pid() != 0 || alive(second) {
		t.Error("Stop left the command running")
	}
}

func TestRelauncherNoticesExit(t *testing.T) {
	requireSleep(t)
	r, err := NewRelauncher("ESCAPE", "sleep 0", zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Restart(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.Pid() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("exit not observed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
}

func TestRelauncherStartError(t *testing.T) {
	r, err := NewRelauncher("ESCAPE", "/nonexistent/game_console", zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Restart(); err == nil {
		t.Error("expected start error")
	}
	if r.Pid() != 0 {
		t.Error("no instance should be running")
	}
}
