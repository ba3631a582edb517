package keys

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/gpio-buttons/internal/button"
)

// Relauncher is a button.Sink that (re)starts a command whenever its
// trigger button is pressed. An instance it started earlier that is still
// running is killed first, so at most one runs at a time.
type Relauncher struct {
	trigger string
	args    []string
	log     *zap.SugaredLogger

	mu     sync.Mutex
	cur    *exec.Cmd
	exited chan struct{}
}

// NewRelauncher creates a Relauncher for trigger. command is split on
// whitespace; no shell is involved.
func NewRelauncher(trigger, command string, log *zap.SugaredLogger) (*Relauncher, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return &Relauncher{trigger: trigger, args: args, log: log}, nil
}

// Notify restarts the command on a PRESSED event for the trigger button.
func (r *Relauncher) Notify(e button.Event) {
	if e.Type != button.EventPressed || e.Button != r.trigger {
		return
	}
	if err := r.Restart(); err != nil {
		r.log.Warnw("relaunch failed", "command", r.args[0], "error", err)
	}
}

// Restart kills the running instance, if any, and starts a new one.
func (r *Relauncher) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()

	cmd := exec.Command(r.args[0], r.args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.args[0], err)
	}
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		r.log.Debugw("command exited", "pid", cmd.Process.Pid, "error", err)
		close(exited)
	}()
	r.cur, r.exited = cmd, exited
	r.log.Infow("command started", "command", r.args[0], "pid", cmd.Process.Pid)
	return nil
}

// Pid returns the process id of the running instance, or 0.
func (r *Relauncher) Pid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return 0
	}
	select {
	case <-r.exited:
		return 0
	default:
		return r.cur.Process.Pid
	}
}

// Stop kills the running instance, if any, and waits for it to exit.
func (r *Relauncher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Relauncher) stopLocked() {
	if r.cur == nil {
		return
	}
	select {
	case <-r.exited:
	default:
		if err := r.cur.Process.Kill(); err != nil {
			r.log.Warnw("kill failed", "pid", r.cur.Process.Pid, "error", err)
		}
		<-r.exited
	}
	r.cur, r.exited = nil, nil
}
