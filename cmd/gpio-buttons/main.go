// Command gpio-buttons reports presses and holds of push-buttons wired to GPIO
// lines, optionally publishing them to MQTT and a live status page, and
// optionally typing them on a virtual keyboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/gpio-buttons/internal/button"
	"github.com/sweeney/gpio-buttons/internal/gpio"
	"github.com/sweeney/gpio-buttons/internal/keys"
	"github.com/sweeney/gpio-buttons/internal/mqtt"
	"github.com/sweeney/gpio-buttons/internal/status"
	"github.com/sweeney/gpio-buttons/internal/web"
)

// statusInterval is how often the MQTT connection state is refreshed for
// the status page.
const statusInterval = 5 * time.Second

type config struct {
	chip         string
	specs        []button.Spec
	holdInterval time.Duration
	broker       string
	heartbeat    time.Duration
	httpAddr     string
	uinput       string
	onEscape     string
	printState   bool
}

// platform is what run needs from the machine it runs on.
type platform struct {
	openChip     func(name string) (gpio.Chip, error)
	openKeyboard func(path string) (keys.Keyboard, error)
	stdout       io.Writer
	signals      <-chan os.Signal
}

func main() {
	chip := flag.String("chip", gpio.DefaultChip, "GPIO character device")
	pins := flag.String("pins", button.FormatTable(button.DefaultTable), "Button table as NAME=PIN,... (BCM numbering)")
	hold := flag.Duration("hold-interval", button.DefaultHoldInterval, "Interval between hold notifications")
	broker := flag.String("broker", "", "MQTT broker address, e.g. tcp://localhost:1883 (empty to disable)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "MQTT heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", "", "HTTP status address, e.g. :8080 (empty to disable)")
	uinputPath := flag.String("uinput", "", "uinput device for key injection, e.g. "+keys.DefaultDevice+" (empty to disable)")
	onEscape := flag.String("on-escape", "", "Command to (re)start when ESCAPE is pressed (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current button states and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	logger := newLogger(*debug, os.Stderr)
	defer logger.Sync()
	log := logger.Sugar()

	specs, err := button.ParseTable(*pins)
	if err != nil {
		log.Fatalf("invalid -pins: %v", err)
	}
	if *hold <= 0 {
		log.Fatalf("invalid -hold-interval: %v", *hold)
	}
	if *heartbeat < 0 {
		log.Fatalf("invalid -heartbeat: %v", *heartbeat)
	}

	cfg := config{
		chip:         *chip,
		specs:        specs,
		holdInterval: *hold,
		broker:       *broker,
		heartbeat:    *heartbeat,
		httpAddr:     *httpAddr,
		uinput:       *uinputPath,
		onEscape:     *onEscape,
		printState:   *printState,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	p := platform{
		openChip:     openRealChip,
		openKeyboard: keys.OpenKeyboard,
		stdout:       os.Stdout,
		signals:      sigCh,
	}
	if err := run(cfg, p, log); err != nil {
		log.Fatalw("fatal", "error", err)
	}
}

func openRealChip(name string) (gpio.Chip, error) {
	c, err := gpio.NewRealChip(name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newLogger builds the diagnostic logger. Button status lines go to stdout
// separately; diagnostics go to w.
func newLogger(debug bool, w io.Writer) *zap.Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func run(cfg config, p platform, log *zap.SugaredLogger) error {
	chip, err := p.openChip(cfg.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:           cfg.chip,
		Pins:           button.FormatTable(cfg.specs),
		HoldIntervalMs: cfg.holdInterval.Milliseconds(),
		Broker:         cfg.broker,
		HTTPAddr:       cfg.httpAddr,
	})
	sinks := []button.Sink{tracker}
	live := !cfg.printState

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
		forwarder  *mqtt.Forwarder
	)
	if cfg.broker != "" && live {
		rp := mqtt.NewRealPublisher(cfg.broker, log.Named("mqtt"))
		defer rp.Close()
		publisher, mqttStatus = rp, rp
		forwarder = mqtt.NewForwarder(rp, log.Named("mqtt"), 256)
		sinks = append(sinks, forwarder)
	}

	var srv *web.Server
	if cfg.httpAddr != "" && live {
		hub := web.NewHub(log.Named("web"))
		srv = web.New(cfg.httpAddr, tracker, hub)
		sinks = append(sinks, hub)
	}

	if cfg.uinput != "" && live {
		kb, err := p.openKeyboard(cfg.uinput)
		if err != nil {
			return fmt.Errorf("init keys: %w", err)
		}
		injector := keys.NewInjector(kb, keys.DefaultKeymap, log.Named("keys"))
		defer injector.Close()
		for _, spec := range cfg.specs {
			if !injector.Mapped(spec.Name) {
				log.Warnw("no key for button", "button", spec.Name)
			}
		}
		sinks = append(sinks, injector)
	}

	if cfg.onEscape != "" && live {
		relauncher, err := keys.NewRelauncher("ESCAPE", cfg.onEscape, log.Named("relaunch"))
		if err != nil {
			return fmt.Errorf("invalid -on-escape: %w", err)
		}
		sinks = append(sinks, relauncher)
	}

	mon := button.NewMonitor(chip, button.Options{
		Out:          p.stdout,
		Logger:       log.Named("monitor"),
		HoldInterval: cfg.holdInterval,
		Sinks:        sinks,
	})
	initErrs := mon.Init(cfg.specs)
	tracker.SetButtons(cfg.specs, initErrs)

	if cfg.printState {
		printStates(p.stdout, mon.ReadStates())
		mon.Cleanup()
		return nil
	}

	log.Infow("started", "chip", cfg.chip, "buttons", mon.Registry().Len(),
		"hold_interval", cfg.holdInterval, "broker", cfg.broker, "http", cfg.httpAddr,
		"uinput", cfg.uinput)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if publisher != nil && cfg.heartbeat > 0 {
		hb := time.NewTicker(cfg.heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var flush func()
	if forwarder != nil {
		fctx, stopForwarder := context.WithCancel(ctx)
		forwarded := make(chan struct{})
		g.Go(func() error {
			defer close(forwarded)
			return forwarder.Run(fctx)
		})
		flush = func() {
			stopForwarder()
			<-forwarded
		}
	}
	if srv != nil {
		g.Go(func() error {
			log.Infow("http status server listening", "addr", cfg.httpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return runLoop(ctx, loop{
			mon:        mon,
			publisher:  publisher,
			mqttStatus: mqttStatus,
			tracker:    tracker,
			tick:       ticker.C,
			heartbeat:  heartbeat,
			sig:        p.signals,
			flush:      flush,
			log:        log,
		})
	})

	return g.Wait()
}

// loop is the state runLoop selects over.
type loop struct {
	mon        *button.Monitor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	tick       <-chan time.Time
	heartbeat  <-chan time.Time
	sig        <-chan os.Signal
	// flush, if set, returns once queued button events have been published.
	flush func()
	log   *zap.SugaredLogger
}

// runLoop waits for SIGINT, then releases the buttons. It also returns,
// after cleanup, if ctx ends first (another supervised task failed).
func runLoop(ctx context.Context, l loop) error {
	l.publishSystem("STARTUP", "", true)

	for {
		select {
		case s := <-l.sig:
			l.log.Infow("received signal, shutting down", "signal", s.String())
			l.shutdown()
			l.publishSystem("SHUTDOWN", signalName(s), true)
			return nil

		case <-ctx.Done():
			l.log.Warnw("stopping", "cause", context.Cause(ctx))
			l.shutdown()
			return nil

		case <-l.tick:
			l.refreshMQTT()

		case <-l.heartbeat:
			l.refreshMQTT()
			l.publishSystem("HEARTBEAT", "", false)
		}
	}
}

// shutdown releases the lines, then drains queued events so nothing is
// published after SHUTDOWN.
func (l loop) shutdown() {
	rep := l.mon.Cleanup()
	if rep.Abandoned > 0 {
		l.log.Infow("abandoning hold tasks", "count", rep.Abandoned)
	}
	if l.flush != nil {
		l.flush()
	}
}

func (l loop) refreshMQTT() {
	if l.tracker != nil && l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l loop) publishSystem(event, reason string, retained bool) {
	if l.publisher == nil {
		return
	}
	ev := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if l.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	if err := l.publisher.PublishSystem(ev); err != nil {
		l.log.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	l.log.Debugw("published system event", "event", event)
}

func signalName(s os.Signal) string {
	if s == syscall.SIGINT {
		return "SIGINT"
	}
	return "UNKNOWN"
}

func printStates(w io.Writer, states []button.State) {
	for _, s := range states {
		switch {
		case s.Err != nil:
			fmt.Fprintf(w, "%s (GPIO %d): error: %v\n", s.Spec.Name, s.Spec.Pin, s.Err)
		case s.Asserted:
			fmt.Fprintf(w, "%s (GPIO %d): pressed\n", s.Spec.Name, s.Spec.Pin)
		default:
			fmt.Fprintf(w, "%s (GPIO %d): released\n", s.Spec.Name, s.Spec.Pin)
		}
	}
}
