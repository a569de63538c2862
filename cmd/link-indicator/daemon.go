package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/sweeney/link-indicator/internal/ble"
	"github.com/sweeney/link-indicator/internal/config"
	"github.com/sweeney/link-indicator/internal/events"
	"github.com/sweeney/link-indicator/internal/gpio"
	"github.com/sweeney/link-indicator/internal/indicator"
	"github.com/sweeney/link-indicator/internal/linkstate"
	"github.com/sweeney/link-indicator/internal/mqtt"
	"github.com/sweeney/link-indicator/internal/source"
	"github.com/sweeney/link-indicator/internal/status"
	"github.com/sweeney/link-indicator/internal/storage"
	"github.com/sweeney/link-indicator/internal/web"
)

func runDaemon(cfg config.Config) error {
	bus := events.New()
	tracker := status.NewTracker(time.Now(), status.Config{
		Source:      cfg.Source,
		LowBattery:  cfg.LowBattery,
		LEDPin:      cfg.LED.Pin,
		ButtonPin:   cfg.Button.Pin,
		HeartbeatMs: cfg.HeartbeatMs,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	defer tracker.Attach(bus)()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cell := linkstate.New()
	ev := source.NewEvents(cfg.Source, cell, cfg.Decoder(), bus)

	b := boot{
		connect: func() (mqtt.Publisher, mqtt.ConnectionStatus) { return connectMQTT(cfg, ev) },
	}
	if cfg.Storage.Enabled {
		b.clearStorage = func(ctx context.Context) (storage.Outcome, error) {
			return clearAtStartup(ctx, cfg, bus)
		}
	}
	cleared, publisher, mqttStatus := b.run(ctx)
	defer publisher.Close()
	defer forwardStates(bus, publisher)()

	if reportStorage(publisher, mqttStatus, tracker, cleared) {
		log.Printf("storage cleared; halted until power cycle")
		sdNotify(daemon.SdNotifyReady)
		s := <-sigCh
		log.Printf("received %v while halted", s)
		return nil
	}

	led, err := gpio.NewRealLED(cfg.LED.Chip, cfg.LED.Pin, cfg.LED.ActiveLow)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer led.Close()

	ctrl := indicator.New(led, cell,
		indicator.WithDecoder(cfg.Decoder()),
		indicator.WithBus(bus),
	)
	ctrlErr := make(chan error, 1)
	go func() { ctrlErr <- ctrl.Run(ctx) }()

	prodErr := make(chan error, 1)
	go func() {
		if err := runProducer(ctx, cfg, ev); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("%s: stopped: %v", cfg.Source, err)
			prodErr <- err
		}
	}()

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	publishSystem(publisher, mqttStatus, tracker, "STARTUP", "", true)
	log.Printf("started: source=%s low_battery=%v led=%s/%d broker=%q heartbeat=%v",
		cfg.Source, cfg.LowBattery, cfg.LED.Chip, cfg.LED.Pin, cfg.MQTT.Broker, cfg.Heartbeat())
	sdNotify(daemon.SdNotifyReady)

	l := &loop{
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		notify:     sdNotify,
		sig:        sigCh,
		fatal:      ctrlErr,
		producer:   prodErr,
	}
	if hb := cfg.Heartbeat(); hb > 0 {
		t := time.NewTicker(hb)
		defer t.Stop()
		l.heartbeat = t.C
	}
	if wd, err := daemon.SdWatchdogEnabled(false); err == nil && wd > 0 {
		t := time.NewTicker(wd / 2)
		defer t.Stop()
		l.watchdog = t.C
	}

	err = l.run()
	sdNotify(daemon.SdNotifyStopping)
	cancel()
	if !l.controllerDone {
		// The controller turns the LED off on its way out.
		<-ctrlErr
	}
	return err
}

// clearResult is the startup storage clear as seen by the daemon.
type clearResult struct {
	ran     bool
	outcome storage.Outcome
	err     error
}

// boot runs the startup steps that precede the indicator. The clear button
// is sampled first: connecting to an absent broker can block for seconds,
// and the hold has to be seen while it is still held.
type boot struct {
	clearStorage func(ctx context.Context) (storage.Outcome, error) // nil when storage is disabled
	connect      func() (mqtt.Publisher, mqtt.ConnectionStatus)
}

func (b boot) run(ctx context.Context) (clearResult, mqtt.Publisher, mqtt.ConnectionStatus) {
	var res clearResult
	if b.clearStorage != nil {
		res.ran = true
		res.outcome, res.err = b.clearStorage(ctx)
	}
	publisher, mqttStatus := b.connect()
	return res, publisher, mqttStatus
}

// reportStorage records the clear outcome and announces it once the
// publisher exists. It returns true when the daemon must halt.
func reportStorage(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, res clearResult) bool {
	if !res.ran {
		return false
	}
	tracker.SetStorage(res.outcome.String())
	switch res.outcome {
	case storage.Cleared:
		publishSystem(publisher, mqttStatus, tracker, "STORAGE_CLEARED", "", true)
		return true
	case storage.Failed:
		reason := ""
		if res.err != nil {
			reason = res.err.Error()
		}
		publishSystem(publisher, mqttStatus, tracker, "STORAGE_CLEAR_FAILED", reason, true)
	}
	return false
}

// connectMQTT returns Discard when no broker is configured. A broker that
// is down at startup is not fatal; messages queue until it comes up.
func connectMQTT(cfg config.Config, ev *source.Events) (mqtt.Publisher, mqtt.ConnectionStatus) {
	if cfg.MQTT.Broker == "" {
		log.Printf("mqtt: disabled")
		return mqtt.Discard, nil
	}
	opts := mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		OutboxSize: cfg.MQTT.OutboxSize,
		Will: &mqtt.SystemEvent{
			Event:    "SHUTDOWN",
			Reason:   "MQTT_DISCONNECT",
			Retained: true,
		},
	}
	if cfg.Kind() == source.KindMQTT {
		opts.Handler = ev
	}
	client, err := mqtt.NewRealClient(opts)
	if err != nil {
		log.Printf("mqtt: %v; continuing without broker", err)
		return mqtt.Discard, nil
	}
	return client, client
}

// runProducer runs the one configured producer until ctx is done. The MQTT
// producer is the client's subscription, so there is nothing to run.
func runProducer(ctx context.Context, cfg config.Config, ev *source.Events) error {
	switch cfg.Kind() {
	case source.KindSimulator:
		sim, err := source.NewSimulator(source.DefaultSchedule, cfg.Decoder(), indicator.Sleep)
		if err != nil {
			return err
		}
		return sim.Run(ctx, ev)
	case source.KindBLE:
		return ble.NewSource(ble.NewAdapter(), cfg.BLE.LocalName).Run(ctx, ev)
	case source.KindMQTT:
		log.Printf("mqtt: listening on %s", mqtt.TopicEvents)
		<-ctx.Done()
		return ctx.Err()
	}
	return fmt.Errorf("unknown source %q", cfg.Source)
}

// clearAtStartup opens the clear button and flash image and runs the
// hold-to-clear routine. Failing to open either is logged and counts as
// a failed clear; startup continues.
func clearAtStartup(ctx context.Context, cfg config.Config, bus *events.Bus) (storage.Outcome, error) {
	button, err := gpio.NewRealButton(cfg.Button.Chip, cfg.Button.Pin)
	if err != nil {
		log.Printf("storage: init button: %v", err)
		return reportClear(bus, storage.Failed, err, cfg.Region())
	}
	defer button.Close()

	img, err := storage.OpenFlashImage(cfg.Storage.Image, cfg.Storage.FlashSize)
	if err != nil {
		log.Printf("storage: open flash image: %v", err)
		return reportClear(bus, storage.Failed, err, cfg.Region())
	}
	defer img.Close()

	return startupClear(ctx, cfg.StorageRun(), button, img, bus)
}

func startupClear(ctx context.Context, cfg storage.Config, button storage.Button, eraser storage.Eraser, bus *events.Bus) (storage.Outcome, error) {
	outcome, err := storage.Run(ctx, cfg, button, eraser)
	return reportClear(bus, outcome, err, cfg.Region)
}

func reportClear(bus *events.Bus, outcome storage.Outcome, err error, region storage.Region) (storage.Outcome, error) {
	ev := events.StorageCleared{Outcome: outcome.String(), Timestamp: time.Now()}
	if outcome == storage.Cleared {
		ev.Pages = int(region.Pages)
	}
	if err != nil {
		ev.Err = err.Error()
		var ee *storage.EraseError
		if errors.As(err, &ee) {
			ev.Pages = int(ee.Page)
		}
	}
	bus.Publish(ev)
	return outcome, err
}

// forwardStates publishes every pattern switch on the retained state topic.
func forwardStates(bus *events.Bus, publisher mqtt.Publisher) func() {
	return bus.Subscribe(func(e events.PatternStarted) {
		change := mqtt.StateChange{
			Timestamp: e.Timestamp,
			State:     e.State,
			Previous:  e.Previous,
			First:     e.First,
		}
		if err := publisher.PublishState(change); err != nil {
			log.Printf("state publish error: %v", err)
		}
	})
}

func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, retained bool) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
		tracker.SetMQTTQueued(mqttStatus.Queued())
	}
	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("sd_notify %s: %v", state, err)
	}
}

// loop waits for shutdown and heartbeats until a component fails.
type loop struct {
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // nil without a broker
	tracker    *status.Tracker
	notify     func(state string)

	heartbeat <-chan time.Time // nil when disabled
	watchdog  <-chan time.Time // nil when systemd has no watchdog
	sig       <-chan os.Signal
	fatal     <-chan error // controller exit
	producer  <-chan error // producer failure

	controllerDone bool // fatal was received
}

// run returns nil after a signal. It returns an error when the controller
// or the producer stops on its own; with a single producer either one
// leaves the LED unable to follow the link.
func (l *loop) run() error {
	for {
		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			publishSystem(l.publisher, l.mqttStatus, l.tracker, "SHUTDOWN", signalName(s), true)
			return nil

		case err := <-l.fatal:
			l.controllerDone = true
			if err == nil {
				err = errors.New("controller exited")
			}
			return fmt.Errorf("indicator: %w", err)

		case err := <-l.producer:
			return fmt.Errorf("producer: %w", err)

		case <-l.heartbeat:
			snap := l.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v publications=%d transitions=%d",
				snap.Uptime().Truncate(time.Second), snap.Publications, snap.Transitions)
			publishSystem(l.publisher, l.mqttStatus, l.tracker, "HEARTBEAT", "", false)

		case <-l.watchdog:
			l.notify(daemon.SdNotifyWatchdog)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
