// Package ble reports link events from a local Bluetooth LE adapter.
//
// The adapter advertises under a local name; a central connecting or
// disconnecting is mapped onto the link event kinds. After a disconnect,
// advertising restarts so the next central can find the device.
package ble

import (
	"context"
	"fmt"
	"log"

	"github.com/sweeney/link-indicator/internal/logic"
)

// DefaultLocalName is advertised when none is configured.
const DefaultLocalName = "link-indicator"

// Radio abstracts the BLE hardware adapter for testing.
type Radio interface {
	// Enable powers on the adapter.
	Enable() error
	// SetConnectHandler registers a callback for central connect and
	// disconnect. It may be invoked from any goroutine.
	SetConnectHandler(func(addr string, connected bool))
	// StartAdvertising begins advertising under name.
	StartAdvertising(name string) error
	// StopAdvertising stops advertising.
	StopAdvertising() error
}

// Handler receives link events. *source.Events satisfies it.
type Handler interface {
	Handle(kind logic.EventKind) bool
}

type connEvent struct {
	addr      string
	connected bool
}

// Source drives a Radio and reports its link events.
type Source struct {
	radio Radio
	name  string
	conns chan connEvent
}

// NewSource creates a source advertising as name.
func NewSource(radio Radio, name string) *Source {
	if name == "" {
		name = DefaultLocalName
	}
	return &Source{
		radio: radio,
		name:  name,
		conns: make(chan connEvent, 8),
	}
}

// Run enables the adapter, starts advertising and reports events to h
// until ctx is done. It returns ctx.Err() on cancellation, or the error
// that prevented the adapter from starting.
func (s *Source) Run(ctx context.Context, h Handler) error {
	s.radio.SetConnectHandler(func(addr string, connected bool) {
		select {
		case s.conns <- connEvent{addr: addr, connected: connected}:
		case <-ctx.Done():
		}
	})
	if err := s.radio.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	if err := s.advertise(h); err != nil {
		return err
	}
	log.Printf("ble: advertising as %q", s.name)

	for {
		select {
		case <-ctx.Done():
			if err := s.radio.StopAdvertising(); err != nil {
				log.Printf("ble: stop advertising: %v", err)
			}
			return ctx.Err()
		case ev := <-s.conns:
			s.handle(ev, h)
		}
	}
}

func (s *Source) handle(ev connEvent, h Handler) {
	if ev.connected {
		log.Printf("ble: central %s connected", ev.addr)
		h.Handle(logic.EventConnected)
		return
	}
	log.Printf("ble: central %s disconnected", ev.addr)
	h.Handle(logic.EventDisconnected)
	if err := s.advertise(h); err != nil {
		// Stay disconnected; the next connect callback still arrives if
		// the stack recovers on its own.
		log.Printf("ble: %v", err)
	}
}

func (s *Source) advertise(h Handler) error {
	if err := s.radio.StartAdvertising(s.name); err != nil {
		return fmt.Errorf("start advertising: %w", err)
	}
	h.Handle(logic.EventAdvertisingStarted)
	return nil
}
