package ble

import (
	"sync"

	"tinygo.org/x/bluetooth"
)

// Adapter is a Radio backed by the system Bluetooth stack (BlueZ on Linux).
type Adapter struct {
	adapter *bluetooth.Adapter

	mu  sync.Mutex
	adv *bluetooth.Advertisement
}

// NewAdapter wraps the default adapter.
func NewAdapter() *Adapter {
	return &Adapter{adapter: bluetooth.DefaultAdapter}
}

// Enable powers on the adapter.
func (a *Adapter) Enable() error {
	return a.adapter.Enable()
}

// SetConnectHandler forwards connect callbacks with the peer address.
func (a *Adapter) SetConnectHandler(fn func(addr string, connected bool)) {
	a.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		fn(d.Address.String(), connected)
	})
}

// StartAdvertising configures and starts the default advertisement.
func (a *Adapter) StartAdvertising(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adv == nil {
		adv := a.adapter.DefaultAdvertisement()
		if err := adv.Configure(bluetooth.AdvertisementOptions{
			LocalName: name,
		}); err != nil {
			return err
		}
		a.adv = adv
	}
	return a.adv.Start()
}

// StopAdvertising stops the advertisement if it was started.
func (a *Adapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adv == nil {
		return nil
	}
	return a.adv.Stop()
}
