// Package scancode implements the evdev input device reader: opens one or
// more named devices from the root `devices:` config and lets ScanCodeRead
// install a per-device code filter. Treated as a registration effect (like
// MqttSubscribe/FileChanged) rather than a producing one, since it installs
// a filter and waits for a future device read instead of returning data
// immediately — see DESIGN.md for that reclassification. lib:
// github.com/gvalkov/golang-evdev.
package scancode

import (
	"context"
	"fmt"
	"sync"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Fire is called once per input event whose code matches an installed
// filter on that device.
type Fire func(eventName string, data models.Data, metadata map[string]string)

type filter struct {
	eventName string
	code      int
}

// Reader holds one opened evdev device per configured name and the
// code-keyed filter table layered on top.
type Reader struct {
	mu      sync.Mutex
	devices map[string]*evdev.InputDevice
	filters map[string][]filter
	fire    Fire
}

func New(fire Fire) *Reader {
	return &Reader{
		devices: make(map[string]*evdev.InputDevice),
		filters: make(map[string][]filter),
		fire:    fire,
	}
}

// Open opens every configured device by name -> evdev path.
func (r *Reader) Open(devices map[string]string) error {
	for name, path := range devices {
		dev, err := evdev.Open(path)
		if err != nil {
			return fmt.Errorf("open device %q (%s): %w", name, path, err)
		}
		r.devices[name] = dev
		logger.L().Info("evdev device opened", "device", name, "path", path)
	}
	return nil
}

// AddFilter registers eventName to fire when device emits an EV_KEY event
// with the given code.
func (r *Reader) AddFilter(eventName, device string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[device] = append(r.filters[device], filter{eventName: eventName, code: code})
}

// Run starts one read loop per opened device and blocks until ctx is
// cancelled.
func (r *Reader) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for name, dev := range r.devices {
		wg.Add(1)
		go func(name string, dev *evdev.InputDevice) {
			defer wg.Done()
			r.pump(ctx, name, dev)
		}(name, dev)
	}
	<-ctx.Done()
	r.closeAll()
	wg.Wait()
}

func (r *Reader) pump(ctx context.Context, name string, dev *evdev.InputDevice) {
	for {
		if ctx.Err() != nil {
			return
		}
		events, err := dev.Read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.L().Error("evdev read error", "device", name, "error", err)
			return
		}
		for _, ev := range events {
			if ev.Type != evdev.EV_KEY {
				continue
			}
			r.dispatch(name, int(ev.Code), int(ev.Value))
		}
	}
}

func (r *Reader) dispatch(device string, code, value int) {
	r.mu.Lock()
	filters := append([]filter(nil), r.filters[device]...)
	r.mu.Unlock()

	for _, f := range filters {
		if f.code != code {
			continue
		}
		logger.L().Debug("scan code matched", "device", device, "code", code, "event", f.eventName)
		r.fire(f.eventName, models.TextData(fmt.Sprintf("%d", code)), map[string]string{
			"device": device,
			"value":  fmt.Sprintf("%d", value),
		})
	}
}

func (r *Reader) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, dev := range r.devices {
		if dev.File != nil {
			if err := dev.File.Close(); err != nil {
				logger.L().Warn("evdev close failed", "device", name, "error", err)
			}
		}
	}
}
