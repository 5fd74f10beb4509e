package config

import (
	"errors"
	"fmt"

	"github.com/songokas/hvents/pkg/models"
)

// ValidateConfig checks document-level structural consistency: things the
// registry cannot see because they live outside the events map (pool and
// device identity, application settings). Per-event kind/self-reference
// checks are the registry's job (internal/registry.Load), since group
// imports aren't resolved yet at this point.
func ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateApplicationSettings(&cfg.Application); err != nil {
		return fmt.Errorf("invalid application settings: %w", err)
	}

	seenMQTT := make(map[string]bool)
	for i, pool := range cfg.MQTT {
		id := pool.ID
		if id == "" {
			id = "default"
		}
		if seenMQTT[id] {
			return fmt.Errorf("duplicate mqtt pool id %q at index %d", id, i)
		}
		seenMQTT[id] = true
		if pool.Host == "" {
			return fmt.Errorf("mqtt pool %q: host is required", id)
		}
	}

	seenHTTP := make(map[string]bool)
	for i, pool := range cfg.HTTP {
		id := pool.ID
		if id == "" {
			id = "default"
		}
		if seenHTTP[id] {
			return fmt.Errorf("duplicate http pool id %q at index %d", id, i)
		}
		seenHTTP[id] = true
		if pool.Bind == "" {
			return fmt.Errorf("http pool %q: bind is required", id)
		}
	}

	seenDevices := make(map[string]bool)
	for name, path := range cfg.Devices {
		if path == "" {
			return fmt.Errorf("device %q: path is required", name)
		}
		if seenDevices[name] {
			return fmt.Errorf("duplicate device name %q", name)
		}
		seenDevices[name] = true
	}

	if cfg.Location != nil {
		if cfg.Location.Latitude < -90 || cfg.Location.Latitude > 90 {
			return fmt.Errorf("location: latitude %f out of range", cfg.Location.Latitude)
		}
		if cfg.Location.Longitude < -180 || cfg.Location.Longitude > 180 {
			return fmt.Errorf("location: longitude %f out of range", cfg.Location.Longitude)
		}
	}

	return nil
}

func validateApplicationSettings(app *models.ApplicationSettings) error {
	if app.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", app.MaxConcurrency)
	}
	if app.ReadyQueueCapacity < 0 {
		return fmt.Errorf("ready_queue_capacity cannot be negative, got %d", app.ReadyQueueCapacity)
	}
	if p := app.DefaultRetry; p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("default_retry.max_retries cannot be negative")
	}
	return nil
}
