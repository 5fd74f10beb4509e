// Package registry loads event definitions into a name-keyed map, resolving
// group-prefixed imports and rejecting load-time errors (duplicate name,
// self-reference, multi/zero-kind events, invalid time/repeat/period specs,
// invalid mqtt topics). Longer cycles through next_event/next_event_template
// are legal and are not a registry concern.
package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/songokas/hvents/internal/mqttpool"
	"github.com/songokas/hvents/internal/timewheel"
	"github.com/songokas/hvents/pkg/models"
	"gopkg.in/yaml.v3"
)

// Registry is the immutable-after-load name -> definition map.
type Registry struct {
	events    map[string]models.EventConfig
	startWith []string
}

// Load builds a registry from the root config: inline events first, then
// each event_files path (flat merge), then each groups entry (prefixed
// "<group>_<key>"). A later source landing on the same name is a fatal
// duplicate-identity error, not a silent overwrite.
func Load(cfg *models.Config) (*Registry, error) {
	r := &Registry{
		events:    make(map[string]models.EventConfig),
		startWith: cfg.StartWith,
	}

	for name, def := range cfg.Events {
		if err := r.put(name, def); err != nil {
			return nil, err
		}
	}

	for _, path := range cfg.EventFiles {
		file, err := loadEventFile(path)
		if err != nil {
			return nil, fmt.Errorf("event_files %q: %w", path, err)
		}
		for name, def := range file {
			if err := r.put(name, def); err != nil {
				return nil, err
			}
		}
	}

	for groupPrefix, path := range cfg.Groups {
		file, err := loadEventFile(path)
		if err != nil {
			return nil, fmt.Errorf("groups %q (%s): %w", groupPrefix, path, err)
		}
		for key, def := range file {
			if err := r.put(groupPrefix+"_"+key, def); err != nil {
				return nil, err
			}
		}
	}

	if err := r.validate(cfg.Location); err != nil {
		return nil, err
	}

	return r, nil
}

func loadEventFile(path string) (map[string]models.EventConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events map[string]models.EventConfig
	if err := yaml.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return events, nil
}

// put inserts def under name, rejecting a collision with an already-loaded
// event rather than letting a later source silently win.
func (r *Registry) put(name string, def models.EventConfig) error {
	if _, exists := r.events[name]; exists {
		return fmt.Errorf("duplicate event name %q", name)
	}
	def.Name = name
	r.events[name] = def
	return nil
}

// validate rejects every load-time error class: events that fail to parse
// into exactly one kind, direct self-references, unparsable time/repeat/
// period specs, and malformed mqtt topics. Unresolved next_event targets
// are a dispatch-time error, not a load-time one, since next_event_template
// targets cannot be known until render time.
func (r *Registry) validate(loc *models.LocationConfig) error {
	now := time.Now()
	for name, def := range r.events {
		kind, err := def.Kind()
		if err != nil {
			return fmt.Errorf("event %q: %w", name, err)
		}
		if def.NextEvent != "" && def.NextEvent == name {
			return fmt.Errorf("event %q: next_event cannot reference itself", name)
		}

		switch kind {
		case models.KindTime:
			if _, err := timewheel.ParseSpec(*def.Time, now, loc); err != nil {
				return fmt.Errorf("event %q: time: %w", name, err)
			}
		case models.KindRepeat:
			if _, err := timewheel.ParseSpec(*def.Repeat, now, loc); err != nil {
				return fmt.Errorf("event %q: repeat: %w", name, err)
			}
		case models.KindPeriod:
			if _, err := timewheel.InPeriod(*def.Period, now); err != nil {
				return fmt.Errorf("event %q: period: %w", name, err)
			}
		case models.KindMqttSubscribe:
			if err := validTopic(def.MqttSubscribe.Topic); err != nil {
				return fmt.Errorf("event %q: mqtt_subscribe: %w", name, err)
			}
		case models.KindMqttUnsubscribe:
			if err := validTopic(def.MqttUnsubscribe.Topic); err != nil {
				return fmt.Errorf("event %q: mqtt_unsubscribe: %w", name, err)
			}
		case models.KindMqttPublish:
			if err := validTopic(def.MqttPublish.Topic); err != nil {
				return fmt.Errorf("event %q: mqtt_publish: %w", name, err)
			}
		}
	}
	return nil
}

// validTopic skips templated topics (resolved only at render time) and
// otherwise defers to mqttpool's wildcard-syntax check.
func validTopic(topic string) error {
	if strings.Contains(topic, "{{") {
		return nil
	}
	if !mqttpool.ValidTopicPattern(topic) {
		return fmt.Errorf("invalid topic %q", topic)
	}
	return nil
}

// Lookup returns the named event's definition, or false if unknown.
func (r *Registry) Lookup(name string) (models.EventConfig, bool) {
	def, ok := r.events[name]
	return def, ok
}

// Names returns every registered event name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	return names
}

// StartWith returns the names to enqueue with an empty payload at bootstrap.
func (r *Registry) StartWith() []string { return r.startWith }
