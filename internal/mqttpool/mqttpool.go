// Package mqttpool implements the MQTT client pool: named broker
// connections, a subscription registry keyed by pool id, and match_rule
// filtering on message bodies. The pool-by-ID lookup ("first configuration
// when pool id is empty") is implemented against
// github.com/eclipse/paho.mqtt.golang.
//
// Topic wildcard matching (+, #) is done locally rather than delegated to
// the broker: each configured client subscribes once to "#" and every
// registered MqttSubscribe pattern is matched against incoming topics
// in-process. This keeps MqttUnsubscribe's bookkeeping —
// knowing exactly which local entries a wildcard pattern covers — entirely
// in Go, rather than split across this process and the broker's own
// subscription table.
package mqttpool

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Fire is called once per message whose topic and match_rule both accept
// an installed subscription.
type Fire func(eventName string, data models.Data, metadata map[string]string)

type subEntry struct {
	pattern   string
	eventName string
	rule      models.MatchRule
}

// Pool holds one paho client per configured mqtt pool id and the
// event-level subscription table layered on top of a single catch-all
// broker subscription per client.
type Pool struct {
	mu         sync.Mutex
	clients    map[string]mqtt.Client
	defaultID  string
	subsByPool map[string][]subEntry
	fire       Fire
}

func New(fire Fire) *Pool {
	return &Pool{
		clients:    make(map[string]mqtt.Client),
		subsByPool: make(map[string][]subEntry),
		fire:       fire,
	}
}

// Configure connects one client per pool definition and subscribes it to
// "#" so every topic can be matched locally. The first configured pool
// becomes the target of an empty pool_id.
func (p *Pool) Configure(configs []models.MQTTPoolConfig) error {
	for _, cfg := range configs {
		id := cfg.ID
		if id == "" {
			id = "default"
		}

		clientID := cfg.ClientID
		if clientID == "" {
			clientID = id
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, brokerPort(cfg.Port)))
		opts.SetClientID(clientID)
		if cfg.User != "" && cfg.Pass != "" {
			opts.SetUsername(cfg.User)
			opts.SetPassword(cfg.Pass)
		}
		opts.SetKeepAlive(5 * time.Second)
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)

		client := mqtt.NewClient(opts)
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt pool %q: connect to %s: %w", id, cfg.Host, err)
		}
		logger.L().Info("mqtt pool connected", "pool_id", id, "host", cfg.Host)

		subToken := client.Subscribe("#", 0, p.handlerForPool(id))
		subToken.Wait()
		if err := subToken.Error(); err != nil {
			return fmt.Errorf("mqtt pool %q: subscribe #: %w", id, err)
		}

		p.mu.Lock()
		p.clients[id] = client
		if p.defaultID == "" {
			p.defaultID = id
		}
		p.mu.Unlock()
	}
	return nil
}

func brokerPort(port int) int {
	if port == 0 {
		return 1883
	}
	return port
}

func (p *Pool) resolveID(poolID string) string {
	if poolID != "" {
		return poolID
	}
	return p.defaultID
}

func (p *Pool) clientFor(poolID string) (mqtt.Client, string, bool) {
	id := p.resolveID(poolID)
	c, ok := p.clients[id]
	return c, id, ok
}

// Subscribe registers eventName against topic (which may itself contain
// MQTT wildcards) on poolID. No broker call is made: the pool's single
// catch-all subscription already receives every message.
func (p *Pool) Subscribe(eventName, poolID, topic string, rule models.MatchRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, id, ok := p.clientFor(poolID)
	if !ok {
		return fmt.Errorf("mqtt_subscribe %q: unknown pool %q", eventName, poolID)
	}
	p.subsByPool[id] = append(p.subsByPool[id], subEntry{pattern: topic, eventName: eventName, rule: rule})
	logger.L().Info("mqtt subscribed", "pool_id", id, "topic", topic, "event", eventName)
	return nil
}

// Unsubscribe removes eventName's registration against (poolID, topic).
func (p *Pool) Unsubscribe(eventName, poolID, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, id, ok := p.clientFor(poolID)
	if !ok {
		return fmt.Errorf("mqtt_unsubscribe %q: unknown pool %q", eventName, poolID)
	}
	remaining := make([]subEntry, 0, len(p.subsByPool[id]))
	for _, e := range p.subsByPool[id] {
		if e.pattern == topic && e.eventName == eventName {
			continue
		}
		remaining = append(remaining, e)
	}
	p.subsByPool[id] = remaining
	logger.L().Info("mqtt unsubscribed", "pool_id", id, "topic", topic, "event", eventName)
	return nil
}

// Publish sends data's byte representation to topic on poolID. Rendering
// of topic/body templates happens upstream in internal/dispatch; this
// package only ever sees already-rendered strings.
func (p *Pool) Publish(poolID, topic string, data models.Data) error {
	p.mu.Lock()
	client, id, ok := p.clientFor(poolID)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("mqtt_publish: unknown pool %q", poolID)
	}
	token := client.Publish(topic, 0, false, data.AsBytes())
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt_publish %q: %w", topic, err)
	}
	logger.L().Debug("mqtt published", "pool_id", id, "topic", topic)
	return nil
}

// handlerForPool returns the single paho callback registered for the "#"
// subscription of pool id. It re-reads the subscription table under lock
// on every message since Subscribe/Unsubscribe may mutate it concurrently
// with delivery.
func (p *Pool) handlerForPool(id string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		body := string(msg.Payload())

		p.mu.Lock()
		entries := make([]subEntry, len(p.subsByPool[id]))
		copy(entries, p.subsByPool[id])
		p.mu.Unlock()

		for _, e := range matchingEntries(entries, topic, body) {
			p.fire(e.eventName, models.TextData(body), map[string]string{
				"topic":   topic,
				"pool_id": id,
			})
		}
	}
}

// matchingEntries filters entries down to those whose pattern matches
// topic and whose match_rule accepts body, kept separate from
// handlerForPool so it is testable without a live broker connection.
func matchingEntries(entries []subEntry, topic, body string) []subEntry {
	out := make([]subEntry, 0, len(entries))
	for _, e := range entries {
		if topicMatches(e.pattern, topic) && e.rule.Matches(body) {
			out = append(out, e)
		}
	}
	return out
}

// topicMatches reports whether topic satisfies pattern under MQTT wildcard
// rules: "+" matches exactly one level, "#" (only legal as the final
// level) matches that level and everything below it.
func topicMatches(pattern, topic string) bool {
	pParts := strings.Split(pattern, "/")
	tParts := strings.Split(topic, "/")

	for i, p := range pParts {
		if p == "#" {
			return true
		}
		if i >= len(tParts) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tParts[i] {
			return false
		}
	}
	return len(pParts) == len(tParts)
}

// ValidTopicPattern reports whether topic is a syntactically well-formed
// MQTT topic filter: non-empty, with "#" (if present) occupying the final
// level alone and "+" (if present) occupying whichever level it's in alone.
func ValidTopicPattern(topic string) bool {
	if topic == "" {
		return false
	}
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		if strings.Contains(p, "#") && (p != "#" || i != len(parts)-1) {
			return false
		}
		if strings.Contains(p, "+") && p != "+" {
			return false
		}
	}
	return true
}

// Close disconnects every configured client, used during graceful shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Disconnect(250)
		logger.L().Info("mqtt pool disconnected", "pool_id", id)
	}
}
