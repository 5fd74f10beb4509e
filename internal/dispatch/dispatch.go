// Package dispatch implements the dispatch loop: the effect/successor/
// merge/enqueue cycle run once per ready-queue item. There is no direct
// precedent for a chain/successor concept elsewhere in this module; this
// is new code built directly against the event model's dispatch and
// ordering/suspension rules.
//
// A single logical writer per chain is realized as a worker.Processor:
// Dispatcher.Process is what internal/worker's pool goroutines call per
// dequeued event, so the dispatcher runs inside the worker pool rather
// than as a separate loop. Because a chain's successor is only
// ever enqueued after its predecessor's effect fully completes, per-chain
// ordering holds regardless of how many workers are draining the queue
// concurrently; everything genuinely shared (state map, registry, pool
// tables) stays behind its own mutex.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/songokas/hvents/internal/filewatch"
	"github.com/songokas/hvents/internal/httpcall"
	"github.com/songokas/hvents/internal/httplisten"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/mqttpool"
	payloadmerge "github.com/songokas/hvents/internal/payload"
	"github.com/songokas/hvents/internal/queue"
	"github.com/songokas/hvents/internal/registry"
	"github.com/songokas/hvents/internal/restorelog"
	"github.com/songokas/hvents/internal/retry"
	"github.com/songokas/hvents/internal/scancode"
	"github.com/songokas/hvents/internal/state"
	"github.com/songokas/hvents/internal/subprocess"
	"github.com/songokas/hvents/internal/template"
	"github.com/songokas/hvents/internal/timewheel"
	"github.com/songokas/hvents/pkg/models"
)

// Notifier is called whenever a chain carrying a known HTTP request id
// terminates, so internal/httplisten can unblock the held-open response
// (Open Question 3 in DESIGN.md). nil until SetNotifier is called.
type Notifier func(requestID string, payload models.Payload, err error)

// Dependencies bundles everything the dispatcher needs to execute an
// effect. It is a plain struct rather than positional constructor
// arguments because the dispatcher is the one component that legitimately
// depends on every other component in the module.
type Dependencies struct {
	Registry    *registry.Registry
	State       *models.StateMap
	Ready       *queue.ReadyQueue
	Wheel       *timewheel.Wheel
	RestoreLog  *restorelog.Log
	MqttPool    *mqttpool.Pool
	HTTPListen  *httplisten.Pool
	HTTPCaller  *httpcall.Caller
	FileWatch   *filewatch.Watcher
	ScanCode    *scancode.Reader
	Executor    *subprocess.Executor
	Location    *models.LocationConfig
	AppSettings models.ApplicationSettings
}

// Dispatcher runs the dispatch steps for one dequeued event at a time;
// internal/worker.Pool supplies the concurrency.
type Dispatcher struct {
	registry   *registry.Registry
	state      *models.StateMap
	ready      *queue.ReadyQueue
	wheel      *timewheel.Wheel
	restore    *restorelog.Log
	mqttPool   *mqttpool.Pool
	httpListen *httplisten.Pool
	httpCaller *httpcall.Caller
	fileWatch  *filewatch.Watcher
	scanCode   *scancode.Reader
	executor   *subprocess.Executor
	location   *models.LocationConfig
	app        models.ApplicationSettings
	notify     Notifier
}

func New(deps Dependencies) *Dispatcher {
	return &Dispatcher{
		registry:   deps.Registry,
		state:      deps.State,
		ready:      deps.Ready,
		wheel:      deps.Wheel,
		restore:    deps.RestoreLog,
		mqttPool:   deps.MqttPool,
		httpListen: deps.HTTPListen,
		httpCaller: deps.HTTPCaller,
		fileWatch:  deps.FileWatch,
		scanCode:   deps.ScanCode,
		executor:   deps.Executor,
		location:   deps.Location,
		app:        deps.AppSettings,
	}
}

// SetNotifier wires the httplisten callback invoked when a chain carrying
// a request id terminates. Split from New to avoid a construction-order
// cycle: httplisten.New needs the dispatcher's Fire methods, and the
// dispatcher needs the pool's Notify method.
func (d *Dispatcher) SetNotifier(n Notifier) { d.notify = n }

// SeedStartWith enqueues every start_with name with an empty base payload,
// merging each event's own literal `data:` in exactly the way a normal
// predecessor would when resolving it as a successor — start_with has no
// predecessor to perform that merge, so this is its stand-in.
func (d *Dispatcher) SeedStartWith(names []string) {
	for _, name := range names {
		def, ok := d.registry.Lookup(name)
		if !ok {
			logger.L().Error("start_with references unknown event", "event", name)
			continue
		}
		payload := models.NewPayload(d.state)
		payload.Data = payloadmerge.Merge(models.EmptyData(), def.Data, payloadmerge.ResolveMergeData(def.MergeData))
		if err := d.ready.Enqueue(models.Event{Name: name, Payload: payload, Type: models.EventTypeManual, SourceID: "start_with", Timestamp: time.Now()}); err != nil {
			logger.L().Error("failed to seed start_with event", "event", name, "error", err)
		}
	}
}

// Process implements worker.Processor: it runs def.Kind()'s effect for
// event, applying any decorating StateOp first, then continues the chain
// (or registers a pool-level filter, for registration effects).
func (d *Dispatcher) Process(ctx context.Context, event models.Event) error {
	l := logger.L().With("event_id", event.ID, "name", event.Name, "source_id", event.SourceID)

	def, ok := d.registry.Lookup(event.Name)
	if !ok {
		err := fmt.Errorf("unknown event %q", event.Name)
		l.Error("dispatch: unknown event", "error", err)
		d.fail(event.Payload, err)
		return err
	}

	if def.State != nil {
		state.Apply(d.state, *def.State)
	}

	kind, err := def.Kind()
	if err != nil {
		l.Error("dispatch: invalid event kind", "error", err)
		d.fail(event.Payload, err)
		return err
	}

	switch kind {
	case models.KindStateOp:
		d.resolveAndEnqueue(def, event.Payload, event.Payload.Data, false)
		return nil

	case models.KindMqttPublish:
		return d.dispatchMqttPublish(ctx, l, def, event.Payload)

	case models.KindMqttSubscribe:
		return d.dispatchMqttSubscribe(l, def, event.Payload)

	case models.KindMqttUnsubscribe:
		return d.dispatchMqttUnsubscribe(l, def, event.Payload)

	case models.KindFileRead:
		return d.dispatchFileRead(l, def, event.Payload)

	case models.KindFileWrite:
		return d.dispatchFileWrite(l, def, event.Payload)

	case models.KindApiCall:
		return d.dispatchApiCall(ctx, l, def, event.Payload)

	case models.KindApiListen:
		return d.dispatchApiListen(l, def)

	case models.KindFileChanged:
		d.fileWatch.AddFilter(def.Name, def.FileChanged.Path, def.FileChanged.When)
		return nil

	case models.KindWatch:
		return d.dispatchWatch(l, def, event.Payload)

	case models.KindTime:
		return d.dispatchSchedule(l, def, event.Payload, *def.Time, "")

	case models.KindRepeat:
		return d.dispatchSchedule(l, def, event.Payload, *def.Repeat, *def.Repeat)

	case models.KindPeriod:
		return d.dispatchPeriod(l, def, event.Payload)

	case models.KindExecute:
		return d.dispatchExecute(ctx, l, def, event.Payload)

	case models.KindScanCodeRead:
		d.scanCode.AddFilter(def.Name, def.ScanCodeRead.Device, def.ScanCodeRead.Code)
		return nil

	case models.KindPrint:
		d.dispatchPrint(*def.Print, event.Payload)
		d.resolveAndEnqueue(def, event.Payload, event.Payload.Data, false)
		return nil

	default:
		err := fmt.Errorf("unhandled event kind %q", kind)
		l.Error("dispatch: unhandled kind", "error", err)
		d.fail(event.Payload, err)
		return err
	}
}

// HandleMqttFire is the mqttpool.Fire callback. MQTT deliveries use
// TryEnqueue rather than Enqueue: the MQTT network loop must drop and log
// queue_full instead of blocking, unlike the other sources.
func (d *Dispatcher) HandleMqttFire(eventName string, data models.Data, metadata map[string]string) {
	d.fireRegistration(eventName, data, metadata, true)
}

// HandleBlockingFire is the Fire callback shared by internal/filewatch,
// internal/scancode, and internal/httplisten — none of those sources have
// the MQTT drop-and-log exemption, so they block on a full queue.
func (d *Dispatcher) HandleBlockingFire(eventName string, data models.Data, metadata map[string]string) {
	d.fireRegistration(eventName, data, metadata, false)
}

// HandleWheelFire is the timewheel.Fire callback: resolve the fired spec's
// own successor using the payload captured at schedule time, reschedule
// repeating entries from the fire instant, and keep the restore log in
// sync.
func (d *Dispatcher) HandleWheelFire(spec timewheel.Spec) {
	def, ok := d.registry.Lookup(spec.EventName)
	if !ok {
		logger.L().Error("time wheel fired unknown event", "event", spec.EventName)
		d.restore.Remove(spec.Identity)
		return
	}

	if spec.Repeat != "" {
		next, err := timewheel.RescheduleRepeat(spec, time.Now(), d.location)
		if err != nil {
			logger.L().Error("repeat reschedule failed", "event", spec.EventName, "error", err)
		} else {
			d.wheel.Schedule(next)
			if err := d.restore.Write(next); err != nil {
				logger.L().Error("restore log write failed", "identity", next.Identity, "error", err)
			}
		}
	} else {
		d.restore.Remove(spec.Identity)
	}

	d.resolveAndEnqueue(def, spec.Payload, spec.Payload.Data, false)
}

func (d *Dispatcher) fireRegistration(sourceName string, data models.Data, metadata map[string]string, dropIfFull bool) {
	def, ok := d.registry.Lookup(sourceName)
	if !ok {
		logger.L().Error("stimulus fired for unknown event", "event", sourceName)
		return
	}
	payload := models.NewPayload(d.state)
	payload.Data = data
	for k, v := range metadata {
		payload.Metadata[k] = v
	}
	d.resolveAndEnqueue(def, payload, data, dropIfFull)
}

// resolveAndEnqueue resolves the
// successor name, merge the successor's own literal data under the merge
// law (internal/payload), and enqueue. A chain with no successor ends here;
// if its payload carries a request id tracked by internal/httplisten, that
// tracker is notified so the held-open response can complete.
func (d *Dispatcher) resolveAndEnqueue(def models.EventConfig, payload models.Payload, outData models.Data, dropIfFull bool) {
	successorName, ok := d.resolveSuccessor(def, payload)
	if !ok {
		d.terminate(payload, nil)
		return
	}

	nextDef, found := d.registry.Lookup(successorName)
	if !found {
		err := fmt.Errorf("unknown event %q", successorName)
		logger.L().Error("unknown successor", "event", def.Name, "next_event", successorName)
		d.fail(payload, err)
		return
	}

	merged := payload.CloneMetadata()
	merged.Data = payloadmerge.Merge(outData, nextDef.Data, payloadmerge.ResolveMergeData(nextDef.MergeData))

	event := models.Event{Name: successorName, Payload: merged, Type: models.EventTypeChain, SourceID: def.Name, Timestamp: time.Now()}
	if dropIfFull {
		d.ready.TryEnqueue(event)
		return
	}
	if err := d.ready.Enqueue(event); err != nil {
		logger.L().Debug("enqueue failed, queue stopped", "event", successorName, "error", err)
	}
}

// resolveSuccessor picks the next event name: a rendered
// next_event_template takes priority over the literal next_event.
func (d *Dispatcher) resolveSuccessor(def models.EventConfig, payload models.Payload) (string, bool) {
	if def.NextEventTemplate != "" {
		rendered, err := d.render(def.NextEventTemplate, payload)
		if err != nil {
			logger.L().Error("next_event_template render failed", "event", def.Name, "error", err)
			return "", false
		}
		rendered = trimSpace(rendered)
		if rendered == "" {
			return "", false
		}
		return rendered, true
	}
	if def.NextEvent == "" {
		return "", false
	}
	return def.NextEvent, true
}

func (d *Dispatcher) render(tmpl string, payload models.Payload) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	return template.Render(tmpl, template.NewScope(payload))
}

func (d *Dispatcher) fail(payload models.Payload, err error) {
	d.terminate(payload, err)
}

func (d *Dispatcher) terminate(payload models.Payload, err error) {
	if d.notify == nil {
		return
	}
	if reqID := payload.Metadata[models.MetadataRequestID]; reqID != "" {
		d.notify(reqID, payload, err)
	}
}

func (d *Dispatcher) retryEffect(ctx context.Context, opName string, op retry.Operation) error {
	policy := retry.MergePolicies(nil, &d.app.DefaultRetry)
	return retry.Do(ctx, opName, policy, op)
}

func identityFor(def models.EventConfig) string {
	if def.EventID != "" {
		return def.EventID
	}
	return def.Name
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
