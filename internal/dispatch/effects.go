package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/songokas/hvents/internal/fileio"
	"github.com/songokas/hvents/internal/subprocess"
	"github.com/songokas/hvents/internal/timewheel"
	"github.com/songokas/hvents/pkg/models"
)

func (d *Dispatcher) dispatchMqttPublish(ctx context.Context, l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	topic, body, err := d.renderMqttPublish(*def.MqttPublish, payload)
	if err != nil {
		l.Error("mqtt_publish render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	err = d.retryEffect(ctx, "mqtt_publish:"+def.Name, func(context.Context) error {
		return d.mqttPool.Publish(def.MqttPublish.PoolID, topic, body)
	})
	if err != nil {
		l.Error("mqtt_publish failed", "topic", topic, "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, payload.Data, false)
	return nil
}

func (d *Dispatcher) renderMqttPublish(cfg models.MqttPublishConfig, payload models.Payload) (string, models.Data, error) {
	topic, err := d.render(cfg.Topic, payload)
	if err != nil {
		return "", models.Data{}, fmt.Errorf("mqtt_publish topic: %w", err)
	}
	switch {
	case cfg.Template != nil:
		rendered, err := d.render(*cfg.Template, payload)
		if err != nil {
			return "", models.Data{}, fmt.Errorf("mqtt_publish template: %w", err)
		}
		return topic, models.TextData(rendered), nil
	case cfg.Body != nil:
		return topic, models.TextData(*cfg.Body), nil
	default:
		return topic, payload.Data, nil
	}
}

func (d *Dispatcher) dispatchMqttSubscribe(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	topic, err := d.render(def.MqttSubscribe.Topic, payload)
	if err != nil {
		l.Error("mqtt_subscribe topic render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	if err := d.mqttPool.Subscribe(def.Name, def.MqttSubscribe.PoolID, topic, def.MqttSubscribe.MatchRule); err != nil {
		l.Error("mqtt_subscribe failed", "error", err)
		d.fail(payload, err)
		return err
	}
	return nil
}

func (d *Dispatcher) dispatchMqttUnsubscribe(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	topic, err := d.render(def.MqttUnsubscribe.Topic, payload)
	if err != nil {
		l.Error("mqtt_unsubscribe topic render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	if err := d.mqttPool.Unsubscribe(def.Name, def.MqttUnsubscribe.PoolID, topic); err != nil {
		l.Error("mqtt_unsubscribe failed", "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, payload.Data, false)
	return nil
}

func (d *Dispatcher) dispatchFileRead(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	path, err := d.render(def.FileRead.Path, payload)
	if err != nil {
		l.Error("file_read path render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	data, err := fileio.Read(path, def.FileRead.DataType)
	if err != nil {
		l.Error("file_read failed", "path", path, "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, data, false)
	return nil
}

func (d *Dispatcher) dispatchFileWrite(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	path, err := d.render(def.FileWrite.Path, payload)
	if err != nil {
		l.Error("file_write path render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	if err := fileio.Write(path, def.FileWrite.Truncate, payload.Data); err != nil {
		l.Error("file_write failed", "path", path, "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, payload.Data, false)
	return nil
}

func (d *Dispatcher) dispatchApiCall(ctx context.Context, l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	var outData models.Data
	err := d.retryEffect(ctx, "api_call:"+def.Name, func(opCtx context.Context) error {
		var callErr error
		outData, callErr = d.httpCaller.Call(opCtx, *def.ApiCall, payload.Data)
		return callErr
	})
	if err != nil {
		l.Error("api_call failed", "url", def.ApiCall.URL, "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, outData, false)
	return nil
}

func (d *Dispatcher) dispatchApiListen(l *slog.Logger, def models.EventConfig) error {
	if err := d.httpListen.AddRoute(def.Name, *def.ApiListen); err != nil {
		l.Error("api_listen registration failed", "error", err)
		return err
	}
	return nil
}

func (d *Dispatcher) dispatchWatch(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	path, err := d.render(def.Watch.Path, payload)
	if err != nil {
		l.Error("watch path render failed", "error", err)
		d.fail(payload, err)
		return err
	}
	if def.Watch.Action == "stop" {
		if err := d.fileWatch.Stop(path); err != nil {
			l.Error("watch stop failed", "path", path, "error", err)
			d.fail(payload, err)
			return err
		}
		d.resolveAndEnqueue(def, payload, payload.Data, false)
		return nil
	}
	if err := d.fileWatch.Start(path, def.Watch.Recursive); err != nil {
		l.Error("watch start failed", "path", path, "error", err)
		d.fail(payload, err)
		return err
	}
	return nil
}

// dispatchSchedule handles both Time (repeatSpec == "") and Repeat kinds:
// both install a wheel entry carrying the current (already-merged) payload
// forward to fire time, without changing that payload — registration
// effects never touch it themselves.
func (d *Dispatcher) dispatchSchedule(l *slog.Logger, def models.EventConfig, payload models.Payload, spec, repeatSpec string) error {
	fireAt, err := timewheel.ParseSpec(spec, time.Now(), d.location)
	if err != nil {
		l.Error("time spec parse failed", "spec", spec, "error", err)
		d.fail(payload, err)
		return err
	}
	entry := timewheel.Spec{
		Identity:  identityFor(def),
		EventName: def.Name,
		Payload:   payload,
		FireAt:    fireAt,
		Repeat:    repeatSpec,
	}
	d.wheel.Schedule(entry)
	if d.restore.Enabled() {
		if err := d.restore.Write(entry); err != nil {
			l.Error("restore log write failed", "identity", entry.Identity, "error", err)
		}
	}
	return nil
}

// dispatchPeriod evaluates the from/to clock gate synchronously: it has no
// external stimulus to defer to, so unlike Time/Repeat it never touches the
// time wheel (see DESIGN.md's Open Question resolution for Period).
func (d *Dispatcher) dispatchPeriod(l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	inPeriod, err := timewheel.InPeriod(*def.Period, time.Now())
	if err != nil {
		l.Error("period evaluation failed", "error", err)
		d.fail(payload, err)
		return err
	}
	if !inPeriod {
		d.terminate(payload, nil)
		return nil
	}
	d.resolveAndEnqueue(def, payload, payload.Data, false)
	return nil
}

func (d *Dispatcher) dispatchExecute(ctx context.Context, l *slog.Logger, def models.EventConfig, payload models.Payload) error {
	args, err := subprocess.ResolveArgs(*def.Execute, func(tmpl string) (string, error) {
		return d.render(tmpl, payload)
	})
	if err != nil {
		l.Error("execute replace_args failed", "error", err)
		d.fail(payload, err)
		return err
	}

	var stdout []byte
	err = d.retryEffect(ctx, "execute:"+def.Name, func(opCtx context.Context) error {
		out, runErr := d.executor.Run(opCtx, *def.Execute, args, payload.Data.AsBytes())
		stdout = out
		return runErr
	})
	if err != nil {
		l.Error("execute failed", "command", def.Execute.Command, "error", err)
		d.fail(payload, err)
		return err
	}

	outData, err := fileio.Decode(stdout, def.Execute.DataType)
	if err != nil {
		l.Error("execute stdout decode failed", "error", err)
		d.fail(payload, err)
		return err
	}
	d.resolveAndEnqueue(def, payload, outData, false)
	return nil
}

func (d *Dispatcher) dispatchPrint(cfg models.PrintConfig, payload models.Payload) {
	text := payload.Data.AsString()
	if cfg.Stream == "stderr" {
		fmt.Fprintln(os.Stderr, text)
	} else {
		fmt.Fprintln(os.Stdout, text)
	}
}
