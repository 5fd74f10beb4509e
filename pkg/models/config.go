package models

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration document for hvents.
type Config struct {
	Application ApplicationSettings    `yaml:"application"`
	Events      map[string]EventConfig `yaml:"events"`
	EventFiles  []string               `yaml:"event_files"`
	Groups      map[string]string      `yaml:"groups"` // group prefix -> path to an event file
	StartWith   []string               `yaml:"start_with"`
	MQTT        []MQTTPoolConfig       `yaml:"mqtt"`
	HTTP        []HTTPPoolConfig       `yaml:"http"`
	Restore     string                 `yaml:"restore"` // directory, empty disables restore
	Location    *LocationConfig        `yaml:"location"`
	Devices     map[string]string      `yaml:"devices"` // device name -> evdev path
}

// ApplicationSettings holds process-wide ambient settings.
type ApplicationSettings struct {
	LogLevel           string      `yaml:"log_level"`
	LogFormat          string      `yaml:"log_format"`
	DefaultRetry       RetryPolicy `yaml:"default_retry"`
	MaxConcurrency     int         `yaml:"max_concurrency"` // effect worker pool size
	ReadyQueueCapacity int         `yaml:"ready_queue_capacity"`
	PIDFilePath        string      `yaml:"pid_file_path"`
	AdminBind          string      `yaml:"admin_bind"` // hvents trigger's HTTP listen address
}

// RetryPolicy uses pointer fields so an explicit zero is distinguishable
// from "unset".
type RetryPolicy struct {
	MaxRetries    *int     `yaml:"max_retries"`
	Delay         *float64 `yaml:"delay"`
	BackoffFactor *float64 `yaml:"backoff_factor"`
}

// MQTTPoolConfig names one broker connection.
type MQTTPoolConfig struct {
	ID       string `yaml:"id"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"pass"`
	ClientID string `yaml:"client_id"`
}

// HTTPPoolConfig names one listener bind address.
type HTTPPoolConfig struct {
	ID   string `yaml:"id"`
	Bind string `yaml:"bind"`
}

// LocationConfig supplies the coordinates sunrise/sunset are computed from.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Duration parses YAML strings like "10s", "5m", "1h" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	var err error
	d.Duration, err = time.ParseDuration(s)
	return err
}

// EventKind is the tagged-union discriminant of EventConfig.
type EventKind string

const (
	KindMqttSubscribe   EventKind = "mqtt_subscribe"
	KindMqttUnsubscribe EventKind = "mqtt_unsubscribe"
	KindMqttPublish     EventKind = "mqtt_publish"
	KindFileRead        EventKind = "file_read"
	KindFileWrite       EventKind = "file_write"
	KindApiCall         EventKind = "api_call"
	KindApiListen       EventKind = "api_listen"
	KindFileChanged     EventKind = "file_changed"
	KindWatch           EventKind = "watch"
	KindTime            EventKind = "time"
	KindRepeat          EventKind = "repeat"
	KindPeriod          EventKind = "period"
	KindExecute         EventKind = "execute"
	KindScanCodeRead    EventKind = "scan_code_read"
	KindStateOp         EventKind = "state"
	KindPrint           EventKind = "print"
)

// EventConfig is the immutable, as-loaded definition of a single named event.
// Exactly one kind-specific field (other than State, which may additionally
// decorate any other kind) must be set; Kind() enforces that.
type EventConfig struct {
	Name              string       `yaml:"-"`
	NextEvent         string       `yaml:"next_event"`
	NextEventTemplate string       `yaml:"next_event_template"`
	Data              *DataLiteral `yaml:"data"`
	MergeData         *bool        `yaml:"merge_data"`
	EventID           string       `yaml:"event_id"`

	MqttSubscribe   *MqttSubscribeConfig   `yaml:"mqtt_subscribe"`
	MqttUnsubscribe *MqttUnsubscribeConfig `yaml:"mqtt_unsubscribe"`
	MqttPublish     *MqttPublishConfig     `yaml:"mqtt_publish"`
	FileRead        *FileReadConfig        `yaml:"file_read"`
	FileWrite       *FileWriteConfig       `yaml:"file_write"`
	ApiCall         *ApiCallConfig         `yaml:"api_call"`
	ApiListen       *ApiListenConfig       `yaml:"api_listen"`
	FileChanged     *FileChangedConfig     `yaml:"file_changed"`
	Watch           *WatchConfig           `yaml:"watch"`
	Time            *string                `yaml:"time"`
	Repeat          *string                `yaml:"repeat"`
	Period          *PeriodConfig          `yaml:"period"`
	Execute         *ExecuteConfig         `yaml:"execute"`
	ScanCodeRead    *ScanCodeReadConfig    `yaml:"scan_code_read"`
	Print           *PrintConfig           `yaml:"print"`

	// State may be set alone (making this event's kind StateOp) or alongside
	// any other kind (applied as a side effect before the main effect runs).
	State *StateConfig `yaml:"state"`
}

// Kind determines which tagged-union variant this event is. It returns an
// error if zero or more than one of the mutually-exclusive kind fields is set.
func (e *EventConfig) Kind() (EventKind, error) {
	found := []EventKind{}
	if e.MqttSubscribe != nil {
		found = append(found, KindMqttSubscribe)
	}
	if e.MqttUnsubscribe != nil {
		found = append(found, KindMqttUnsubscribe)
	}
	if e.MqttPublish != nil {
		found = append(found, KindMqttPublish)
	}
	if e.FileRead != nil {
		found = append(found, KindFileRead)
	}
	if e.FileWrite != nil {
		found = append(found, KindFileWrite)
	}
	if e.ApiCall != nil {
		found = append(found, KindApiCall)
	}
	if e.ApiListen != nil {
		found = append(found, KindApiListen)
	}
	if e.FileChanged != nil {
		found = append(found, KindFileChanged)
	}
	if e.Watch != nil {
		found = append(found, KindWatch)
	}
	if e.Time != nil {
		found = append(found, KindTime)
	}
	if e.Repeat != nil {
		found = append(found, KindRepeat)
	}
	if e.Period != nil {
		found = append(found, KindPeriod)
	}
	if e.Execute != nil {
		found = append(found, KindExecute)
	}
	if e.ScanCodeRead != nil {
		found = append(found, KindScanCodeRead)
	}
	if e.Print != nil {
		found = append(found, KindPrint)
	}
	switch len(found) {
	case 0:
		if e.State != nil {
			return KindStateOp, nil
		}
		return "", fmt.Errorf("event %q: no kind specified", e.Name)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("event %q: multiple kinds specified: %v", e.Name, found)
	}
}

// MatchRule is the MQTT subscription body filter.
type MatchRule struct {
	Body         *string `yaml:"body"`
	BodyContains *string `yaml:"body_contains"`
	None         bool    `yaml:"none"`
}

// Matches reports whether a raw MQTT message body satisfies this rule.
func (m MatchRule) Matches(body string) bool {
	if m.Body != nil {
		return body == *m.Body
	}
	if m.BodyContains != nil {
		return strings.Contains(body, *m.BodyContains)
	}
	return true // none, or unset: match any payload
}

type MqttSubscribeConfig struct {
	Topic     string    `yaml:"topic"`
	MatchRule MatchRule `yaml:"match_rule"`
	PoolID    string    `yaml:"pool_id"`
}

type MqttUnsubscribeConfig struct {
	Topic  string `yaml:"topic"`
	PoolID string `yaml:"pool_id"`
}

type MqttPublishConfig struct {
	Topic    string  `yaml:"topic"`
	Body     *string `yaml:"body"`
	Template *string `yaml:"template"`
	PoolID   string  `yaml:"pool_id"`
}

type FileReadConfig struct {
	Path     string `yaml:"path"`
	DataType string `yaml:"data_type"` // text | bytes | json
}

type FileWriteConfig struct {
	Path     string `yaml:"path"`
	Truncate bool   `yaml:"truncate"` // default false: append
}

type ApiCallConfig struct {
	URL             string            `yaml:"url"`
	Method          string            `yaml:"method"`
	Headers         map[string]string `yaml:"headers"`
	RequestContent  string            `yaml:"request_content"`  // json | text | bytes
	ResponseContent string            `yaml:"response_content"` // json | text | bytes
}

type ApiListenConfig struct {
	Path            string   `yaml:"path"`
	Method          string   `yaml:"method"`
	RequestContent  string   `yaml:"request_content"`
	ResponseContent string   `yaml:"response_content"`
	ResponseBody    string   `yaml:"response_body"`
	PoolID          string   `yaml:"pool_id"`
	RateLimit       *float64 `yaml:"rate_limit"` // requests/sec; unset means unlimited
	Burst           *int     `yaml:"burst"`
}

type FileChangedConfig struct {
	Path string `yaml:"path"`
	When string `yaml:"when"` // created | written | removed
}

type WatchConfig struct {
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive"`
	Action    string `yaml:"action"` // start | stop
}

type PeriodConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type ExecuteConfig struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	ReplaceArgs map[int]string    `yaml:"replace_args"`
	Vars        map[string]string `yaml:"vars"`
	DataType    string            `yaml:"data_type"`
}

type ScanCodeReadConfig struct {
	Device string `yaml:"device"`
	Code   int    `yaml:"code"`
}

type PrintConfig struct {
	Stream string `yaml:"stream"` // stdout | stderr
}

type StateConfig struct {
	Count   *string           `yaml:"count"`
	Replace map[string]string `yaml:"replace"`
}

// DataLiteral is a literal `data:` fragment from the config document. It may
// be a plain scalar string or a structured mapping; ToData converts it into
// the runtime Data representation used by the payload pipeline.
type DataLiteral struct {
	Text       string
	IsText     bool
	Structured map[string]interface{}
}

func (d *DataLiteral) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		d.Text = asString
		d.IsText = true
		return nil
	}
	var asMap map[string]interface{}
	if err := unmarshal(&asMap); err != nil {
		return fmt.Errorf("data: must be a string or a mapping: %w", err)
	}
	d.Structured = asMap
	return nil
}
