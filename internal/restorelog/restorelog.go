// Package restorelog persists the time wheel's pending entries to a
// directory so they survive process restarts. Only time/repeat
// entries are restored (period events never enter the wheel); subscriptions and listeners re-establish from
// start_with.
package restorelog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/timewheel"
	"github.com/songokas/hvents/pkg/models"
)

const fileSuffix = ".json"
const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// Log writes one file per identity under dir, atomically.
type Log struct {
	dir string
}

// New returns a restore log rooted at dir. An empty dir disables
// persistence entirely; callers should check Enabled before calling Write.
func New(dir string) *Log { return &Log{dir: dir} }

func (l *Log) Enabled() bool { return l.dir != "" }

type record struct {
	Identity  string `json:"identity"`
	EventName string `json:"event_name"`
	FireAt    string `json:"fire_at"`
	Repeat    string `json:"repeat,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Write persists spec as dir/<hash(identity)>.json via write-temp-then-rename.
func (l *Log) Write(spec timewheel.Spec) error {
	if !l.Enabled() {
		return nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("restore log: create dir: %w", err)
	}

	rec := record{
		Identity:  spec.Identity,
		EventName: spec.EventName,
		FireAt:    spec.FireAt.Format(timeLayout),
		Repeat:    spec.Repeat,
		Data:      spec.Payload.Data.AsBytes(),
		Metadata:  spec.Payload.Metadata,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("restore log: marshal %q: %w", spec.Identity, err)
	}

	path := l.pathFor(spec.Identity)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("restore log: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("restore log: rename into place: %w", err)
	}
	return nil
}

// Remove deletes the persisted record for identity, if any.
func (l *Log) Remove(identity string) {
	if !l.Enabled() {
		return
	}
	if err := os.Remove(l.pathFor(identity)); err != nil && !os.IsNotExist(err) {
		logger.L().Error("restore log: failed to remove entry", "identity", identity, "error", err)
	}
}

// Replay reads every persisted record in dir, reattaching state to each
// recovered spec's payload since the shared live map is never itself
// persisted. Corrupt entries are logged and skipped individually, never
// aborting the whole replay.
func (l *Log) Replay(state *models.StateMap) ([]timewheel.Spec, error) {
	if !l.Enabled() {
		return nil, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("restore log: read dir: %w", err)
	}

	var specs []timewheel.Spec
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		spec, err := readRecord(path)
		if err != nil {
			logger.L().Error("restore log: skipping corrupt entry", "path", path, "error", err)
			continue
		}
		spec.Payload.State = state
		specs = append(specs, spec)
	}
	return specs, nil
}

func readRecord(path string) (timewheel.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timewheel.Spec{}, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return timewheel.Spec{}, err
	}
	fireAt, err := parseTime(rec.FireAt)
	if err != nil {
		return timewheel.Spec{}, err
	}
	return timewheel.Spec{
		Identity:  rec.Identity,
		EventName: rec.EventName,
		FireAt:    fireAt,
		Repeat:    rec.Repeat,
		Payload: models.Payload{
			Data:     models.BytesData(rec.Data),
			Metadata: rec.Metadata,
		},
	}, nil
}

func (l *Log) pathFor(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return filepath.Join(l.dir, hex.EncodeToString(sum[:])+fileSuffix)
}
