// Package state applies StateOp effects (count/replace) to the process-wide
// models.StateMap shared by every payload.
package state

import (
	"math"
	"strconv"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Apply mutates m according to cfg, logging each change. Count increments
// the integer stored at the named key (stored as a decimal string,
// saturating at the int64 bounds instead of wrapping on overflow) and
// publishes the result back under the same key. Replace overwrites each
// named key with its literal value.
func Apply(m *models.StateMap, cfg models.StateConfig) {
	if cfg.Count != nil {
		applyCount(m, *cfg.Count)
	}
	for key, value := range cfg.Replace {
		m.Set(key, value)
		logger.L().Debug("state replaced", "key", key, "value", value)
	}
}

func applyCount(m *models.StateMap, key string) {
	current := int64(0)
	if v, ok := m.Get(key); ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			current = parsed
		} else {
			logger.L().Warn("state count key held a non-integer value, resetting to 0", "key", key, "value", v)
		}
	}

	next := addSaturating(current, 1)
	m.Set(key, strconv.FormatInt(next, 10))
	logger.L().Debug("state count updated", "key", key, "value", next)
}

func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}
