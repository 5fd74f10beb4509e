package timewheel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	sunrisecalc "github.com/nathan-osman/go-sunrise"
	"github.com/songokas/hvents/pkg/models"
)

// ParseSpec resolves a time/repeat specification into the
// next absolute instant it denotes, as observed from now. loc supplies the
// coordinates sunrise/sunset expressions are computed against; nil rejects
// sunrise/sunset specs.
func ParseSpec(spec string, now time.Time, loc *models.LocationConfig) (time.Time, error) {
	spec = strings.TrimSpace(spec)

	if rel, ok := strings.CutPrefix(spec, "in "); ok {
		return parseRelative(rel, now)
	}

	if strings.Contains(spec, "sunrise") || strings.Contains(spec, "sunset") {
		return parseSunriseSunset(spec, now, loc)
	}

	if t, ok := parseClockTime(spec, now); ok {
		return t, nil
	}

	parsed, err := dateparse.ParseLocal(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time spec %q: %w", spec, err)
	}
	return parsed, nil
}

// InPeriod reports whether now's time-of-day falls within [from, to), both
// "HH:MM[:SS]" clock times. A period that wraps past midnight (from > to,
// e.g. "23:00".."05:00") is satisfied by either side of the wrap.
func InPeriod(cfg models.PeriodConfig, now time.Time) (bool, error) {
	from, err := parseClockOfDay(cfg.From)
	if err != nil {
		return false, fmt.Errorf("period.from %q: %w", cfg.From, err)
	}
	to, err := parseClockOfDay(cfg.To)
	if err != nil {
		return false, fmt.Errorf("period.to %q: %w", cfg.To, err)
	}

	cur := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if from <= to {
		return cur >= from && cur < to, nil
	}
	return cur >= from || cur < to, nil
}

func parseClockOfDay(spec string) (int, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected HH:MM[:SS]")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour")
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute")
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second")
		}
	}
	return hour*3600 + minute*60 + second, nil
}

// parseClockTime handles the "HH:MM[:SS]" form: if the resulting instant
// today has already passed, it rolls over to tomorrow.
func parseClockTime(spec string, now time.Time) (time.Time, bool) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return time.Time{}, false
		}
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, true
}

func parseRelative(rel string, now time.Time) (time.Time, error) {
	fields := strings.Fields(rel)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("relative time spec must be \"N unit\", got %q", rel)
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("relative time spec amount %q is not a number", fields[0])
	}
	unit := strings.TrimSuffix(strings.ToLower(fields[1]), "s")
	var d time.Duration
	switch unit {
	case "second":
		d = time.Duration(n * float64(time.Second))
	case "minute":
		d = time.Duration(n * float64(time.Minute))
	case "hour":
		d = time.Duration(n * float64(time.Hour))
	case "day":
		d = time.Duration(n * float64(24*time.Hour))
	default:
		return time.Time{}, fmt.Errorf("unrecognized relative time unit %q", fields[1])
	}
	return now.Add(d), nil
}

// parseSunriseSunset handles "sunrise", "sunset", and "sunrise in N units" /
// "sunset in N units" forms, advancing to tomorrow's occurrence if today's
// has already passed.
func parseSunriseSunset(spec string, now time.Time, loc *models.LocationConfig) (time.Time, error) {
	if loc == nil {
		return time.Time{}, fmt.Errorf("sunrise/sunset spec %q requires a configured location", spec)
	}

	wantSunrise := strings.HasPrefix(spec, "sunrise")
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(spec, "sunrise"), "sunset"))

	var offset time.Duration
	if rest != "" {
		if after, ok := strings.CutPrefix(rest, "in "); ok {
			t, err := parseRelative(after, time.Time{})
			if err != nil {
				return time.Time{}, err
			}
			offset = t.Sub(time.Time{})
		} else {
			return time.Time{}, fmt.Errorf("unrecognized sunrise/sunset offset %q", rest)
		}
	}

	occurrence := func(day time.Time) time.Time {
		rise, set := sunrisecalc.SunriseSunset(loc.Latitude, loc.Longitude, day.Year(), day.Month(), day.Day())
		if wantSunrise {
			return rise.In(now.Location()).Add(offset)
		}
		return set.In(now.Location()).Add(offset)
	}

	candidate := occurrence(now)
	if !candidate.After(now) {
		candidate = occurrence(now.AddDate(0, 0, 1))
	}
	return candidate, nil
}
