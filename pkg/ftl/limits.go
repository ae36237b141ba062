package ftl

import (
	"fmt"
	"strings"
)

// Level is an admission-control level derived from the free band count.
// Lower levels are more severe.
type Level int

const (
	LevelCrit Level = iota
	LevelHigh
	LevelLow
	LevelStart

	// LevelNone means enough bands are free that writes are not throttled.
	LevelNone
)

// NumLevels is the number of throttling levels (LevelNone excluded).
const NumLevels = int(LevelNone)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "crit"
	case LevelHigh:
		return "high"
	case LevelLow:
		return "low"
	case LevelStart:
		return "start"
	case LevelNone:
		return "none"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses a level name as printed by String.
func ParseLevel(s string) (Level, error) {
	for l := LevelCrit; l <= LevelNone; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown limit level %q", s)
}

// LimitThresholds holds, per level, the percentage of usable bands at or
// under which the level applies.
type LimitThresholds [NumLevels]uint64

// DefaultLimitThresholds returns 1/2/3/5 percent for crit/high/low/start.
func DefaultLimitThresholds() LimitThresholds {
	return LimitThresholds{1, 2, 3, 5}
}

// Validate checks that thresholds are at most 100 and non-decreasing from
// crit to start.
func (t LimitThresholds) Validate() error {
	for i, pct := range t {
		if pct > 100 {
			return fmt.Errorf("%s threshold %d%% exceeds 100%%", Level(i), pct)
		}
		if i > 0 && pct < t[i-1] {
			return fmt.Errorf("%s threshold %d%% below %s threshold %d%%",
				Level(i), pct, Level(i-1), t[i-1])
		}
	}
	return nil
}

// Limits tracks the admission-control level of a device.
type Limits struct {
	thresholds LimitThresholds
	bands      [NumLevels]uint64
	level      Level
	hits       [NumLevels]uint64
}

// NewLimits returns limits using the given thresholds.
func NewLimits(t LimitThresholds) *Limits {
	return &Limits{thresholds: t, level: LevelNone}
}

// Apply recomputes the current level from numFree out of numBands usable
// bands. The selected level is the most severe one whose band threshold
// numFree is at or under.
func (l *Limits) Apply(numFree, numBands uint64) Level {
	for i, pct := range l.thresholds {
		l.bands[i] = numBands * pct / 100
	}

	l.level = LevelNone
	for i := range l.bands {
		if numFree <= l.bands[i] {
			l.level = Level(i)
			l.hits[i]++
			break
		}
	}
	return l.level
}

// Level returns the level selected by the last Apply.
func (l *Limits) Level() Level {
	return l.level
}

// Threshold returns the band count at or under which lvl applies, as of the
// last Apply.
func (l *Limits) Threshold(lvl Level) uint64 {
	if lvl < 0 || lvl >= LevelNone {
		return 0
	}
	return l.bands[lvl]
}

// Hits returns how many Apply calls selected lvl.
func (l *Limits) Hits(lvl Level) uint64 {
	if lvl < 0 || lvl >= LevelNone {
		return 0
	}
	return l.hits[lvl]
}
