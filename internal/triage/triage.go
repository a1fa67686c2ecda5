// Package triage classifies a patient's recorded vitals into an ordinal
// urgency level. Evaluation is a pure function over a threshold policy; it
// has no side effects and missing readings never trigger a rule.
package triage

// Level is an ordinal urgency classification.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Rank returns the ordinal position of the level (LOW=0 .. CRITICAL=3).
// Unknown levels rank below LOW.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	}
	return -1
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	return l.Rank() >= 0
}

// Vitals is a snapshot of a patient's recorded vital signs. Nil pointers
// mean the reading was not taken.
type Vitals struct {
	OxygenSaturation *float64 // SpO2 percentage
	HeartRate        *int     // beats per minute
	SystolicBP       *int     // mmHg
	DiastolicBP      *int     // mmHg
	Temperature      *float64 // Celsius
	ChestPain        bool
}

// Band is one row of the secondary threshold table. A zero-valued field is
// an unset threshold and never matches.
type Band struct {
	HeartRateAbove   int
	HeartRateBelow   int
	SystolicAbove    int
	SystolicBelow    int
	DiastolicAbove   int
	TemperatureAbove float64
	OxygenBelow      float64
}

func (b Band) matches(v Vitals) bool {
	if v.HeartRate != nil {
		if b.HeartRateAbove > 0 && *v.HeartRate > b.HeartRateAbove {
			return true
		}
		if b.HeartRateBelow > 0 && *v.HeartRate < b.HeartRateBelow {
			return true
		}
	}
	if v.SystolicBP != nil {
		if b.SystolicAbove > 0 && *v.SystolicBP > b.SystolicAbove {
			return true
		}
		if b.SystolicBelow > 0 && *v.SystolicBP < b.SystolicBelow {
			return true
		}
	}
	if v.DiastolicBP != nil && b.DiastolicAbove > 0 && *v.DiastolicBP > b.DiastolicAbove {
		return true
	}
	if v.Temperature != nil && b.TemperatureAbove > 0 && *v.Temperature > b.TemperatureAbove {
		return true
	}
	if v.OxygenSaturation != nil && b.OxygenBelow > 0 && *v.OxygenSaturation < b.OxygenBelow {
		return true
	}
	return false
}

// Policy is the threshold table driving evaluation. The critical rule is
// fixed in shape (chest pain or low SpO2) but its SpO2 cutoff is tunable;
// the High and Medium bands are checked in that order.
type Policy struct {
	CriticalOxygenBelow float64
	High                Band
	Medium              Band
}

// DefaultPolicy returns the standard threshold table.
func DefaultPolicy() Policy {
	return Policy{
		CriticalOxygenBelow: 90,
		High: Band{
			HeartRateAbove:   150,
			HeartRateBelow:   40,
			SystolicAbove:    180,
			SystolicBelow:    80,
			TemperatureAbove: 40,
			OxygenBelow:      92,
		},
		Medium: Band{
			HeartRateAbove:   120,
			SystolicAbove:    160,
			DiastolicAbove:   100,
			TemperatureAbove: 38.5,
			OxygenBelow:      94,
		},
	}
}

// Evaluator applies a Policy to vitals snapshots.
type Evaluator struct {
	policy Policy
}

// NewEvaluator returns an Evaluator for the given policy.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Evaluate maps vitals to a triage level. Chest pain or oxygen saturation
// below the critical cutoff always yields CRITICAL regardless of other
// readings; otherwise the High and Medium bands are consulted in order.
func (e *Evaluator) Evaluate(v Vitals) Level {
	if v.ChestPain {
		return LevelCritical
	}
	if v.OxygenSaturation != nil && e.policy.CriticalOxygenBelow > 0 &&
		*v.OxygenSaturation < e.policy.CriticalOxygenBelow {
		return LevelCritical
	}
	if e.policy.High.matches(v) {
		return LevelHigh
	}
	if e.policy.Medium.matches(v) {
		return LevelMedium
	}
	return LevelLow
}
