package triage

import "testing"

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestEvaluate_ChestPainAlwaysCritical(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	cases := []Vitals{
		{ChestPain: true},
		{ChestPain: true, OxygenSaturation: fp(99), HeartRate: ip(70)},
		{ChestPain: true, HeartRate: ip(60), SystolicBP: ip(120), Temperature: fp(36.8)},
	}
	for i, v := range cases {
		if got := e.Evaluate(v); got != LevelCritical {
			t.Errorf("case %d: got %s, want CRITICAL", i, got)
		}
	}
}

func TestEvaluate_LowOxygenAlwaysCritical(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	for _, spo2 := range []float64{50, 85, 89.9} {
		v := Vitals{OxygenSaturation: fp(spo2), HeartRate: ip(72), SystolicBP: ip(118)}
		if got := e.Evaluate(v); got != LevelCritical {
			t.Errorf("SpO2=%.1f: got %s, want CRITICAL", spo2, got)
		}
	}

	// Exactly at the cutoff is not critical.
	v := Vitals{OxygenSaturation: fp(90)}
	if got := e.Evaluate(v); got == LevelCritical {
		t.Errorf("SpO2=90 should not be CRITICAL, got %s", got)
	}
}

func TestEvaluate_SecondaryBands(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	cases := []struct {
		name string
		v    Vitals
		want Level
	}{
		{"tachycardia extreme", Vitals{HeartRate: ip(160)}, LevelHigh},
		{"bradycardia extreme", Vitals{HeartRate: ip(35)}, LevelHigh},
		{"hypertensive crisis", Vitals{SystolicBP: ip(190)}, LevelHigh},
		{"hypotension", Vitals{SystolicBP: ip(75)}, LevelHigh},
		{"hyperpyrexia", Vitals{Temperature: fp(40.5)}, LevelHigh},
		{"borderline hypoxia", Vitals{OxygenSaturation: fp(91)}, LevelHigh},
		{"moderate tachycardia", Vitals{HeartRate: ip(130)}, LevelMedium},
		{"elevated systolic", Vitals{SystolicBP: ip(165)}, LevelMedium},
		{"elevated diastolic", Vitals{DiastolicBP: ip(105)}, LevelMedium},
		{"fever", Vitals{Temperature: fp(39)}, LevelMedium},
		{"mild desaturation", Vitals{OxygenSaturation: fp(93)}, LevelMedium},
		{"normal vitals", Vitals{HeartRate: ip(72), SystolicBP: ip(120), DiastolicBP: ip(80), Temperature: fp(36.9), OxygenSaturation: fp(98)}, LevelLow},
	}
	for _, tc := range cases {
		if got := e.Evaluate(tc.v); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestEvaluate_MissingVitalsDoNotTrigger(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	if got := e.Evaluate(Vitals{}); got != LevelLow {
		t.Errorf("empty vitals: got %s, want LOW", got)
	}
}

func TestEvaluate_CustomPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.CriticalOxygenBelow = 85

	e := NewEvaluator(p)
	if got := e.Evaluate(Vitals{OxygenSaturation: fp(87)}); got == LevelCritical {
		t.Errorf("SpO2=87 with cutoff 85: got CRITICAL, want non-critical")
	}
	if got := e.Evaluate(Vitals{OxygenSaturation: fp(84)}); got != LevelCritical {
		t.Errorf("SpO2=84 with cutoff 85: got %s, want CRITICAL", got)
	}
}

func TestLevelRank(t *testing.T) {
	order := []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank below %s", order[i-1], order[i])
		}
	}
	if Level("BOGUS").Valid() {
		t.Error("unknown level should not be valid")
	}
}
