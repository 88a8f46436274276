package signals

import (
	"math"
	"reflect"
	"testing"
)

func TestAggregateStrengthEmpty(t *testing.T) {
	if got := AggregateStrength(nil); got != 0 {
		t.Errorf("AggregateStrength(nil) = %v, want 0", got)
	}
}

func TestAggregateStrengthSingle(t *testing.T) {
	sigs := []Signal{{Type: TypeLoanNeed, Strength: 80}}
	if got := AggregateStrength(sigs); got != 80 {
		t.Errorf("single signal strength = %v, want 80 (no corroboration bonus)", got)
	}
}

func TestAggregateStrengthCorroboration(t *testing.T) {
	cases := []struct {
		name      string
		strengths []float64
		want      float64
	}{
		{"two signals", []float64{80, 60}, 80},    // mean 70 + min(20, 10)
		{"three signals", []float64{60, 60, 60}, 75}, // mean 60 + min(20, 15)
		{"bonus capped", []float64{50, 50, 50, 50, 50}, 70}, // mean 50 + min(20, 25)
		{"total capped", []float64{100, 100, 100, 100, 100}, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sigs := make([]Signal, len(tc.strengths))
			for i, s := range tc.strengths {
				sigs[i] = Signal{Type: TypeLoanNeed, Strength: s}
			}
			if got := AggregateStrength(sigs); got != tc.want {
				t.Errorf("AggregateStrength = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntentScoreEmpty(t *testing.T) {
	if got := IntentScore(nil); got != 0 {
		t.Errorf("IntentScore(nil) = %v, want 0", got)
	}
}

func TestIntentScoreDistressDominates(t *testing.T) {
	distress := []Signal{{Type: TypeFinancialDistress, Strength: 90}}
	growth := []Signal{{Type: TypeGrowth, Strength: 90}}

	d := IntentScore(distress)
	g := IntentScore(growth)

	// 90 * 1.8 / 180 * 100 = 90
	if math.Abs(d-90) > 1e-9 {
		t.Errorf("distress intent = %v, want 90", d)
	}
	// 90 * 1.2 / 180 * 100 = 60
	if math.Abs(g-60) > 1e-9 {
		t.Errorf("growth intent = %v, want 60", g)
	}
	if d <= g {
		t.Errorf("distress (%v) should outrank growth (%v)", d, g)
	}
}

func TestIntentScoreRange(t *testing.T) {
	sigs := []Signal{
		{Type: TypeFinancialDistress, Strength: 100},
		{Type: TypeLoanNeed, Strength: 100},
		{Type: TypeExpansion, Strength: 100},
	}
	got := IntentScore(sigs)
	if got < 0 || got > 100 {
		t.Errorf("IntentScore = %v, outside [0,100]", got)
	}
}

func TestNeedsIdentified(t *testing.T) {
	sigs := []Signal{
		{Type: TypeLoanNeed, Strength: 60},
		{Type: TypeLoanNeed, Strength: 80}, // duplicate type collapses
		{Type: TypeConsultingNeed, Strength: 60},
		{Type: TypeExpansion, Strength: 60},
	}

	got := NeedsIdentified(sigs)
	want := []string{"business_consulting", "business_loan", "expansion_financing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NeedsIdentified = %v, want %v", got, want)
	}
}

func TestNeedsIdentifiedEmpty(t *testing.T) {
	if got := NeedsIdentified(nil); len(got) != 0 {
		t.Errorf("NeedsIdentified(nil) = %v, want empty", got)
	}
}
