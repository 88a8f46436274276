package signals

import "testing"

func findByType(sigs []Signal, t Type) (Signal, bool) {
	for _, s := range sigs {
		if s.Type == t {
			return s, true
		}
	}
	return Signal{}, false
}

func TestDetectFromTextBaseStrength(t *testing.T) {
	sigs := DetectFromText("We are looking at financing options for new equipment.", "web_form")

	sig, ok := findByType(sigs, TypeLoanNeed)
	if !ok {
		t.Fatalf("expected loan_need signal, got %v", sigs)
	}
	if sig.Strength != 60 {
		t.Errorf("base strength = %v, want 60", sig.Strength)
	}
	if sig.Confidence != 85 {
		t.Errorf("loan library confidence = %v, want 85", sig.Confidence)
	}
	if sig.Category != CategoryKeyword {
		t.Errorf("category = %v, want keyword", sig.Category)
	}
	if sig.Source != "web_form" {
		t.Errorf("source = %q, want web_form", sig.Source)
	}
}

func TestDetectFromTextBonuses(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{
			name: "urgency",
			text: "We urgently need a business loan.",
			want: 75, // 60 + 15
		},
		{
			name: "urgency and amount",
			text: "We urgently need a business loan of $50,000.",
			want: 85, // 60 + 15 + 10
		},
		{
			name: "urgency, amount and phone",
			text: "We urgently need a business loan of $50,000. Call 555-123-4567.",
			want: 95,
		},
		{
			name: "all bonuses capped",
			text: "We urgently need a business loan of $50,000. Call 555-123-4567 or mail owner@acme.com.",
			want: 100, // 105 capped
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sigs := DetectFromText(tc.text, "test")
			sig, ok := findByType(sigs, TypeLoanNeed)
			if !ok {
				t.Fatalf("expected loan_need signal, got %v", sigs)
			}
			if sig.Strength != tc.want {
				t.Errorf("strength = %v, want %v", sig.Strength, tc.want)
			}
		})
	}
}

func TestDetectFromTextDistress(t *testing.T) {
	sigs := DetectFromText("We have cash flow problems and are behind on payments.", "email")

	sig, ok := findByType(sigs, TypeFinancialDistress)
	if !ok {
		t.Fatalf("expected financial_distress signal, got %v", sigs)
	}
	if sig.Confidence != 90 {
		t.Errorf("distress confidence = %v, want 90", sig.Confidence)
	}
	if sig.Category != CategoryProblemIndicator {
		t.Errorf("category = %v, want problem_indicator", sig.Category)
	}
}

func TestDetectFromTextMultipleLibraries(t *testing.T) {
	text := "We are growing fast and opening a second location, so we need a loan."
	sigs := DetectFromText(text, "test")

	for _, want := range []Type{TypeGrowth, TypeExpansion, TypeLoanNeed} {
		if _, ok := findByType(sigs, want); !ok {
			t.Errorf("expected %s signal in %v", want, sigs)
		}
	}
}

func TestDetectFromTextEmpty(t *testing.T) {
	if got := DetectFromText("   ", "test"); got != nil {
		t.Errorf("expected no signals for blank text, got %v", got)
	}
	if got := DetectFromText("nothing interesting here", "test"); got != nil {
		t.Errorf("expected no signals for neutral text, got %v", got)
	}
}

func TestDetectFromBehavior(t *testing.T) {
	cases := []struct {
		name           string
		behavior       string
		wantType       Type
		wantStrength   float64
		wantConfidence float64
	}{
		{"loan calculator", `{"pages":["/tools/loan calculator"]}`, TypeLoanNeed, 85, 90},
		{"application page", `visited: loan application step 2`, TypeLoanNeed, 75, 85},
		{"pricing", `{"path":"/pricing","session":"abc"}`, TypeConsultingNeed, 70, 80},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sigs := DetectFromBehavior(tc.behavior, "tracker")
			sig, ok := findByType(sigs, tc.wantType)
			if !ok {
				t.Fatalf("expected %s signal, got %v", tc.wantType, sigs)
			}
			if sig.Strength != tc.wantStrength || sig.Confidence != tc.wantConfidence {
				t.Errorf("got %v/%v, want %v/%v", sig.Strength, sig.Confidence, tc.wantStrength, tc.wantConfidence)
			}
			if sig.Category != CategoryBehavior {
				t.Errorf("category = %v, want behavior", sig.Category)
			}
		})
	}
}

func TestDetectFromBehaviorEmpty(t *testing.T) {
	if got := DetectFromBehavior("", "tracker"); got != nil {
		t.Errorf("expected no signals for empty behavior, got %v", got)
	}
}
