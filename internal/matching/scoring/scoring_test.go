package scoring

import (
	"math"
	"strings"
	"testing"

	catalogrepo "leadmatch_backend/internal/catalog/repository"
	leadrepo "leadmatch_backend/internal/leads/repository"
	"leadmatch_backend/internal/signals"
)

func strPtr(s string) *string { return &s }

func TestGeographic(t *testing.T) {
	tests := []struct {
		name    string
		city    string
		state   string
		country string
		targets []string
		want    float64
	}{
		{"no restriction", "Austin", "TX", "USA", nil, 100},
		{"nationwide", "Austin", "TX", "USA", []string{"nationwide"}, 100},
		{"global", "Berlin", "", "Germany", []string{"Global"}, 100},
		{"exact city", "Austin", "TX", "USA", []string{"Dallas", "Austin"}, 100},
		{"state abbreviation", "Houston", "TX", "USA", []string{"Texas"}, 85},
		{"state full name vs abbrev target", "Houston", "Texas", "USA", []string{"TX"}, 85},
		{"country only", "Portland", "OR", "USA", []string{"USA"}, 70},
		{"no overlap", "Miami", "FL", "USA", []string{"California"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Geographic(tc.city, tc.state, tc.country, tc.targets); got != tc.want {
				t.Errorf("Geographic() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIndustry(t *testing.T) {
	tests := []struct {
		name     string
		industry *string
		targets  []string
		want     float64
	}{
		{"no targets", strPtr("retail"), nil, 100},
		{"wildcard all", strPtr("retail"), []string{"all"}, 100},
		{"unknown industry", nil, []string{"technology"}, 50},
		{"blank industry", strPtr("  "), []string{"technology"}, 50},
		{"exact", strPtr("technology"), []string{"technology"}, 100},
		{"substring", strPtr("tech"), []string{"technology"}, 80},
		{"same group", strPtr("saas"), []string{"software"}, 60},
		{"floor never zero", strPtr("agriculture"), []string{"technology"}, 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Industry(tc.industry, tc.targets); got != tc.want {
				t.Errorf("Industry() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNeed(t *testing.T) {
	tests := []struct {
		name        string
		needs       []string
		serviceType string
		category    string
		want        float64
	}{
		{"no needs floor", nil, "business_loan", "", 40},
		{"direct type match", []string{"business_loan"}, "business_loan", "", 100},
		{"substring match", []string{"business_loan"}, "loan", "", 100},
		{"category equality", []string{"funding"}, "invoice_factoring", "funding", 90},
		{"related terms loan", []string{"business_loan"}, "equipment_financing", "", 80},
		{"related terms consulting", []string{"business_consulting"}, "strategy_sessions", "", 80},
		{"unrelated floor never zero", []string{"business_loan"}, "web_design", "", 40},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Need(tc.needs, tc.serviceType, tc.category); got != tc.want {
				t.Errorf("Need() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProfileMinCompounding(t *testing.T) {
	base := leadrepo.Lead{Type: leadrepo.TypeConsumer, CompanySize: strPtr("11-50")}

	tests := []struct {
		name    string
		lead    leadrepo.Lead
		service catalogrepo.ServiceOffering
		want    float64
	}{
		{"no restrictions", base, catalogrepo.ServiceOffering{}, 100},
		{
			"audience mismatch",
			base,
			catalogrepo.ServiceOffering{TargetAudience: "business"},
			30,
		},
		{
			"size mismatch",
			base,
			catalogrepo.ServiceOffering{TargetCompanySizes: []string{"1-10"}},
			60,
		},
		{
			"revenue floor",
			base,
			catalogrepo.ServiceOffering{Requirements: map[string]any{"min_revenue": 500000}},
			80,
		},
		{
			"worst violation dominates",
			base,
			catalogrepo.ServiceOffering{
				TargetAudience:     "business",
				TargetCompanySizes: []string{"1-10"},
				Requirements:       map[string]any{"min_revenue": 500000},
			},
			30,
		},
		{
			"unknown size passes declared sizes",
			leadrepo.Lead{Type: leadrepo.TypeBusiness},
			catalogrepo.ServiceOffering{TargetCompanySizes: []string{"1-10"}},
			100,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Profile(tc.lead, tc.service); got != tc.want {
				t.Errorf("Profile() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBehavioral(t *testing.T) {
	if got := Behavioral(0, 0, 0); got != 0 {
		t.Errorf("no signals should score 0, got %v", got)
	}
	if got := Behavioral(80, 75, 0); got != 78 {
		t.Errorf("Behavioral(80,75,0) = %v, want 78", got)
	}
	// 0.6*80+0.4*75 = 78, plus 3*2 = 84.
	if got := Behavioral(80, 75, 2); got != 84 {
		t.Errorf("Behavioral(80,75,2) = %v, want 84", got)
	}
	// Bonus caps at 20.
	if got := Behavioral(80, 75, 50); got != 98 {
		t.Errorf("Behavioral(80,75,50) = %v, want 98", got)
	}
	if got := Behavioral(100, 100, 50); got != 100 {
		t.Errorf("Behavioral(100,100,50) = %v, want 100 (cap)", got)
	}
}

func TestScoreEndToEnd(t *testing.T) {
	lead := leadrepo.Lead{
		Type:            leadrepo.TypeBusiness,
		City:            "Austin",
		State:           "TX",
		Country:         "USA",
		Industry:        strPtr("technology"),
		NeedsIdentified: []string{"business_loan"},
		SignalStrength:  80,
		IntentScore:     75,
	}
	service := catalogrepo.ServiceOffering{
		Name:             "Growth Capital Loans",
		ServiceType:      "business_loan",
		TargetIndustries: []string{"technology", "saas"},
		TargetLocations:  []string{"nationwide"},
	}

	r := Score(lead, service)

	if r.GeographicScore != 100 || r.IndustryScore != 100 || r.NeedScore != 100 || r.ProfileScore != 100 {
		t.Errorf("component scores = geo:%v ind:%v need:%v prof:%v, want all 100",
			r.GeographicScore, r.IndustryScore, r.NeedScore, r.ProfileScore)
	}
	if r.BehavioralScore != 78 {
		t.Errorf("behavioral = %v, want 78", r.BehavioralScore)
	}
	if math.Abs(r.MatchScore-96.7) > 0.01 {
		t.Errorf("match score = %v, want ≈96.7", r.MatchScore)
	}
	if r.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %v, want high", r.Confidence)
	}
	if r.Priority != PriorityUrgent {
		t.Errorf("priority = %v, want urgent", r.Priority)
	}
	if len(r.Reasons) == 0 {
		t.Error("expected reasons for a near-perfect match")
	}
}

func TestScoreReasonsFallback(t *testing.T) {
	// Everything mediocre: no component crosses its notable threshold.
	lead := leadrepo.Lead{
		Type:     leadrepo.TypeBusiness,
		City:     "Miami",
		State:    "FL",
		Country:  "USA",
		Industry: strPtr("agriculture"),
	}
	service := catalogrepo.ServiceOffering{
		ServiceType:      "web_design",
		TargetIndustries: []string{"technology"},
		TargetLocations:  []string{"California"},
		TargetAudience:   "consumer",
	}
	r := Score(lead, service)
	if len(r.Reasons) != 1 {
		t.Fatalf("reasons = %v, want single fallback", r.Reasons)
	}
	if !strings.HasPrefix(r.Reasons[0], "overall compatibility score") {
		t.Errorf("reason = %q, want the generic fallback", r.Reasons[0])
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("confidence = %v, want low", r.Confidence)
	}
}

func TestScoreRangeProperty(t *testing.T) {
	leads := []leadrepo.Lead{
		{},
		{Type: leadrepo.TypeConsumer, SignalStrength: 100, IntentScore: 100,
			SignalsDetected: make([]signals.Signal, 30)},
		{City: "Austin", State: "TX", Country: "USA", Industry: strPtr("retail"),
			NeedsIdentified: []string{"business_loan", "business_consulting"},
			SignalStrength:  55, IntentScore: 40,
			SignalsDetected: make([]signals.Signal, 3)},
	}
	services := []catalogrepo.ServiceOffering{
		{},
		{ServiceType: "business_loan", TargetLocations: []string{"nationwide"},
			TargetIndustries: []string{"all"}},
		{ServiceType: "consulting", Category: "advisory",
			TargetLocations: []string{"California"}, TargetIndustries: []string{"technology"},
			TargetAudience: "business", TargetCompanySizes: []string{"1-10"},
			Requirements: map[string]any{"min_revenue": 1000000}},
	}

	for _, lead := range leads {
		for _, service := range services {
			r := Score(lead, service)
			for name, score := range map[string]float64{
				"match":      r.MatchScore,
				"geographic": r.GeographicScore,
				"industry":   r.IndustryScore,
				"need":       r.NeedScore,
				"profile":    r.ProfileScore,
				"behavioral": r.BehavioralScore,
			} {
				if score < 0 || score > 100 {
					t.Errorf("%s score %v out of [0,100] for lead=%+v service=%+v",
						name, score, lead, service)
				}
			}
		}
	}
}
