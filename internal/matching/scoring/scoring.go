// Package scoring computes lead/service match scores. Everything here is
// pure: missing inputs degrade to neutral component scores instead of
// erroring, so a batch run never aborts on one bad pair.
package scoring

import (
	"fmt"
	"strings"

	catalogrepo "leadmatch_backend/internal/catalog/repository"
	"leadmatch_backend/internal/geo"
	leadrepo "leadmatch_backend/internal/leads/repository"
)

// Component weights. They sum to 1 so the composite stays in [0,100].
const (
	WeightGeographic = 0.25
	WeightIndustry   = 0.20
	WeightNeed       = 0.25
	WeightProfile    = 0.15
	WeightBehavioral = 0.15
)

// Floors keep weak matches visible instead of zeroing them out. This is a
// deliberate product decision: a lead in the wrong industry may still be
// worth a look, a lead with no matching need may develop one.
const (
	industryFloor        = 30
	industryUnknown      = 50
	needFloor            = 40
	profileAudiencePain  = 30
	profileSizePain      = 60
	profileRevenuePain   = 80
	behavioralBonusCap   = 20
	behavioralBonusScale = 3
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Result is the full outcome of scoring one lead against one service.
type Result struct {
	MatchScore      float64
	GeographicScore float64
	IndustryScore   float64
	NeedScore       float64
	ProfileScore    float64
	BehavioralScore float64
	Confidence      Confidence
	Priority        Priority
	Reasons         []string
}

// Score computes the weighted composite and its derived labels.
func Score(lead leadrepo.Lead, service catalogrepo.ServiceOffering) Result {
	r := Result{
		GeographicScore: Geographic(lead.City, lead.State, lead.Country, service.TargetLocations),
		IndustryScore:   Industry(lead.Industry, service.TargetIndustries),
		NeedScore:       Need(lead.NeedsIdentified, service.ServiceType, service.Category),
		ProfileScore:    Profile(lead, service),
		BehavioralScore: Behavioral(lead.SignalStrength, lead.IntentScore, len(lead.SignalsDetected)),
	}
	r.MatchScore = r.GeographicScore*WeightGeographic +
		r.IndustryScore*WeightIndustry +
		r.NeedScore*WeightNeed +
		r.ProfileScore*WeightProfile +
		r.BehavioralScore*WeightBehavioral

	r.Confidence = confidenceFor(r)
	r.Priority = priorityFor(r.MatchScore, lead.IntentScore)
	r.Reasons = reasonsFor(r)
	return r
}

// Geographic scores how well the lead's location fits the service's
// target locations. An empty target list or a nationwide/global entry
// means no restriction.
func Geographic(city, state, country string, targets []string) float64 {
	if len(targets) == 0 {
		return 100
	}

	best := 0.0
	for _, target := range targets {
		t := strings.ToLower(strings.TrimSpace(target))
		switch {
		case t == "" || t == "nationwide" || t == "global":
			return 100
		case city != "" && strings.EqualFold(t, city):
			return 100
		case geo.SameState(t, state):
			best = max(best, 85)
		case country != "" && strings.EqualFold(t, country):
			best = max(best, 70)
		}
	}
	return best
}

// Curated industry families. Two industries in the same family score a
// partial match even when the strings share nothing.
var industryGroups = [][]string{
	{"retail", "ecommerce", "e-commerce", "wholesale"},
	{"technology", "software", "saas", "it services"},
	{"healthcare", "medical", "dental", "wellness"},
	{"finance", "financial services", "insurance", "banking", "accounting"},
	{"manufacturing", "industrial", "construction", "logistics"},
	{"restaurant", "food service", "hospitality", "catering"},
}

// Industry never scores 0: an off-industry lead keeps a floor of 30, and
// an unknown industry scores neutral 50.
func Industry(leadIndustry *string, targets []string) float64 {
	if hasWildcard(targets) {
		return 100
	}
	if leadIndustry == nil || strings.TrimSpace(*leadIndustry) == "" {
		return industryUnknown
	}
	industry := strings.ToLower(strings.TrimSpace(*leadIndustry))

	best := float64(industryFloor)
	for _, target := range targets {
		t := strings.ToLower(strings.TrimSpace(target))
		switch {
		case t == industry:
			return 100
		case strings.Contains(t, industry) || strings.Contains(industry, t):
			best = max(best, 80)
		case sameIndustryGroup(industry, t):
			best = max(best, 60)
		}
	}
	return best
}

func hasWildcard(targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, target := range targets {
		t := strings.ToLower(strings.TrimSpace(target))
		if t == "all" || t == "any" {
			return true
		}
	}
	return false
}

func sameIndustryGroup(a, b string) bool {
	for _, group := range industryGroups {
		inA, inB := false, false
		for _, member := range group {
			if strings.Contains(a, member) {
				inA = true
			}
			if strings.Contains(b, member) {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// relatedNeedTerms links a need keyword to service vocabulary that serves
// the same underlying need.
var relatedNeedTerms = map[string][]string{
	"loan":              {"financing", "capital", "funding", "credit"},
	"consulting":        {"advice", "advisory", "strategy", "optimization"},
	"financial_service": {"accounting", "tax", "planning"},
}

// Need never scores 0 either; a lead with no matching need keeps a floor
// of 40.
func Need(needs []string, serviceType, category string) float64 {
	if len(needs) == 0 {
		return needFloor
	}
	st := strings.ToLower(strings.TrimSpace(serviceType))
	cat := strings.ToLower(strings.TrimSpace(category))

	best := float64(needFloor)
	for _, need := range needs {
		n := strings.ToLower(strings.TrimSpace(need))
		if n == "" {
			continue
		}
		switch {
		case st != "" && (strings.Contains(n, st) || strings.Contains(st, n)):
			return 100
		case cat != "" && n == cat:
			best = max(best, 90)
		case cat != "" && (strings.Contains(n, cat) || strings.Contains(cat, n)):
			best = max(best, 85)
		case relatedNeed(n, st) || relatedNeed(n, cat):
			best = max(best, 80)
		}
	}
	return best
}

func relatedNeed(need, serviceTerm string) bool {
	if serviceTerm == "" {
		return false
	}
	for keyword, related := range relatedNeedTerms {
		if !strings.Contains(need, keyword) {
			continue
		}
		for _, term := range related {
			if strings.Contains(serviceTerm, term) {
				return true
			}
		}
	}
	return false
}

// Profile starts at 100 and is only ever lowered with min(), so the worst
// single violation dominates and violations never stack below it.
func Profile(lead leadrepo.Lead, service catalogrepo.ServiceOffering) float64 {
	score := 100.0

	audience := strings.ToLower(strings.TrimSpace(service.TargetAudience))
	if audience == string(leadrepo.TypeConsumer) || audience == string(leadrepo.TypeBusiness) {
		if string(lead.Type) != audience {
			score = min(score, profileAudiencePain)
		}
	}

	if len(service.TargetCompanySizes) > 0 && lead.CompanySize != nil {
		if !containsFold(service.TargetCompanySizes, *lead.CompanySize) {
			score = min(score, profileSizePain)
		}
	}

	if hasRevenueFloor(service.Requirements) {
		// Revenue is never observable from our side, so a floor
		// requirement always counts against the pair.
		score = min(score, profileRevenuePain)
	}

	return score
}

func containsFold(haystack []string, needle string) bool {
	for _, item := range haystack {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func hasRevenueFloor(requirements map[string]any) bool {
	for key := range requirements {
		k := strings.ToLower(key)
		if strings.Contains(k, "revenue") {
			return true
		}
	}
	return false
}

// Behavioral blends signal strength and intent, with a small corroboration
// bonus per signal, capped at 100.
func Behavioral(signalStrength, intentScore float64, signalCount int) float64 {
	score := 0.6*signalStrength + 0.4*intentScore
	score += min(behavioralBonusCap, float64(signalCount)*behavioralBonusScale)
	return min(score, 100)
}

func confidenceFor(r Result) Confidence {
	allAbove := r.GeographicScore >= 50 && r.IndustryScore >= 50 &&
		r.NeedScore >= 50 && r.ProfileScore >= 50 && r.BehavioralScore >= 50
	switch {
	case r.MatchScore >= 80 && allAbove:
		return ConfidenceHigh
	case r.MatchScore >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func priorityFor(matchScore, intentScore float64) Priority {
	switch {
	case matchScore >= 80 && intentScore >= 70:
		return PriorityUrgent
	case matchScore >= 70:
		return PriorityHigh
	case matchScore >= 50:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func reasonsFor(r Result) []string {
	var reasons []string
	if r.GeographicScore >= 85 {
		reasons = append(reasons, fmt.Sprintf("strong geographic fit (%.0f)", r.GeographicScore))
	}
	if r.IndustryScore >= 80 {
		reasons = append(reasons, fmt.Sprintf("industry aligns with targeting (%.0f)", r.IndustryScore))
	}
	if r.NeedScore >= 80 {
		reasons = append(reasons, fmt.Sprintf("identified need matches the service (%.0f)", r.NeedScore))
	}
	if r.ProfileScore >= 80 {
		reasons = append(reasons, fmt.Sprintf("lead profile fits the target audience (%.0f)", r.ProfileScore))
	}
	if r.BehavioralScore >= 70 {
		reasons = append(reasons, fmt.Sprintf("behavioral signals show active interest (%.0f)", r.BehavioralScore))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("overall compatibility score %.0f", r.MatchScore))
	}
	return reasons
}
