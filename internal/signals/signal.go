// Package signals converts free-text and behavioral evidence into typed
// intent signals and aggregates them into lead-level metrics. Everything
// in this package is pure: no storage, no network.
package signals

// Type identifies the need a signal points at.
type Type string

const (
	TypeLoanNeed          Type = "loan_need"
	TypeConsultingNeed    Type = "consulting_need"
	TypeFinancialDistress Type = "financial_distress"
	TypeGrowth            Type = "growth"
	TypeExpansion         Type = "expansion"
)

// Valid reports whether t is a known signal type.
func (t Type) Valid() bool {
	switch t {
	case TypeLoanNeed, TypeConsultingNeed, TypeFinancialDistress, TypeGrowth, TypeExpansion:
		return true
	}
	return false
}

// Category describes what kind of evidence produced the signal.
type Category string

const (
	CategoryKeyword          Category = "keyword"
	CategoryBehavior         Category = "behavior"
	CategoryProblemIndicator Category = "problem_indicator"
)

// Signal is one piece of evidence that a lead has a specific need.
// Signals are immutable once created and owned by the lead that
// produced them.
type Signal struct {
	Type       Type     `json:"type"`
	Category   Category `json:"category"`
	Source     string   `json:"source"`
	Content    string   `json:"content"`
	Strength   float64  `json:"strength"`
	Confidence float64  `json:"confidence"`
}

// needLabels maps signal types to the need labels surfaced on leads.
var needLabels = map[Type]string{
	TypeLoanNeed:          "business_loan",
	TypeConsultingNeed:    "business_consulting",
	TypeFinancialDistress: "financial_services",
	TypeGrowth:            "growth_capital",
	TypeExpansion:         "expansion_financing",
}

// NeedLabel returns the need label implied by the signal type, or "" for
// unknown types.
func (t Type) NeedLabel() string {
	return needLabels[t]
}
