package signals

import "sort"

// Type multipliers favor signals that historically convert: distress is
// the strongest indicator, generic growth chatter the weakest.
var typeMultipliers = map[Type]float64{
	TypeFinancialDistress: 1.8,
	TypeLoanNeed:          1.5,
	TypeExpansion:         1.4,
	TypeConsultingNeed:    1.3,
	TypeGrowth:            1.2,
}

const maxTypeMultiplier = 1.8

// AggregateStrength returns the mean signal strength plus a corroboration
// bonus of min(20, 5*count) when more than one signal is present, capped
// at 100. No signals means zero.
func AggregateStrength(sigs []Signal) float64 {
	if len(sigs) == 0 {
		return 0
	}

	total := 0.0
	for _, s := range sigs {
		total += s.Strength
	}
	mean := total / float64(len(sigs))

	if len(sigs) > 1 {
		bonus := 5.0 * float64(len(sigs))
		if bonus > 20 {
			bonus = 20
		}
		mean += bonus
	}

	if mean > 100 {
		return 100
	}
	return mean
}

// IntentScore weights each signal's strength by its type multiplier and
// normalizes against the theoretical maximum (every signal at strength 100
// with the highest multiplier), yielding a 0-100 score.
func IntentScore(sigs []Signal) float64 {
	if len(sigs) == 0 {
		return 0
	}

	weighted := 0.0
	for _, s := range sigs {
		mult, ok := typeMultipliers[s.Type]
		if !ok {
			mult = 1.0
		}
		weighted += s.Strength * mult
	}

	max := float64(len(sigs)) * 100 * maxTypeMultiplier
	score := weighted / max * 100

	if score > 100 {
		return 100
	}
	return score
}

// NeedsIdentified returns the sorted set of need labels implied by the
// distinct signal types present.
func NeedsIdentified(sigs []Signal) []string {
	seen := make(map[string]struct{}, len(sigs))
	for _, s := range sigs {
		label := s.Type.NeedLabel()
		if label == "" {
			continue
		}
		seen[label] = struct{}{}
	}

	needs := make([]string, 0, len(seen))
	for label := range seen {
		needs = append(needs, label)
	}
	sort.Strings(needs)
	return needs
}
