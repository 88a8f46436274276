// Package privacy holds the runtime privacy policy the engine consults
// before persisting sensitive observations. The policy is an explicitly
// passed value, not global state; modules receive it at construction.
package privacy

// Mode is the privacy posture the engine operates under.
type Mode string

const (
	// ModeStrict disallows device fingerprints, raw identifier values,
	// and cross-site correlation.
	ModeStrict Mode = "strict"
	// ModeStandard allows fingerprints and cross-site correlation but
	// keeps raw values for contact identifiers only.
	ModeStandard Mode = "standard"
	// ModePermissive allows everything the engine can observe.
	ModePermissive Mode = "permissive"
)

// Policy answers the allow/deny questions the engine asks. Disallowed
// operations are skipped, never errors.
type Policy struct {
	mode Mode
}

// NewPolicy builds a Policy for the given mode. Unknown modes fall back
// to standard.
func NewPolicy(mode string) Policy {
	switch Mode(mode) {
	case ModeStrict, ModeStandard, ModePermissive:
		return Policy{mode: Mode(mode)}
	default:
		return Policy{mode: ModeStandard}
	}
}

// Mode returns the active mode.
func (p Policy) Mode() Mode {
	if p.mode == "" {
		return ModeStandard
	}
	return p.mode
}

// AllowFingerprints reports whether device fingerprints may be tracked
// and persisted on profiles.
func (p Policy) AllowFingerprints() bool {
	return p.Mode() != ModeStrict
}

// AllowCrossSiteCorrelation reports whether identifiers observed on
// different sites may be unioned into one profile's site history.
func (p Policy) AllowCrossSiteCorrelation() bool {
	return p.Mode() != ModeStrict
}

// AllowRawValue reports whether the raw observed value of the given
// identifier type may be stored alongside its hash.
func (p Policy) AllowRawValue(identifierType string) bool {
	switch p.Mode() {
	case ModeStrict:
		return false
	case ModePermissive:
		return true
	default:
		// Standard mode keeps raw values only for contact identifiers,
		// which are needed to fill profile contact fields.
		return identifierType == "email" || identifierType == "phone"
	}
}
