package privacy

import "testing"

func TestNewPolicyFallsBackToStandard(t *testing.T) {
	for _, mode := range []string{"", "unknown", "STRICT"} {
		if got := NewPolicy(mode).Mode(); got != ModeStandard {
			t.Errorf("NewPolicy(%q).Mode() = %q, want standard", mode, got)
		}
	}
}

func TestPolicyGates(t *testing.T) {
	tests := []struct {
		mode           string
		fingerprints   bool
		crossSite      bool
		rawEmail       bool
		rawFingerprint bool
	}{
		{"strict", false, false, false, false},
		{"standard", true, true, true, false},
		{"permissive", true, true, true, true},
	}

	for _, tt := range tests {
		p := NewPolicy(tt.mode)
		if got := p.AllowFingerprints(); got != tt.fingerprints {
			t.Errorf("%s: AllowFingerprints = %v, want %v", tt.mode, got, tt.fingerprints)
		}
		if got := p.AllowCrossSiteCorrelation(); got != tt.crossSite {
			t.Errorf("%s: AllowCrossSiteCorrelation = %v, want %v", tt.mode, got, tt.crossSite)
		}
		if got := p.AllowRawValue("email"); got != tt.rawEmail {
			t.Errorf("%s: AllowRawValue(email) = %v, want %v", tt.mode, got, tt.rawEmail)
		}
		if got := p.AllowRawValue("fingerprint"); got != tt.rawFingerprint {
			t.Errorf("%s: AllowRawValue(fingerprint) = %v, want %v", tt.mode, got, tt.rawFingerprint)
		}
	}
}
