package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"leadmatch_backend/internal/profiles/repository"

	"github.com/google/uuid"
)

// ProfileHash digests a set of identifier ids. The set is sorted first so
// the same identifiers always produce the same hash regardless of the
// order they were observed in.
func ProfileHash(identifierIDs []uuid.UUID) string {
	keys := make([]string, len(identifierIDs))
	for i, id := range identifierIDs {
		keys[i] = id.String()
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, ",")))
	return hex.EncodeToString(sum[:])
}

// mergeProfiles folds source into target and returns the survivor's new
// field values. Contact fields are target-wins: the source only fills
// gaps. Sites and IPs are unioned, behavior counts are summed per key.
func mergeProfiles(target, source repository.Profile) repository.MergeChange {
	return repository.MergeChange{
		SurvivorID:        target.ID,
		RemovedID:         source.ID,
		Email:             firstNonNil(target.Email, source.Email),
		Phone:             firstNonNil(target.Phone, source.Phone),
		Name:              firstNonNil(target.Name, source.Name),
		Company:           firstNonNil(target.Company, source.Company),
		SitesVisited:      unionSorted(target.SitesVisited, source.SitesVisited),
		IPAddresses:       unionSorted(target.IPAddresses, source.IPAddresses),
		DeviceFingerprint: firstNonNil(target.DeviceFingerprint, source.DeviceFingerprint),
		BehaviorCounts:    sumCounts(target.BehaviorCounts, source.BehaviorCounts),
	}
}

func firstNonNil(a, b *string) *string {
	if a != nil && *a != "" {
		return a
	}
	return b
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func sumCounts(a, b map[string]int) map[string]int {
	out := make(map[string]int, len(a)+len(b))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}
