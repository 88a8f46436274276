package service

import (
	"context"
	"reflect"
	"sort"
	"testing"
	"time"

	"leadmatch_backend/internal/privacy"
	"leadmatch_backend/internal/profiles/repository"
	"leadmatch_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	profiles map[uuid.UUID]repository.Profile
	idents   map[uuid.UUID]repository.OwnedIdentifier
	owner    map[uuid.UUID]uuid.UUID
	pairs    []repository.DuplicatePair
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[uuid.UUID]repository.Profile),
		idents:   make(map[uuid.UUID]repository.OwnedIdentifier),
		owner:    make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeStore) addIdentifier(identType, hash string, raw *string, sites ...string) uuid.UUID {
	id := uuid.New()
	f.idents[id] = repository.OwnedIdentifier{ID: id, Type: identType, Hash: hash, RawValue: raw, Sites: sites}
	return id
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return repository.Profile{}, apperr.NotFound("profile not found")
	}
	return p, nil
}

func (f *fakeStore) GetByHash(_ context.Context, hash string) (repository.Profile, error) {
	for _, p := range f.profiles {
		if p.ProfileHash == hash {
			return p, nil
		}
	}
	return repository.Profile{}, apperr.NotFound("profile not found")
}

func (f *fakeStore) CreateWithIdentifiers(_ context.Context, params repository.CreateParams) (repository.Profile, error) {
	f.seq++
	p := repository.Profile{
		ID:                uuid.New(),
		ProfileHash:       params.ProfileHash,
		Email:             params.Email,
		Phone:             params.Phone,
		Name:              params.Name,
		Company:           params.Company,
		SitesVisited:      params.SitesVisited,
		IPAddresses:       params.IPAddresses,
		DeviceFingerprint: params.DeviceFingerprint,
		BehaviorCounts:    params.BehaviorCounts,
		CreatedAt:         time.Unix(int64(f.seq), 0),
	}
	f.profiles[p.ID] = p
	for _, identID := range params.IdentifierIDs {
		if _, owned := f.owner[identID]; !owned {
			f.owner[identID] = p.ID
		}
	}
	return p, nil
}

func (f *fakeStore) ListIdentifiers(_ context.Context, profileID uuid.UUID) ([]repository.OwnedIdentifier, error) {
	out := make([]repository.OwnedIdentifier, 0)
	for identID, ownerID := range f.owner {
		if ownerID == profileID {
			out = append(out, f.idents[identID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeStore) ListIdentifiersByIDs(_ context.Context, ids []uuid.UUID) ([]repository.OwnedIdentifier, error) {
	out := make([]repository.OwnedIdentifier, 0, len(ids))
	for _, id := range ids {
		if ident, ok := f.idents[id]; ok {
			out = append(out, ident)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyMerge(_ context.Context, change repository.MergeChange) error {
	survivor, ok := f.profiles[change.SurvivorID]
	if !ok {
		return apperr.NotFound("survivor profile not found")
	}
	if _, ok := f.profiles[change.RemovedID]; !ok {
		return apperr.NotFound("source profile not found")
	}
	for identID, ownerID := range f.owner {
		if ownerID == change.RemovedID {
			f.owner[identID] = change.SurvivorID
		}
	}
	survivor.ProfileHash = change.ProfileHash
	survivor.Email = change.Email
	survivor.Phone = change.Phone
	survivor.Name = change.Name
	survivor.Company = change.Company
	survivor.SitesVisited = change.SitesVisited
	survivor.IPAddresses = change.IPAddresses
	survivor.DeviceFingerprint = change.DeviceFingerprint
	survivor.BehaviorCounts = change.BehaviorCounts
	f.profiles[change.SurvivorID] = survivor
	delete(f.profiles, change.RemovedID)
	return nil
}

func (f *fakeStore) FindDuplicatePairs(_ context.Context, minShared int) ([]repository.DuplicatePair, error) {
	out := make([]repository.DuplicatePair, 0)
	for _, pair := range f.pairs {
		if pair.SharedCount >= minShared {
			out = append(out, pair)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestBuildIdempotentAcrossOrdering(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

	a := store.addIdentifier("email", "h1", strPtr("jane@acme.test"), "acme.test")
	b := store.addIdentifier("phone", "h2", strPtr("+12015550123"))
	c := store.addIdentifier("cookie", "h3", nil, "other.test")

	first, err := svc.Build(context.Background(), []uuid.UUID{a, b, c})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := svc.Build(context.Background(), []uuid.UUID{c, a, b})
	if err != nil {
		t.Fatalf("Build reordered: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("reordered build created a new profile: %s vs %s", first.ID, second.ID)
	}
	if len(store.profiles) != 1 {
		t.Errorf("expected 1 profile, got %d", len(store.profiles))
	}
	if first.Email == nil || *first.Email != "jane@acme.test" {
		t.Errorf("email not filled from identifier raw value: %v", first.Email)
	}
	if first.Phone == nil || *first.Phone != "+12015550123" {
		t.Errorf("phone not filled from identifier raw value: %v", first.Phone)
	}
}

func TestBuildRejectsEmptyAndUnknownIdentifiers(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

	if _, err := svc.Build(context.Background(), nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty set: expected validation error, got %v", err)
	}
	if _, err := svc.Build(context.Background(), []uuid.UUID{uuid.New()}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown identifier: expected not found, got %v", err)
	}
}

func TestBuildStrictPolicyDropsFingerprintAndCrossSite(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStrict)), nil, nil)

	a := store.addIdentifier("fingerprint", "h1", strPtr("fp-abc"), "acme.test")
	b := store.addIdentifier("email", "h2", strPtr("jane@acme.test"), "other.test")

	profile, err := svc.Build(context.Background(), []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if profile.DeviceFingerprint != nil {
		t.Errorf("strict policy kept device fingerprint %q", *profile.DeviceFingerprint)
	}
	if len(profile.SitesVisited) != 0 {
		t.Errorf("strict policy kept cross-site history %v", profile.SitesVisited)
	}
}

func TestMergeTargetWinsAndUnions(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

	a := store.addIdentifier("email", "h1", strPtr("jane@acme.test"))
	b := store.addIdentifier("phone", "h2", strPtr("+12015550123"))

	target, err := svc.Build(context.Background(), []uuid.UUID{a})
	if err != nil {
		t.Fatalf("build target: %v", err)
	}
	source, err := svc.Build(context.Background(), []uuid.UUID{b})
	if err != nil {
		t.Fatalf("build source: %v", err)
	}

	// Seed diverging state directly.
	tp := store.profiles[target.ID]
	tp.Name = strPtr("Jane Doe")
	tp.SitesVisited = []string{"acme.test"}
	tp.BehaviorCounts = map[string]int{"page_view": 3}
	store.profiles[target.ID] = tp

	sp := store.profiles[source.ID]
	sp.Name = strPtr("J. Doe")
	sp.Company = strPtr("Acme LLC")
	sp.SitesVisited = []string{"other.test", "acme.test"}
	sp.BehaviorCounts = map[string]int{"page_view": 2, "form_submit": 1}
	store.profiles[source.ID] = sp

	merged, err := svc.Merge(context.Background(), source.ID, target.ID)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if merged.Name == nil || *merged.Name != "Jane Doe" {
		t.Errorf("target name should win, got %v", merged.Name)
	}
	if merged.Company == nil || *merged.Company != "Acme LLC" {
		t.Errorf("source should fill missing company, got %v", merged.Company)
	}
	if merged.Phone == nil || *merged.Phone != "+12015550123" {
		t.Errorf("source should fill missing phone, got %v", merged.Phone)
	}
	if want := []string{"acme.test", "other.test"}; !reflect.DeepEqual(merged.SitesVisited, want) {
		t.Errorf("sites = %v, want %v", merged.SitesVisited, want)
	}
	if want := map[string]int{"page_view": 5, "form_submit": 1}; !reflect.DeepEqual(merged.BehaviorCounts, want) {
		t.Errorf("behavior counts = %v, want %v", merged.BehaviorCounts, want)
	}
	if _, ok := store.profiles[source.ID]; ok {
		t.Error("source profile still exists after merge")
	}
	if store.owner[b] != target.ID {
		t.Error("source identifier not reassigned to survivor")
	}
	if merged.ProfileHash != ProfileHash([]uuid.UUID{a, b}) {
		t.Error("survivor hash not recomputed from combined identifier set")
	}
}

func TestMergeAssociative(t *testing.T) {
	finalState := func(mergeOrder [][2]int) repository.Profile {
		store := newFakeStore()
		svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

		ids := make([]uuid.UUID, 3)
		profiles := make([]uuid.UUID, 3)
		raws := []*string{strPtr("jane@acme.test"), nil, nil}
		for i := range ids {
			ids[i] = store.addIdentifier("cookie", "h"+string(rune('1'+i)), raws[i], "site"+string(rune('a'+i))+".test")
			p, err := svc.Build(context.Background(), []uuid.UUID{ids[i]})
			if err != nil {
				t.Fatalf("build %d: %v", i, err)
			}
			profiles[i] = p.ID
			seeded := store.profiles[p.ID]
			seeded.BehaviorCounts = map[string]int{"page_view": i + 1}
			seeded.SitesVisited = []string{"site" + string(rune('a'+i)) + ".test"}
			store.profiles[p.ID] = seeded
		}

		survivor := profiles[0]
		for _, step := range mergeOrder {
			merged, err := svc.Merge(context.Background(), profiles[step[0]], profiles[step[1]])
			if err != nil {
				t.Fatalf("merge %v: %v", step, err)
			}
			survivor = merged.ID
		}
		final := store.profiles[survivor]
		final.ID = uuid.Nil
		final.ProfileHash = ""
		final.CreatedAt = time.Time{}
		return final
	}

	// ((A<-B)<-C) vs (A<-(B<-C) done as B<-C then A<-B).
	left := finalState([][2]int{{1, 0}, {2, 0}})
	right := finalState([][2]int{{2, 1}, {1, 0}})
	if !reflect.DeepEqual(left, right) {
		t.Errorf("merge order changed the result:\nleft  %+v\nright %+v", left, right)
	}
	if want := map[string]int{"page_view": 6}; !reflect.DeepEqual(left.BehaviorCounts, want) {
		t.Errorf("behavior counts = %v, want %v", left.BehaviorCounts, want)
	}
	if want := []string{"sitea.test", "siteb.test", "sitec.test"}; !reflect.DeepEqual(left.SitesVisited, want) {
		t.Errorf("sites = %v, want %v", left.SitesVisited, want)
	}
}

func TestMergeSelfConflict(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

	id := store.addIdentifier("email", "h1", nil)
	p, err := svc.Build(context.Background(), []uuid.UUID{id})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := svc.Merge(context.Background(), p.ID, p.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict on self-merge, got %v", err)
	}
}

func TestReconcileDuplicatesSkipsVanishedPairs(t *testing.T) {
	store := newFakeStore()
	svc := New(store, privacy.NewPolicy(string(privacy.ModeStandard)), nil, nil)

	a := store.addIdentifier("email", "h1", nil)
	b := store.addIdentifier("email", "h1", nil)
	pa, _ := svc.Build(context.Background(), []uuid.UUID{a})
	pb, _ := svc.Build(context.Background(), []uuid.UUID{b})

	store.pairs = []repository.DuplicatePair{
		{ProfileA: pa.ID, ProfileB: pb.ID, SharedCount: 2},
		{ProfileA: pa.ID, ProfileB: uuid.New(), SharedCount: 2}, // already gone
		{ProfileA: pa.ID, ProfileB: pb.ID, SharedCount: 1},      // below threshold
	}

	merged, err := svc.ReconcileDuplicates(context.Background(), 2)
	if err != nil {
		t.Fatalf("ReconcileDuplicates: %v", err)
	}
	if merged != 1 {
		t.Errorf("merged = %d, want 1", merged)
	}
	if _, ok := store.profiles[pb.ID]; ok {
		t.Error("later-created profile should have been absorbed")
	}
}
