package scheduler

import (
	"context"
	"sync"
	"testing"

	matchrepo "leadmatch_backend/internal/matching/repository"
	"leadmatch_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type fakeMatcher struct {
	mu      sync.Mutex
	calls   []uuid.UUID
	topNs   []int
	failFor uuid.UUID
	err     error
}

func (f *fakeMatcher) MatchLeadToServices(_ context.Context, leadID uuid.UUID, topN int) ([]matchrepo.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, leadID)
	f.topNs = append(f.topNs, topN)
	if leadID == f.failFor {
		return nil, f.err
	}
	return []matchrepo.Match{{LeadID: leadID}}, nil
}

type fakeLister struct {
	ids []uuid.UUID
}

func (f *fakeLister) ListOpenIDs(_ context.Context) ([]uuid.UUID, error) {
	return f.ids, nil
}

type fakeReconciler struct {
	gotMinShared int
}

func (f *fakeReconciler) ReconcileDuplicates(_ context.Context, minShared int) (int, error) {
	f.gotMinShared = minShared
	return 0, nil
}

type fakeCleaner struct {
	gotDays int
}

func (f *fakeCleaner) CleanupOld(_ context.Context, retentionDays int) (int, error) {
	f.gotDays = retentionDays
	return 3, nil
}

func testWorker(m Matcher, l LeadLister, r Reconciler, c Cleaner) *Worker {
	return &Worker{
		matcher:          m,
		leads:            l,
		prof:             r,
		idents:           c,
		log:              logger.New("test"),
		defaultTopN:      5,
		defaultMinShared: 2,
		retentionDays:    90,
		backfillRate:     rate.Inf,
	}
}

func TestHandleMatchLeadDefaultsTopN(t *testing.T) {
	matcher := &fakeMatcher{}
	w := testWorker(matcher, nil, nil, nil)

	leadID := uuid.New()
	task, err := NewMatchLeadTask(MatchLeadPayload{LeadID: leadID.String()})
	if err != nil {
		t.Fatalf("NewMatchLeadTask: %v", err)
	}

	if err := w.handleMatchLead(context.Background(), task); err != nil {
		t.Fatalf("handleMatchLead: %v", err)
	}
	if len(matcher.calls) != 1 || matcher.calls[0] != leadID {
		t.Fatalf("matcher calls = %v, want [%s]", matcher.calls, leadID)
	}
	if matcher.topNs[0] != 5 {
		t.Errorf("topN = %d, want default 5", matcher.topNs[0])
	}
}

func TestHandleMatchLeadRejectsBadID(t *testing.T) {
	w := testWorker(&fakeMatcher{}, nil, nil, nil)

	task, err := NewMatchLeadTask(MatchLeadPayload{LeadID: "not-a-uuid"})
	if err != nil {
		t.Fatalf("NewMatchLeadTask: %v", err)
	}
	if err := w.handleMatchLead(context.Background(), task); err == nil {
		t.Fatal("expected error for malformed lead id")
	}
}

func TestHandleMatchBackfillIsolatesFailures(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	matcher := &fakeMatcher{failFor: ids[1], err: context.DeadlineExceeded}
	w := testWorker(matcher, &fakeLister{ids: ids}, nil, nil)

	task, err := NewMatchBackfillTask(MatchBackfillPayload{TopN: 3})
	if err != nil {
		t.Fatalf("NewMatchBackfillTask: %v", err)
	}

	if err := w.handleMatchBackfill(context.Background(), task); err != nil {
		t.Fatalf("handleMatchBackfill: %v", err)
	}
	if len(matcher.calls) != len(ids) {
		t.Errorf("matcher called %d times, want %d", len(matcher.calls), len(ids))
	}
}

func TestHandleReconcileProfilesDefaultsMinShared(t *testing.T) {
	rec := &fakeReconciler{}
	w := testWorker(nil, nil, rec, nil)

	task, err := NewReconcileProfilesTask(ReconcileProfilesPayload{})
	if err != nil {
		t.Fatalf("NewReconcileProfilesTask: %v", err)
	}
	if err := w.handleReconcileProfiles(context.Background(), task); err != nil {
		t.Fatalf("handleReconcileProfiles: %v", err)
	}
	if rec.gotMinShared != 2 {
		t.Errorf("minShared = %d, want default 2", rec.gotMinShared)
	}
}

func TestHandleCleanupIdentifiersDefaultsRetention(t *testing.T) {
	cl := &fakeCleaner{}
	w := testWorker(nil, nil, nil, cl)

	task, err := NewCleanupIdentifiersTask(CleanupIdentifiersPayload{})
	if err != nil {
		t.Fatalf("NewCleanupIdentifiersTask: %v", err)
	}
	if err := w.handleCleanupIdentifiers(context.Background(), task); err != nil {
		t.Fatalf("handleCleanupIdentifiers: %v", err)
	}
	if cl.gotDays != 90 {
		t.Errorf("retention days = %d, want default 90", cl.gotDays)
	}
}
