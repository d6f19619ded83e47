package budget

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"foundry/internal/domain"
)

// memStore is a minimal in-memory cost store for ledger tests.
type memStore struct {
	mu      sync.Mutex
	records []domain.CostRecord
}

func (m *memStore) InsertCostRecord(_ context.Context, record domain.CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memStore) SumCostSince(_ context.Context, since time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, rec := range m.records {
		if !rec.RecordedAt.Before(since) {
			total += rec.AmountUSD
		}
	}
	return total, nil
}

func newTestLedger(caps Caps) (*Ledger, *memStore) {
	store := &memStore{}
	return New(store, caps, log.New(io.Discard, "", 0)), store
}

func TestReserveAtomicityUnderRace(t *testing.T) {
	// Daily spend $94, hard cap $100: two concurrent $5 reservations must
	// yield exactly one approval.
	ledger, store := newTestLedger(Caps{DailySoftUSD: 80, DailyHardUSD: 100, DailyEmergencyUSD: 150})
	ctx := context.Background()

	if err := store.InsertCostRecord(ctx, domain.CostRecord{
		ID: "seed", JobID: "seed", Tag: TagReservation, AmountUSD: 94, RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed spend: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]Reservation, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ledger.Reserve(ctx, "job", 5, TagReservation)
			if err != nil {
				t.Errorf("reserve %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	approvals := 0
	for _, res := range results {
		if res.Approved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("approvals=%d want exactly 1 (results=%+v)", approvals, results)
	}

	total, err := store.SumCostSince(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 99 {
		t.Fatalf("recorded spend=%v want=99", total)
	}
}

func TestTierEvaluationOrder(t *testing.T) {
	caps := Caps{DailySoftUSD: 10, DailyHardUSD: 20, DailyEmergencyUSD: 30}
	ctx := context.Background()

	cases := []struct {
		name     string
		seed     float64
		amount   float64
		approved bool
		fatal    bool
		warning  bool
		tier     Tier
	}{
		{name: "under all caps", seed: 0, amount: 5, approved: true, tier: TierOK},
		{name: "soft cap approves with warning", seed: 8, amount: 4, approved: true, warning: true, tier: TierSoft},
		{name: "hard cap rejects recoverable", seed: 18, amount: 4, approved: false, tier: TierHard},
		{name: "emergency rejects fatal", seed: 28, amount: 4, approved: false, fatal: true, tier: TierEmergency},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger, store := newTestLedger(caps)
			if tc.seed > 0 {
				if err := store.InsertCostRecord(ctx, domain.CostRecord{
					ID: "seed", Tag: TagReservation, AmountUSD: tc.seed, RecordedAt: time.Now().UTC(),
				}); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			res, err := ledger.Reserve(ctx, "job", tc.amount, TagReservation)
			if err != nil {
				t.Fatalf("reserve: %v", err)
			}
			if res.Approved != tc.approved || res.Fatal != tc.fatal || res.Warning != tc.warning || res.Tier != tc.tier {
				t.Fatalf("got %+v, want approved=%t fatal=%t warning=%t tier=%s",
					res, tc.approved, tc.fatal, tc.warning, tc.tier)
			}
		})
	}
}

func TestEmergencyKillLatchesUntilOverride(t *testing.T) {
	ledger, store := newTestLedger(Caps{DailySoftUSD: 10, DailyHardUSD: 20, DailyEmergencyUSD: 30})
	ctx := context.Background()

	if err := store.InsertCostRecord(ctx, domain.CostRecord{
		ID: "seed", Tag: TagReservation, AmountUSD: 29, RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := ledger.Reserve(ctx, "job", 5, TagReservation)
	if err != nil {
		t.Fatalf("tripping reserve: %v", err)
	}
	if !res.Fatal {
		t.Fatalf("expected fatal rejection, got %+v", res)
	}

	// Even a tiny reservation that would fit under the hard cap is rejected
	// while the kill is latched.
	res, err = ledger.Reserve(ctx, "job", 0.01, TagReservation)
	if err != nil {
		t.Fatalf("latched reserve: %v", err)
	}
	if res.Approved || !res.Fatal {
		t.Fatalf("expected latched fatal rejection, got %+v", res)
	}

	ledger.OverrideEmergency()
	res, err = ledger.Reserve(ctx, "job", 5, TagReservation)
	if err != nil {
		t.Fatalf("post-override reserve: %v", err)
	}
	// Spend is still $29, so $5 more re-trips the kill; tier order holds.
	if res.Tier != TierEmergency {
		t.Fatalf("tier=%s want=emergency", res.Tier)
	}
}

func TestCorrectionAdjustsStatus(t *testing.T) {
	ledger, _ := newTestLedger(Caps{DailySoftUSD: 10, DailyHardUSD: 20, DailyEmergencyUSD: 30})
	ctx := context.Background()

	if _, err := ledger.Reserve(ctx, "job-1", 8, TagReservation); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.RecordCorrection(ctx, "job-1", -3); err != nil {
		t.Fatalf("correction: %v", err)
	}

	status, err := ledger.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Daily.SpentUSD != 5 {
		t.Fatalf("daily spent=%v want=5", status.Daily.SpentUSD)
	}
	if status.Daily.RemainingUSD != 15 {
		t.Fatalf("daily remaining=%v want=15", status.Daily.RemainingUSD)
	}
	if status.Daily.SoftAlert || status.Daily.HardAlert || status.Daily.EmergencyAlert {
		t.Fatalf("unexpected alerts: %+v", status.Daily)
	}
	if status.Monthly.SpentUSD != 5 {
		t.Fatalf("monthly spent=%v want=5", status.Monthly.SpentUSD)
	}
}

func TestStatusAlerts(t *testing.T) {
	ledger, store := newTestLedger(Caps{DailySoftUSD: 10, DailyHardUSD: 20, DailyEmergencyUSD: 30})
	ctx := context.Background()

	if err := store.InsertCostRecord(ctx, domain.CostRecord{
		ID: "seed", Tag: TagReservation, AmountUSD: 25, RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	status, err := ledger.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Daily.SoftAlert || !status.Daily.HardAlert || status.Daily.EmergencyAlert {
		t.Fatalf("alerts=%+v want soft+hard only", status.Daily)
	}
	if status.Daily.RemainingUSD != 0 {
		t.Fatalf("remaining=%v want=0", status.Daily.RemainingUSD)
	}
}
