// Package budget enforces the shared spend cap. Reserve reads the rolling
// spend sum and records the reservation as one serialized unit, so two
// concurrent reservations can never jointly cross the hard cap.
package budget

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"foundry/internal/domain"
)

const (
	dailyWindow   = 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour

	TagReservation = "reservation"
	TagCorrection  = "correction"
)

type Tier string

const (
	TierOK        Tier = "ok"
	TierSoft      Tier = "soft"
	TierHard      Tier = "hard"
	TierEmergency Tier = "emergency"
)

type Caps struct {
	DailySoftUSD        float64
	DailyHardUSD        float64
	DailyEmergencyUSD   float64
	MonthlySoftUSD      float64
	MonthlyHardUSD      float64
	MonthlyEmergencyUSD float64
}

func (c Caps) withDefaults() Caps {
	if c.DailySoftUSD <= 0 {
		c.DailySoftUSD = 50
	}
	if c.DailyHardUSD <= 0 {
		c.DailyHardUSD = 100
	}
	if c.DailyEmergencyUSD <= 0 {
		c.DailyEmergencyUSD = 150
	}
	if c.MonthlySoftUSD <= 0 {
		c.MonthlySoftUSD = 20 * c.DailySoftUSD
	}
	if c.MonthlyHardUSD <= 0 {
		c.MonthlyHardUSD = 20 * c.DailyHardUSD
	}
	if c.MonthlyEmergencyUSD <= 0 {
		c.MonthlyEmergencyUSD = 20 * c.DailyEmergencyUSD
	}
	return c
}

type Store interface {
	InsertCostRecord(ctx context.Context, record domain.CostRecord) error
	SumCostSince(ctx context.Context, since time.Time) (float64, error)
}

// Reservation is the outcome of one reserve call. Approved reservations are
// recorded as spend immediately; the ledger is corrected afterwards when the
// actual job cost differs (eventually exact, not pre-committed).
type Reservation struct {
	Approved bool
	Fatal    bool
	Warning  bool
	Tier     Tier
	Reason   string
}

type Ledger struct {
	mu     sync.Mutex
	store  Store
	caps   Caps
	logger *log.Logger

	// tripped latches once the emergency threshold is crossed; reservations
	// stay rejected until a manual override even if the rolling sum decays.
	tripped bool

	now func() time.Time
}

func New(store Store, caps Caps, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{
		store:  store,
		caps:   caps.withDefaults(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reserve applies the three-tier policy against the rolling daily sum
// including the new reservation. The read of current spend and the write of
// the reservation happen under one mutex: the second of two racing callers
// always observes the first caller's reservation.
func (l *Ledger) Reserve(ctx context.Context, jobID string, estimatedCost float64, tag string) (Reservation, error) {
	if estimatedCost < 0 {
		return Reservation{}, fmt.Errorf("estimated cost must be non-negative, got %v", estimatedCost)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tripped {
		return Reservation{
			Tier:   TierEmergency,
			Fatal:  true,
			Reason: "emergency kill is latched; manual override required",
		}, nil
	}

	spent, err := l.store.SumCostSince(ctx, l.now().Add(-dailyWindow))
	if err != nil {
		return Reservation{}, fmt.Errorf("read daily spend: %w", err)
	}
	projected := spent + estimatedCost

	switch {
	case projected >= l.caps.DailyEmergencyUSD:
		l.tripped = true
		l.logger.Printf("budget emergency kill tripped spent=%.2f projected=%.2f cap=%.2f tag=%s",
			spent, projected, l.caps.DailyEmergencyUSD, tag)
		return Reservation{
			Tier:   TierEmergency,
			Fatal:  true,
			Reason: fmt.Sprintf("projected daily spend $%.2f reaches emergency kill threshold $%.2f", projected, l.caps.DailyEmergencyUSD),
		}, nil
	case projected >= l.caps.DailyHardUSD:
		l.logger.Printf("budget reservation rejected spent=%.2f projected=%.2f hard=%.2f tag=%s",
			spent, projected, l.caps.DailyHardUSD, tag)
		return Reservation{
			Tier:   TierHard,
			Reason: fmt.Sprintf("projected daily spend $%.2f reaches hard cap $%.2f", projected, l.caps.DailyHardUSD),
		}, nil
	}

	record := domain.CostRecord{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Tag:        tag,
		AmountUSD:  estimatedCost,
		RecordedAt: l.now(),
	}
	if err := l.store.InsertCostRecord(ctx, record); err != nil {
		return Reservation{}, fmt.Errorf("record reservation: %w", err)
	}

	res := Reservation{Approved: true, Tier: TierOK, Reason: "within budget"}
	if projected >= l.caps.DailySoftUSD {
		res.Tier = TierSoft
		res.Warning = true
		res.Reason = fmt.Sprintf("projected daily spend $%.2f over soft cap $%.2f", projected, l.caps.DailySoftUSD)
		l.logger.Printf("budget soft cap warning spent=%.2f projected=%.2f soft=%.2f tag=%s",
			spent, projected, l.caps.DailySoftUSD, tag)
	}
	return res, nil
}

// RecordCorrection appends a signed delta so the ledger converges on the
// actual cost after a job finishes. A negative delta refunds part of an
// over-estimated reservation.
func (l *Ledger) RecordCorrection(ctx context.Context, jobID string, deltaUSD float64) error {
	if deltaUSD == 0 {
		return nil
	}
	record := domain.CostRecord{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Tag:        TagCorrection,
		AmountUSD:  deltaUSD,
		RecordedAt: l.now(),
	}
	if err := l.store.InsertCostRecord(ctx, record); err != nil {
		return fmt.Errorf("record correction: %w", err)
	}
	return nil
}

// OverrideEmergency clears the latched emergency kill. Manual use only.
func (l *Ledger) OverrideEmergency() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripped {
		l.logger.Printf("budget emergency kill override applied")
	}
	l.tripped = false
}

func (l *Ledger) Status(ctx context.Context) (domain.BudgetStatus, error) {
	now := l.now()
	daily, err := l.store.SumCostSince(ctx, now.Add(-dailyWindow))
	if err != nil {
		return domain.BudgetStatus{}, fmt.Errorf("read daily spend: %w", err)
	}
	monthly, err := l.store.SumCostSince(ctx, now.Add(-monthlyWindow))
	if err != nil {
		return domain.BudgetStatus{}, fmt.Errorf("read monthly spend: %w", err)
	}
	return domain.BudgetStatus{
		Daily:   windowStatus(daily, l.caps.DailySoftUSD, l.caps.DailyHardUSD, l.caps.DailyEmergencyUSD),
		Monthly: windowStatus(monthly, l.caps.MonthlySoftUSD, l.caps.MonthlyHardUSD, l.caps.MonthlyEmergencyUSD),
	}, nil
}

func windowStatus(spent, soft, hard, emergency float64) domain.BudgetWindow {
	remaining := hard - spent
	if remaining < 0 {
		remaining = 0
	}
	percent := 0.0
	if hard > 0 {
		percent = spent / hard * 100
	}
	return domain.BudgetWindow{
		SpentUSD:       spent,
		HardCapUSD:     hard,
		RemainingUSD:   remaining,
		Percent:        percent,
		SoftAlert:      spent >= soft,
		HardAlert:      spent >= hard,
		EmergencyAlert: spent >= emergency,
	}
}
