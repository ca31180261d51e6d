// Package ledger implements the benefit accumulator ledger: per-member
// running totals plus the per-claim application records that make reversal
// and duplicate detection possible.
package ledger

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
)

// Reversal and duplicate sentinels. A reversal for a claim the ledger has
// no record of is an unrecoverable input error for that claim.
var (
	ErrNoApplication        = errors.New("no application recorded for claim")
	ErrAlreadyReversed      = errors.New("application already reversed")
	ErrDuplicateApplication = errors.New("active application already recorded for claim")
)

// Application records what one paid claim did to a member's accumulators.
// It is retained until reversed so a B2 can back out exactly the applied
// amounts.
type Application struct {
	ClaimID             string          `json:"claim_id"`
	MemberID            string          `json:"member_id"`
	AuthorizationNumber string          `json:"authorization_number"`
	AllowedAmount       decimal.Decimal `json:"allowed_amount"`
	DeductibleApplied   decimal.Decimal `json:"deductible_applied"`
	PatientPay          decimal.Decimal `json:"patient_pay"`
	PlanPaid            decimal.Decimal `json:"plan_paid"`
	AppliedAt           time.Time       `json:"applied_at"`
	Reversed            bool            `json:"reversed"`
	ReversedAt          *time.Time      `json:"reversed_at,omitempty"`
}

// Ledger is the sole writer of accumulator state. An account is seeded
// from the member record on first touch; afterwards the ledger is
// authoritative and the member value is read-only input.
type Ledger struct {
	logger *zap.Logger

	mu       sync.RWMutex
	accounts map[string]*member.Accumulators
	apps     map[string]*Application

	stripes [64]sync.Mutex
}

// New returns an empty ledger.
func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		logger:   logger,
		accounts: make(map[string]*member.Accumulators),
		apps:     make(map[string]*Application),
	}
}

// Lock serializes adjudication activity for one member and returns the
// unlock function. Claims for distinct members proceed in parallel; claims
// against the same member must not interleave between the accumulator read
// and the finalize write.
func (l *Ledger) Lock(memberID string) func() {
	m := &l.stripes[stripeFor(memberID, len(l.stripes))]
	m.Lock()
	return m.Unlock
}

func stripeFor(memberID string, stripes int) int {
	h := fnv.New32a()
	h.Write([]byte(memberID))
	return int(h.Sum32() % uint32(stripes))
}

// Account returns the member's current accumulator state, seeding it from
// the member record on first touch.
func (l *Ledger) Account(m *member.Member) member.Accumulators {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.accountLocked(m)
}

func (l *Ledger) accountLocked(m *member.Member) *member.Accumulators {
	if acct, ok := l.accounts[m.MemberID]; ok {
		return acct
	}
	seeded := m.Accumulators
	l.accounts[m.MemberID] = &seeded
	return &seeded
}

// Apply records a paid claim and rolls its patient responsibility into the
// accumulators: the deductible portion into deductible met and the full
// patient pay into out-of-pocket met, each capped at its limit. Applying a
// claim id with an active record fails with ErrDuplicateApplication.
func (l *Ledger) Apply(m *member.Member, app Application) (member.Accumulators, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.apps[app.ClaimID]; ok && !existing.Reversed {
		return member.Accumulators{}, fmt.Errorf("claim %s: %w", app.ClaimID, ErrDuplicateApplication)
	}

	acct := l.accountLocked(m)
	acct.DeductibleMet = capAt(acct.DeductibleMet.Add(app.DeductibleApplied), acct.DeductibleLimit)
	acct.OOPMet = capAt(acct.OOPMet.Add(app.PatientPay), acct.OOPLimit)

	stored := app
	stored.MemberID = m.MemberID
	stored.Reversed = false
	stored.ReversedAt = nil
	l.apps[app.ClaimID] = &stored

	l.logger.Debug("application recorded",
		zap.String("claim_id", app.ClaimID),
		zap.String("member_id", m.MemberID),
		zap.String("patient_pay", app.PatientPay.StringFixed(2)),
		zap.String("deductible_applied", app.DeductibleApplied.StringFixed(2)),
	)
	return *acct, nil
}

// Reverse backs out a previously applied claim, restoring the accumulators
// by exactly the recorded amounts, and marks the record reversed. The
// claim id becomes billable again afterwards.
func (l *Ledger) Reverse(claimID string, at time.Time) (Application, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	app, ok := l.apps[claimID]
	if !ok {
		return Application{}, fmt.Errorf("claim %s: %w", claimID, ErrNoApplication)
	}
	if app.Reversed {
		return Application{}, fmt.Errorf("claim %s: %w", claimID, ErrAlreadyReversed)
	}

	acct, ok := l.accounts[app.MemberID]
	if !ok {
		return Application{}, fmt.Errorf("claim %s: %w", claimID, ErrNoApplication)
	}
	acct.DeductibleMet = floorAtZero(acct.DeductibleMet.Sub(app.DeductibleApplied))
	acct.OOPMet = floorAtZero(acct.OOPMet.Sub(app.PatientPay))

	app.Reversed = true
	ts := at
	app.ReversedAt = &ts

	l.logger.Debug("application reversed",
		zap.String("claim_id", claimID),
		zap.String("member_id", app.MemberID),
	)
	return *app, nil
}

// Lookup returns a copy of the recorded application for a claim id.
func (l *Ledger) Lookup(claimID string) (Application, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	app, ok := l.apps[claimID]
	if !ok {
		return Application{}, false
	}
	return *app, true
}

func capAt(v, limit decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(limit) {
		return limit
	}
	return v
}

func floorAtZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
