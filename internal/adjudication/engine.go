// Package adjudication implements the point-of-sale claim pipeline:
// coverage, utilization management, DUR screening, pricing, and
// finalization against the benefit ledger.
package adjudication

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/domain/claim"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/dur"
	"github.com/mark64oswald/healthsim-hello/internal/formulary"
	"github.com/mark64oswald/healthsim-hello/internal/ledger"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
	"github.com/mark64oswald/healthsim-hello/internal/observability/metrics"
)

// Config holds engine configuration
type Config struct {
	// Metrics receives adjudication counters; nil disables instrumentation
	Metrics *metrics.Metrics
	// Clock supplies processing timestamps; nil means time.Now in UTC
	Clock func() time.Time
	// AuthNumber supplies payer authorization numbers; nil means uuid-derived
	AuthNumber func() string
}

// Engine adjudicates pharmacy claims against a formulary, a DUR rule set,
// and the benefit ledger. A rejection is a response value; the error
// return is reserved for input failures the pipeline never started on.
type Engine struct {
	formulary *formulary.Formulary
	rules     *dur.RuleSet
	ledger    *ledger.Ledger
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	authNo    func() string
}

// New creates an adjudication engine. The formulary, rule set, and ledger
// are required; adjudicating without any of them configured is a setup
// error, not a claim outcome.
func New(f *formulary.Formulary, rules *dur.RuleSet, led *ledger.Ledger, cfg Config, logger *zap.Logger) (*Engine, error) {
	if f == nil {
		return nil, fmt.Errorf("formulary is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("dur rule set is required")
	}
	if led == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	if cfg.AuthNumber == nil {
		cfg.AuthNumber = NewAuthorizationNumber
	}

	return &Engine{
		formulary: f,
		rules:     rules,
		ledger:    led,
		logger:    logger,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("adjudication"),
		now:       cfg.Clock,
		authNo:    cfg.AuthNumber,
	}, nil
}

// NewAuthorizationNumber returns a payer authorization number: RX followed
// by twelve hex characters derived from a random UUID.
func NewAuthorizationNumber() string {
	id := uuid.New()
	return "RX" + strings.ToUpper(hex.EncodeToString(id[:6]))
}

// Adjudicate runs one claim through the pipeline and returns the business
// outcome. The member record must belong to the claim's member id; the
// caller resolves it. Errors mean the claim never reached adjudication:
// malformed input, a member mismatch, or a reversal with no matching paid
// claim.
func (e *Engine) Adjudicate(ctx context.Context, c *claim.PharmacyClaim, m *member.Member) (*claim.AdjudicationResponse, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "adjudication.Adjudicate")
	defer span.End()

	if err := c.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("claim.id", c.ClaimID),
		attribute.String("claim.transaction", string(c.TransactionCode)),
		attribute.String("claim.ndc", c.NDC),
	)

	if m == nil {
		return nil, fmt.Errorf("member %s not enrolled", c.MemberID)
	}
	if m.MemberID != c.MemberID {
		return nil, fmt.Errorf("claim member %s does not match member record %s", c.MemberID, m.MemberID)
	}

	// One lock spans the whole transaction so pricing and finalize are a
	// single read-modify-write against the member's accumulators.
	unlock := e.ledger.Lock(m.MemberID)
	defer unlock()

	var (
		resp *claim.AdjudicationResponse
		err  error
	)
	switch c.TransactionCode {
	case telecom.TransactionReversal:
		resp, err = e.reverse(ctx, c, m)
	case telecom.TransactionRebill:
		resp, err = e.rebill(ctx, c, m)
	default:
		resp, err = e.bill(ctx, c, m)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("claim.status", string(resp.Status)))
	elapsed := time.Since(start)
	e.observe(resp, elapsed)
	e.logResponse(c, resp, elapsed)
	return resp, nil
}

// bill is the B1 pipeline: duplicate check, coverage, utilization
// management, DUR, pricing, finalize.
func (e *Engine) bill(ctx context.Context, c *claim.PharmacyClaim, m *member.Member) (*claim.AdjudicationResponse, error) {
	// Duplicate detection precedes every clinical and financial step.
	if app, ok := e.ledger.Lookup(c.ClaimID); ok && !app.Reversed {
		return claim.NewDuplicate(c, e.now()), nil
	}

	cov := e.checkCoverage(ctx, c)
	if !cov.Covered {
		return claim.NewRejected(c, e.now(), telecom.RejectNotCovered, cov.Message, nil), nil
	}
	entry := cov.Entry

	if reject := e.checkUtilization(ctx, c, m, entry); reject != nil {
		return reject, nil
	}

	alerts := e.screen(ctx, c, m, entry)
	if alert, blocked := firstBlocking(alerts); blocked {
		msg := fmt.Sprintf("%s: %s", telecom.ConflictDescriptions[alert.Type], alert.Message)
		return claim.NewRejected(c, e.now(), telecom.RejectDUR, msg, alerts), nil
	}

	q := e.price(ctx, c, m, entry)
	return e.finalize(ctx, c, m, q, alerts)
}

// reverse is the B2 path: back out the referenced paid claim and echo the
// reversed amounts. An unmatched or repeated reversal is an input error.
func (e *Engine) reverse(ctx context.Context, c *claim.PharmacyClaim, m *member.Member) (*claim.AdjudicationResponse, error) {
	_, span := e.tracer.Start(ctx, "adjudication.reverse")
	defer span.End()

	if app, ok := e.ledger.Lookup(c.OriginalClaimID); ok && app.MemberID != m.MemberID {
		return nil, fmt.Errorf("claim %s belongs to another member: %w", c.OriginalClaimID, ledger.ErrNoApplication)
	}

	now := e.now()
	app, err := e.ledger.Reverse(c.OriginalClaimID, now)
	if err != nil {
		return nil, err
	}

	detail := &claim.PaidDetail{
		AuthorizationNumber: e.authNo(),
		AllowedAmount:       app.AllowedAmount,
		DeductibleApplied:   app.DeductibleApplied,
		PatientPayAmount:    app.PatientPay,
		PlanPaidAmount:      app.PlanPaid,
		Accumulators:        e.ledger.Account(m),
	}
	return claim.NewPaid(c, now, detail, nil), nil
}

// rebill is the B3 path: reverse the original, then adjudicate the claim
// as a fresh billing under current benefit state.
func (e *Engine) rebill(ctx context.Context, c *claim.PharmacyClaim, m *member.Member) (*claim.AdjudicationResponse, error) {
	if app, ok := e.ledger.Lookup(c.OriginalClaimID); ok && app.MemberID != m.MemberID {
		return nil, fmt.Errorf("claim %s belongs to another member: %w", c.OriginalClaimID, ledger.ErrNoApplication)
	}
	if _, err := e.ledger.Reverse(c.OriginalClaimID, e.now()); err != nil {
		return nil, err
	}
	return e.bill(ctx, c, m)
}

func (e *Engine) checkCoverage(ctx context.Context, c *claim.PharmacyClaim) formulary.CoverageStatus {
	_, span := e.tracer.Start(ctx, "adjudication.coverage")
	defer span.End()

	st := e.formulary.CheckCoverage(c.NDC)
	span.SetAttributes(attribute.Bool("coverage.covered", st.Covered))
	return st
}

// checkUtilization applies plan controls in fixed order: prior auth, step
// therapy, quantity limit. The first failure rejects the claim.
func (e *Engine) checkUtilization(ctx context.Context, c *claim.PharmacyClaim, m *member.Member, entry *formulary.Entry) *claim.AdjudicationResponse {
	_, span := e.tracer.Start(ctx, "adjudication.utilization")
	defer span.End()

	if entry.RequiresPA && c.PriorAuthNumber == "" {
		msg := fmt.Sprintf("%s requires prior authorization", entry.DrugName)
		return claim.NewRejected(c, e.now(), telecom.RejectPARequired, msg, nil)
	}
	if entry.StepTherapy && c.PriorAuthNumber == "" && !stepSatisfied(entry, m) {
		msg := fmt.Sprintf("step therapy: first-line alternatives must be tried before %s", entry.DrugName)
		return claim.NewRejected(c, e.now(), telecom.RejectPARequired, msg, nil)
	}
	if entry.QuantityLimit != nil && entry.QuantityLimit.Exceeded(c.QuantityDispensed, c.DaysSupply) {
		msg := fmt.Sprintf("quantity limit exceeded: %s allows %s", entry.DrugName, entry.QuantityLimit)
		return claim.NewRejected(c, e.now(), telecom.RejectPlanLimits, msg, nil)
	}
	return nil
}

// stepSatisfied reports whether the medication profile shows a fill in any
// prerequisite therapeutic class. A submitted prior auth number overrides
// the step check before this is consulted.
func stepSatisfied(entry *formulary.Entry, m *member.Member) bool {
	for _, prereq := range entry.StepPrerequisites {
		for _, med := range m.Medications {
			if med.GPI != "" && strings.HasPrefix(med.GPI, prereq) {
				return true
			}
		}
	}
	return false
}

// screen runs the DUR rules over the claim and the member's profile. The
// claim's GPI falls back to the formulary entry's when the pharmacy did
// not submit one.
func (e *Engine) screen(ctx context.Context, c *claim.PharmacyClaim, m *member.Member, entry *formulary.Entry) []dur.Alert {
	_, span := e.tracer.Start(ctx, "adjudication.dur")
	defer span.End()

	gpi := c.GPI
	if gpi == "" {
		gpi = entry.GPI
	}
	res := e.rules.Screen(dur.Request{
		MemberID:    m.MemberID,
		Age:         m.AgeOn(c.ServiceDate),
		Gender:      m.Gender,
		NDC:         c.NDC,
		GPI:         gpi,
		DrugName:    c.DrugName,
		Quantity:    c.QuantityDispensed,
		DaysSupply:  c.DaysSupply,
		ServiceDate: c.ServiceDate,
		Medications: m.Medications,
	})
	span.SetAttributes(
		attribute.Bool("dur.passed", res.Passed),
		attribute.Int("dur.alerts", len(res.Alerts)),
	)
	for _, a := range res.Alerts {
		e.logger.Debug("dur alert",
			zap.String("claim_id", c.ClaimID),
			zap.String("type", string(a.Type)),
			zap.Int("severity", int(a.Severity)),
			zap.String("message", a.Message),
		)
	}
	return res.Alerts
}

func (e *Engine) price(ctx context.Context, c *claim.PharmacyClaim, m *member.Member, entry *formulary.Entry) quote {
	_, span := e.tracer.Start(ctx, "adjudication.pricing")
	defer span.End()

	acct := e.ledger.Account(m)
	q := priceClaim(c, entry, acct)
	span.SetAttributes(
		attribute.String("pricing.allowed", q.allowed.StringFixed(2)),
		attribute.String("pricing.patient_pay", q.patientPay.StringFixed(2)),
	)
	return q
}

// finalize applies the priced claim to the ledger and assembles the paid
// response with the post-application accumulator state.
func (e *Engine) finalize(ctx context.Context, c *claim.PharmacyClaim, m *member.Member, q quote, alerts []dur.Alert) (*claim.AdjudicationResponse, error) {
	_, span := e.tracer.Start(ctx, "adjudication.finalize")
	defer span.End()

	now := e.now()
	app := ledger.Application{
		ClaimID:             c.ClaimID,
		MemberID:            m.MemberID,
		AuthorizationNumber: e.authNo(),
		AllowedAmount:       q.allowed,
		DeductibleApplied:   q.deductible,
		PatientPay:          q.patientPay,
		PlanPaid:            q.planPaid,
		AppliedAt:           now,
	}
	acct, err := e.ledger.Apply(m, app)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateApplication) {
			// Lost a cross-member race on the claim id after the lookup.
			return claim.NewDuplicate(c, now), nil
		}
		return nil, err
	}

	detail := &claim.PaidDetail{
		AuthorizationNumber: app.AuthorizationNumber,
		AllowedAmount:       q.allowed,
		DeductibleApplied:   q.deductible,
		CopayAmount:         q.copay,
		CoinsuranceAmount:   q.coinsurance,
		PatientPayAmount:    q.patientPay,
		PlanPaidAmount:      q.planPaid,
		Accumulators:        acct,
	}
	return claim.NewPaid(c, now, detail, alerts), nil
}

func firstBlocking(alerts []dur.Alert) (dur.Alert, bool) {
	for _, a := range alerts {
		if a.Severity.Blocking() {
			return a, true
		}
	}
	return dur.Alert{}, false
}

func (e *Engine) observe(resp *claim.AdjudicationResponse, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.AdjudicationDuration.Observe(elapsed.Seconds())
	e.metrics.ClaimsProcessed.WithLabelValues(string(resp.Status), string(resp.TransactionCode)).Inc()
	if resp.Status == telecom.StatusDuplicate {
		e.metrics.DuplicateClaims.Inc()
	}
	if resp.Reject != nil {
		e.metrics.ClaimsRejected.WithLabelValues(string(resp.Reject.Code)).Inc()
	}
	if resp.TransactionCode == telecom.TransactionReversal && resp.Status == telecom.StatusPaid {
		e.metrics.ClaimReversals.Inc()
	}
	for _, a := range resp.DURAlerts {
		e.metrics.DURAlerts.WithLabelValues(string(a.Type), strconv.Itoa(int(a.Severity))).Inc()
	}
}

func (e *Engine) logResponse(c *claim.PharmacyClaim, resp *claim.AdjudicationResponse, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("claim_id", resp.ClaimID),
		zap.String("transaction", string(resp.TransactionCode)),
		zap.String("status", string(resp.Status)),
		zap.String("member_id", c.MemberID),
		zap.String("ndc", c.NDC),
		zap.Duration("duration", elapsed),
	}
	if resp.Reject != nil {
		fields = append(fields, zap.String("reject_code", string(resp.Reject.Code)))
	}
	if resp.Paid != nil {
		fields = append(fields,
			zap.String("patient_pay", resp.Paid.PatientPayAmount.StringFixed(2)),
			zap.String("plan_paid", resp.Paid.PlanPaidAmount.StringFixed(2)),
		)
	}
	if n := len(resp.DURAlerts); n > 0 {
		fields = append(fields, zap.Int("dur_alerts", n))
	}
	e.logger.Info("claim adjudicated", fields...)
}
