package claim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/dur"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

// PaidDetail carries the money breakdown of a paid claim. The amounts
// satisfy plan_paid + patient_pay == allowed, and deductible, copay and
// coinsurance sum to patient pay.
type PaidDetail struct {
	AuthorizationNumber string              `json:"authorization_number"`
	AllowedAmount       decimal.Decimal     `json:"allowed_amount"`
	DeductibleApplied   decimal.Decimal     `json:"deductible_applied"`
	CopayAmount         decimal.Decimal     `json:"copay_amount"`
	CoinsuranceAmount   decimal.Decimal     `json:"coinsurance_amount"`
	PatientPayAmount    decimal.Decimal     `json:"patient_pay_amount"`
	PlanPaidAmount      decimal.Decimal     `json:"plan_paid_amount"`
	Accumulators        member.Accumulators `json:"accumulators"`
}

// RejectDetail carries the reject code and message of a rejected claim.
type RejectDetail struct {
	Code    telecom.RejectCode `json:"code"`
	Message string             `json:"message"`
}

// AdjudicationResponse is the outcome of adjudicating one claim. Paid
// responses populate Paid, rejected responses populate Reject, and a
// duplicate carries neither; the unset branch is absent, never zero-filled.
// Advisory DUR alerts ride along on paid responses as well as rejected ones.
type AdjudicationResponse struct {
	ClaimID         string                  `json:"claim_id"`
	TransactionCode telecom.TransactionCode `json:"transaction_code"`
	Status          telecom.ClaimStatus     `json:"status"`
	ProcessedAt     time.Time               `json:"processed_at"`
	Paid            *PaidDetail             `json:"paid,omitempty"`
	Reject          *RejectDetail           `json:"reject,omitempty"`
	DURAlerts       []dur.Alert             `json:"dur_alerts,omitempty"`
}

// NewPaid builds a paid response.
func NewPaid(c *PharmacyClaim, at time.Time, detail *PaidDetail, alerts []dur.Alert) *AdjudicationResponse {
	return &AdjudicationResponse{
		ClaimID:         c.ClaimID,
		TransactionCode: c.TransactionCode,
		Status:          telecom.StatusPaid,
		ProcessedAt:     at,
		Paid:            detail,
		DURAlerts:       alerts,
	}
}

// NewRejected builds a rejected response. An empty message falls back to
// the standard description for the reject code.
func NewRejected(c *PharmacyClaim, at time.Time, code telecom.RejectCode, message string, alerts []dur.Alert) *AdjudicationResponse {
	if message == "" {
		message = code.Message()
	}
	return &AdjudicationResponse{
		ClaimID:         c.ClaimID,
		TransactionCode: c.TransactionCode,
		Status:          telecom.StatusRejected,
		ProcessedAt:     at,
		Reject:          &RejectDetail{Code: code, Message: message},
		DURAlerts:       alerts,
	}
}

// NewDuplicate flags a billing resubmission of an already paid claim.
func NewDuplicate(c *PharmacyClaim, at time.Time) *AdjudicationResponse {
	return &AdjudicationResponse{
		ClaimID:         c.ClaimID,
		TransactionCode: c.TransactionCode,
		Status:          telecom.StatusDuplicate,
		ProcessedAt:     at,
	}
}

// IsPaid reports whether the claim was paid.
func (r *AdjudicationResponse) IsPaid() bool { return r.Status == telecom.StatusPaid }

// IsRejected reports whether the claim was rejected.
func (r *AdjudicationResponse) IsRejected() bool { return r.Status == telecom.StatusRejected }
