package adjudication

import (
	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/domain/claim"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/formulary"
)

// quote is the benefit split for one covered claim. patientPay + planPaid
// equals allowed exactly; deductible + copay + coinsurance equals
// patientPay.
type quote struct {
	allowed     decimal.Decimal
	deductible  decimal.Decimal
	copay       decimal.Decimal
	coinsurance decimal.Decimal
	patientPay  decimal.Decimal
	planPaid    decimal.Decimal
}

// priceClaim splits the allowed amount between patient and plan against
// the member's current accumulator state. The ordering is fixed: lesser of
// submitted cost and negotiated rate, then deductible when the entry is
// deductible-eligible, then cost share on the remainder, then the
// out-of-pocket cap on the patient total.
func priceClaim(c *claim.PharmacyClaim, entry *formulary.Entry, acct member.Accumulators) quote {
	allowed := c.SubmittedCost()
	if entry.NegotiatedRate.IsPositive() && entry.NegotiatedRate.LessThan(allowed) {
		allowed = entry.NegotiatedRate
	}

	q := quote{
		allowed:     allowed,
		deductible:  decimal.Zero,
		copay:       decimal.Zero,
		coinsurance: decimal.Zero,
	}

	remainder := allowed
	if entry.DeductibleApplies {
		q.deductible = decimal.Min(remainder, acct.DeductibleRoom())
		remainder = remainder.Sub(q.deductible)
	}

	switch entry.CostShare.Kind() {
	case formulary.CostShareCopay:
		q.copay = decimal.Min(entry.CostShare.CopayAmount(), remainder)
	case formulary.CostShareCoinsurance:
		// Half-up to cents, applied once at this line.
		q.coinsurance = remainder.Mul(entry.CostShare.Rate()).Round(2)
	}

	patient := q.deductible.Add(q.copay).Add(q.coinsurance)
	if room := acct.OOPRoom(); patient.GreaterThan(room) {
		// Trim the cost-share lines before the deductible line so the
		// recorded deductible stays equal to what deductible_met grows by.
		excess := patient.Sub(room)

		cut := decimal.Min(q.coinsurance, excess)
		q.coinsurance = q.coinsurance.Sub(cut)
		excess = excess.Sub(cut)

		cut = decimal.Min(q.copay, excess)
		q.copay = q.copay.Sub(cut)
		excess = excess.Sub(cut)

		q.deductible = q.deductible.Sub(excess)
		patient = room
	}

	q.patientPay = patient
	q.planPaid = allowed.Sub(patient)
	return q
}
