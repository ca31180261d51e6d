// Package claim defines the pharmacy claim value object, its mandatory-field
// screening, and the adjudication response returned for it.
package claim

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalAsFloat, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decimalAsFloat lets numeric validation tags apply to decimal fields.
func decimalAsFloat(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// ValidationError reports a claim that failed mandatory-field screening.
// It aborts the single claim before any adjudication state transition and
// is an input failure, never a business rejection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid claim: %s %s", e.Field, e.Reason)
}

// PharmacyClaim is an immutable value describing one dispensing event.
// Reversals and rebills are submitted as new claims referencing the
// original claim id, never as mutations of it.
type PharmacyClaim struct {
	ClaimID         string                  `json:"claim_id" validate:"required"`
	TransactionCode telecom.TransactionCode `json:"transaction_code" validate:"required,oneof=B1 B2 B3"`
	ServiceDate     time.Time               `json:"service_date" validate:"required"`

	MemberID     string `json:"member_id" validate:"required"`
	CardholderID string `json:"cardholder_id" validate:"required"`
	PersonCode   string `json:"person_code" validate:"omitempty,len=2,numeric"`
	BIN          string `json:"bin" validate:"required,len=6,numeric"`
	PCN          string `json:"pcn" validate:"required"`
	GroupNumber  string `json:"group_number" validate:"required"`

	PharmacyNPI   string `json:"pharmacy_npi" validate:"required,len=10,numeric"`
	PrescriberNPI string `json:"prescriber_npi" validate:"required,len=10,numeric"`

	PrescriptionNumber string `json:"prescription_number" validate:"required"`
	FillNumber         int    `json:"fill_number" validate:"gte=0"`

	NDC      string `json:"ndc" validate:"required,len=11,numeric"`
	GPI      string `json:"gpi" validate:"omitempty,len=14,numeric"`
	DrugName string `json:"drug_name" validate:"required"`

	QuantityDispensed decimal.Decimal `json:"quantity_dispensed" validate:"gt=0"`
	DaysSupply        int             `json:"days_supply" validate:"gt=0,lte=365"`
	DAWCode           telecom.DAWCode `json:"daw_code" validate:"oneof=0 1 2 3 4"`

	IngredientCostSubmitted decimal.Decimal `json:"ingredient_cost_submitted" validate:"gte=0"`
	DispensingFeeSubmitted  decimal.Decimal `json:"dispensing_fee_submitted" validate:"gte=0"`
	PatientPaidSubmitted    decimal.Decimal `json:"patient_paid_submitted" validate:"gte=0"`
	UsualCustomaryCharge    decimal.Decimal `json:"usual_customary_charge" validate:"gte=0"`
	GrossAmountDue          decimal.Decimal `json:"gross_amount_due" validate:"gte=0"`

	PriorAuthNumber string `json:"prior_auth_number,omitempty"`
	OriginalClaimID string `json:"original_claim_id,omitempty"`
}

// Validate screens mandatory fields and cross-field rules. The returned
// error is always a *ValidationError.
func (c *PharmacyClaim) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Reason: describe(fe)}
		}
		return &ValidationError{Field: "claim", Reason: err.Error()}
	}

	switch c.TransactionCode {
	case telecom.TransactionReversal, telecom.TransactionRebill:
		if c.OriginalClaimID == "" {
			return &ValidationError{
				Field:  "original_claim_id",
				Reason: fmt.Sprintf("is required for %s transactions", c.TransactionCode),
			}
		}
	case telecom.TransactionBilling:
		if c.OriginalClaimID != "" {
			return &ValidationError{
				Field:  "original_claim_id",
				Reason: "must be empty for B1 transactions",
			}
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must be numeric"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// SubmittedCost returns ingredient cost plus dispensing fee.
func (c *PharmacyClaim) SubmittedCost() decimal.Decimal {
	return c.IngredientCostSubmitted.Add(c.DispensingFeeSubmitted)
}

// IsReversal reports whether the claim is a B2 reversal.
func (c *PharmacyClaim) IsReversal() bool {
	return c.TransactionCode == telecom.TransactionReversal
}

// IsRebill reports whether the claim is a B3 rebill.
func (c *PharmacyClaim) IsRebill() bool {
	return c.TransactionCode == telecom.TransactionRebill
}
