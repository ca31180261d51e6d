// Package member implements the plan member model consumed by adjudication.
package member

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

var validate = validator.New()

// Accumulators tracks a member's benefit totals for one accumulation period.
// Both pairs hold the invariant 0 <= met <= limit after every update.
type Accumulators struct {
	DeductibleMet   decimal.Decimal `json:"deductible_met"`
	DeductibleLimit decimal.Decimal `json:"deductible_limit"`
	OOPMet          decimal.Decimal `json:"oop_met"`
	OOPLimit        decimal.Decimal `json:"oop_limit"`
}

// DeductibleRoom returns the amount still payable toward the deductible.
func (a Accumulators) DeductibleRoom() decimal.Decimal {
	room := a.DeductibleLimit.Sub(a.DeductibleMet)
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}

// OOPRoom returns the member's remaining out-of-pocket responsibility.
// Once this reaches zero the plan pays claims in full.
func (a Accumulators) OOPRoom() decimal.Decimal {
	room := a.OOPLimit.Sub(a.OOPMet)
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}

// Validate checks the met-within-limit invariant.
func (a Accumulators) Validate() error {
	if a.DeductibleMet.IsNegative() || a.DeductibleLimit.IsNegative() {
		return fmt.Errorf("deductible amounts must be non-negative")
	}
	if a.OOPMet.IsNegative() || a.OOPLimit.IsNegative() {
		return fmt.Errorf("out-of-pocket amounts must be non-negative")
	}
	if a.DeductibleMet.GreaterThan(a.DeductibleLimit) {
		return fmt.Errorf("deductible met %s exceeds limit %s", a.DeductibleMet, a.DeductibleLimit)
	}
	if a.OOPMet.GreaterThan(a.OOPLimit) {
		return fmt.Errorf("out-of-pocket met %s exceeds limit %s", a.OOPMet, a.OOPLimit)
	}
	return nil
}

// Medication is one entry of a member's current medication profile,
// the fill history consulted by utilization review.
type Medication struct {
	NDC        string          `json:"ndc" validate:"required,len=11,numeric"`
	GPI        string          `json:"gpi" validate:"omitempty,len=14,numeric"`
	DrugName   string          `json:"drug_name" validate:"required"`
	FillDate   time.Time       `json:"fill_date" validate:"required"`
	DaysSupply int             `json:"days_supply" validate:"gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Validate checks the medication entry fields.
func (d Medication) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid medication: %w", err)
	}
	return nil
}

// Member identifies a covered person: identity, routing triple, demographics,
// benefit accumulators, and the current medication profile.
type Member struct {
	MemberID     string       `json:"member_id" validate:"required"`
	CardholderID string       `json:"cardholder_id" validate:"required"`
	PersonCode   string       `json:"person_code" validate:"omitempty,len=2,numeric"`
	FirstName    string       `json:"first_name" validate:"required"`
	LastName     string       `json:"last_name" validate:"required"`
	DateOfBirth  time.Time    `json:"date_of_birth" validate:"required"`
	Gender       string       `json:"gender" validate:"required,oneof=M F U"`
	BIN          string       `json:"bin" validate:"required,len=6,numeric"`
	PCN          string       `json:"pcn" validate:"required"`
	GroupNumber  string       `json:"group_number" validate:"required"`
	Accumulators Accumulators `json:"accumulators"`
	Medications  []Medication `json:"medications,omitempty" validate:"dive"`
}

// Validate checks mandatory fields and the accumulator invariant.
func (m *Member) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid member: %w", err)
	}
	if err := m.Accumulators.Validate(); err != nil {
		return fmt.Errorf("invalid member %s: %w", m.MemberID, err)
	}
	return nil
}

// AgeOn returns the member's age in whole years on the given date.
func (m *Member) AgeOn(date time.Time) int {
	age := date.Year() - m.DateOfBirth.Year()
	if m.DateOfBirth.AddDate(age, 0, 0).After(date) {
		age--
	}
	return age
}

// IsFemale reports whether the member's recorded gender is female.
func (m *Member) IsFemale() bool { return m.Gender == telecom.GenderFemale }

// Clone returns a deep copy; the medication profile is not shared.
func (m *Member) Clone() *Member {
	c := *m
	c.Medications = append([]Medication(nil), m.Medications...)
	return &c
}
