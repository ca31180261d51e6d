// Package formulary implements the coverage resolver: a drug identifier
// lookup returning tier, cost-share rule, and utilization-management flags.
package formulary

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CostShareKind discriminates the two cost-share rules.
type CostShareKind int

const (
	CostShareCopay CostShareKind = iota + 1
	CostShareCoinsurance
)

// CostShare is the member cost-share rule for a formulary entry: a flat
// copay or a percentage coinsurance, never both.
type CostShare struct {
	kind  CostShareKind
	copay decimal.Decimal
	rate  decimal.Decimal
}

// Copay builds a flat-dollar cost share.
func Copay(amount decimal.Decimal) CostShare {
	return CostShare{kind: CostShareCopay, copay: amount}
}

// Coinsurance builds a percentage cost share. The rate is a fraction,
// 0.25 for 25%.
func Coinsurance(rate decimal.Decimal) CostShare {
	return CostShare{kind: CostShareCoinsurance, rate: rate}
}

// Kind returns the discriminant for exhaustive branching.
func (s CostShare) Kind() CostShareKind { return s.kind }

// CopayAmount returns the flat copay; zero for coinsurance rules.
func (s CostShare) CopayAmount() decimal.Decimal { return s.copay }

// Rate returns the coinsurance fraction; zero for copay rules.
func (s CostShare) Rate() decimal.Decimal { return s.rate }

// String renders the rule for logs and messages.
func (s CostShare) String() string {
	switch s.kind {
	case CostShareCopay:
		return fmt.Sprintf("$%s copay", s.copay.StringFixed(2))
	case CostShareCoinsurance:
		return fmt.Sprintf("%s%% coinsurance", s.rate.Mul(decimal.NewFromInt(100)).String())
	default:
		return "no cost share"
	}
}

// QuantityLimit caps dispensed units. With PerDays set the cap is prorated
// against the claim's days supply; otherwise it is a hard per-fill cap.
type QuantityLimit struct {
	MaxQuantity decimal.Decimal
	PerDays     int
}

// Exceeded reports whether the dispensed quantity breaks the cap.
func (q QuantityLimit) Exceeded(quantity decimal.Decimal, daysSupply int) bool {
	if q.PerDays <= 0 || daysSupply <= 0 {
		return quantity.GreaterThan(q.MaxQuantity)
	}
	// quantity/daysSupply > max/perDays, compared without division
	return quantity.Mul(decimal.NewFromInt(int64(q.PerDays))).
		GreaterThan(q.MaxQuantity.Mul(decimal.NewFromInt(int64(daysSupply))))
}

func (q QuantityLimit) String() string {
	if q.PerDays > 0 {
		return fmt.Sprintf("%s units per %d days", q.MaxQuantity, q.PerDays)
	}
	return fmt.Sprintf("%s units per fill", q.MaxQuantity)
}

// Entry is one drug row of a formulary. Entries are read-only once the
// formulary is built.
type Entry struct {
	NDC               string
	DrugName          string
	GPI               string
	Tier              int
	CostShare         CostShare
	RequiresPA        bool
	StepTherapy       bool
	StepPrerequisites []string // GPI prefixes, any of which satisfies the step
	QuantityLimit     *QuantityLimit
	DeductibleApplies bool
	NegotiatedRate    decimal.Decimal // contracted allowed amount; zero when uncontracted
}

func (e *Entry) validate() error {
	if e.NDC == "" {
		return fmt.Errorf("entry %q missing NDC", e.DrugName)
	}
	if e.Tier < 1 || e.Tier > 5 {
		return fmt.Errorf("entry %s: tier %d out of range 1-5", e.NDC, e.Tier)
	}
	if e.CostShare.kind == 0 {
		return fmt.Errorf("entry %s: cost share not set", e.NDC)
	}
	if e.StepTherapy && len(e.StepPrerequisites) == 0 {
		return fmt.Errorf("entry %s: step therapy without prerequisites", e.NDC)
	}
	return nil
}

// CoverageStatus is the result of a formulary lookup: covered with its
// entry, or not covered with a human-readable message. Not covered is a
// terminal business outcome, not an error.
type CoverageStatus struct {
	Covered bool
	Message string
	Entry   *Entry
}

// Formulary is an immutable coverage table. It is configured once and is
// safe for unrestricted concurrent reads.
type Formulary struct {
	name    string
	entries map[string]*Entry
}

// New builds a formulary, rejecting malformed rows and duplicate NDCs.
func New(name string, entries []Entry) (*Formulary, error) {
	if name == "" {
		return nil, fmt.Errorf("formulary name required")
	}
	f := &Formulary{name: name, entries: make(map[string]*Entry, len(entries))}
	for i := range entries {
		e := entries[i]
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("formulary %s: %w", name, err)
		}
		if _, dup := f.entries[e.NDC]; dup {
			return nil, fmt.Errorf("formulary %s: duplicate NDC %s", name, e.NDC)
		}
		f.entries[e.NDC] = &e
	}
	return f, nil
}

// Name returns the formulary name.
func (f *Formulary) Name() string { return f.name }

// Size returns the number of entries.
func (f *Formulary) Size() int { return len(f.entries) }

// CheckCoverage resolves a drug identifier. It is a total function over any
// input: unknown or malformed identifiers degrade to not covered, never to
// an error.
func (f *Formulary) CheckCoverage(ndc string) CoverageStatus {
	ndc = strings.TrimSpace(ndc)
	if e, ok := f.entries[ndc]; ok {
		return CoverageStatus{Covered: true, Entry: e}
	}
	return CoverageStatus{
		Covered: false,
		Message: fmt.Sprintf("NDC %s is not covered by the %s formulary", ndc, f.name),
	}
}
