package dur

import (
	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

// GPI 2-digit therapeutic classes referenced by the interaction table.
const (
	classAnticoagulant  = "83"
	classNSAID          = "66"
	classOpioid         = "65"
	classBenzodiazepine = "57"
)

// classPair is an unordered pair of GPI drug classes.
type classPair struct{ a, b string }

func pairOf(x, y string) classPair {
	if x > y {
		x, y = y, x
	}
	return classPair{a: x, b: y}
}

type ageRule struct {
	gpiPrefix string
	minAge    int
	maxAge    int // 0 = open-ended
	severity  telecom.Severity
	message   string
}

type genderRule struct {
	gpiPrefix string
	gender    string
	severity  telecom.Severity
	message   string
}

// RuleSet is the static clinical rule battery. It is built once, immutable
// thereafter, and safe for concurrent use across parallel screenings.
type RuleSet struct {
	version              string
	interactions         map[classPair]telecom.Severity
	duplicationPrefixLen int
	ageRules             []ageRule
	genderRules          []genderRule
	maxDailyUnits        map[string]decimal.Decimal // GPI-10 product prefix
	earlyRefillThreshold int
}

// DefaultRuleSet returns the standard battery: the anticoagulant/NSAID
// interaction pair, GPI-6 therapeutic duplication, NSAID precaution at 65
// and older, the finasteride gender contraindication, per-product daily
// dose maximums, and a 7-day early-refill window.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		version: "2026.08",
		interactions: map[classPair]telecom.Severity{
			pairOf(classAnticoagulant, classNSAID):   telecom.SeverityContraindicated,
			pairOf(classOpioid, classBenzodiazepine): telecom.SeveritySerious,
		},
		duplicationPrefixLen: 6,
		ageRules: []ageRule{
			{gpiPrefix: "6610", minAge: 65, severity: telecom.SeveritySerious,
				message: "NSAID use in patients 65 and older carries elevated GI bleeding risk"},
			{gpiPrefix: "65100085", maxAge: 11, severity: telecom.SeverityContraindicated,
				message: "tramadol is contraindicated in children under 12"},
		},
		genderRules: []genderRule{
			{gpiPrefix: "2410007", gender: telecom.GenderFemale, severity: telecom.SeveritySerious,
				message: "finasteride is contraindicated in women"},
		},
		maxDailyUnits: map[string]decimal.Decimal{
			"6610001000": decimal.NewFromInt(4), // ibuprofen 800mg
			"6510008500": decimal.NewFromInt(8), // tramadol 50mg
			"2725005000": decimal.NewFromInt(4), // metformin 500mg
			"8330001000": decimal.NewFromInt(2), // warfarin 5mg
			"3940001000": decimal.NewFromInt(1), // atorvastatin
		},
		earlyRefillThreshold: 7,
	}
}

// WithEarlyRefillThreshold returns a copy of the rule set using the given
// refill window in days. Values below one are ignored.
func (r *RuleSet) WithEarlyRefillThreshold(days int) *RuleSet {
	c := *r
	if days > 0 {
		c.earlyRefillThreshold = days
	}
	return &c
}

// Version identifies the rule table build.
func (r *RuleSet) Version() string { return r.version }

// EarlyRefillThreshold returns the refill window in days.
func (r *RuleSet) EarlyRefillThreshold() int { return r.earlyRefillThreshold }
