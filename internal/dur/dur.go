// Package dur implements drug-utilization-review screening: a candidate
// claim plus the member's current medication profile evaluated against a
// fixed battery of clinical safety rules.
package dur

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

// Alert is one triggered safety finding.
type Alert struct {
	Type            telecom.ConflictCode `json:"type"`
	Severity        telecom.Severity     `json:"severity"`
	Message         string               `json:"message"`
	ConflictingDrug string               `json:"conflicting_drug,omitempty"` // NDC of the profile medication involved
}

// Result is the outcome of one screening. All triggered alerts are
// collected; Passed is false only when a contraindicated (severity 1)
// alert is present. Severity 2 and 3 alerts are advisory.
type Result struct {
	Passed bool    `json:"passed"`
	Alerts []Alert `json:"alerts"`
}

// Request is the screening input: the candidate drug as submitted plus the
// patient context and fill history supplied by the caller.
type Request struct {
	MemberID    string              `json:"member_id"`
	Age         int                 `json:"age"`
	Gender      string              `json:"gender"`
	NDC         string              `json:"ndc"`
	GPI         string              `json:"gpi"`
	DrugName    string              `json:"drug_name"`
	Quantity    decimal.Decimal     `json:"quantity"`
	DaysSupply  int                 `json:"days_supply"`
	ServiceDate time.Time           `json:"service_date"`
	Medications []member.Medication `json:"medications"`
}
