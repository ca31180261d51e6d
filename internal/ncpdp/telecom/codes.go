// Package telecom provides NCPDP Telecommunication Standard coded values for
// pharmacy claim billing. These vocabularies are stable across payers: claim
// transaction codes, response statuses, reject codes, DAW product selection
// codes, and the DUR conflict/severity code sets.
package telecom

import "time"

// TransactionCode identifies the claim transaction type (field 103-A3).
type TransactionCode string

const (
	TransactionBilling  TransactionCode = "B1"
	TransactionReversal TransactionCode = "B2"
	TransactionRebill   TransactionCode = "B3"
)

// Valid reports whether the code is a recognized claim transaction.
func (c TransactionCode) Valid() bool {
	switch c {
	case TransactionBilling, TransactionReversal, TransactionRebill:
		return true
	}
	return false
}

// ClaimStatus is the header response status of an adjudicated claim.
type ClaimStatus string

const (
	StatusPaid      ClaimStatus = "P"
	StatusRejected  ClaimStatus = "R"
	StatusDuplicate ClaimStatus = "D"
)

// RejectCode identifies why a claim was not payable (field 511-FB).
// Reject codes are business outcomes, not processing errors.
type RejectCode string

const (
	RejectNotCovered    RejectCode = "70"
	RejectPARequired    RejectCode = "75"
	RejectPlanLimits    RejectCode = "76"
	RejectDUR           RejectCode = "88"
)

// RejectMessages maps reject codes to their standard descriptions.
var RejectMessages = map[RejectCode]string{
	RejectNotCovered: "Product/Service Not Covered",
	RejectPARequired: "Prior Authorization Required",
	RejectPlanLimits: "Plan Limitations Exceeded",
	RejectDUR:        "DUR Reject",
}

// Message returns the standard description for the reject code.
func (c RejectCode) Message() string {
	return RejectMessages[c]
}

// DAWCode is the Dispense As Written / product selection code (field 408-D8).
type DAWCode string

const (
	DAWNoSelection        DAWCode = "0"
	DAWBrandByPrescriber  DAWCode = "1"
	DAWBrandByPatient     DAWCode = "2"
	DAWPharmacistSelected DAWCode = "3"
	DAWGenericOutOfStock  DAWCode = "4"
)

// DAWDescriptions maps DAW codes to their meanings.
var DAWDescriptions = map[DAWCode]string{
	DAWNoSelection:        "No Selection",
	DAWBrandByPrescriber:  "Brand Required by Prescriber",
	DAWBrandByPatient:     "Brand Requested by Patient",
	DAWPharmacistSelected: "Pharmacist Selected",
	DAWGenericOutOfStock:  "Generic Not in Stock",
}

// Valid reports whether the code is within the supported DAW range.
func (c DAWCode) Valid() bool {
	_, ok := DAWDescriptions[c]
	return ok
}

// ConflictCode identifies the DUR conflict detected (field 439-E4).
type ConflictCode string

const (
	ConflictDrugDrug        ConflictCode = "DD"
	ConflictDuplication     ConflictCode = "TD"
	ConflictEarlyRefill     ConflictCode = "ER"
	ConflictHighDose        ConflictCode = "HD"
	ConflictDrugAge         ConflictCode = "DA"
	ConflictDrugGender      ConflictCode = "DG"
)

// ConflictDescriptions maps DUR conflict codes to their meanings.
var ConflictDescriptions = map[ConflictCode]string{
	ConflictDrugDrug:    "Drug-Drug Interaction",
	ConflictDuplication: "Therapeutic Duplication",
	ConflictEarlyRefill: "Early Refill",
	ConflictHighDose:    "High Dose",
	ConflictDrugAge:     "Drug-Age Precaution",
	ConflictDrugGender:  "Drug-Gender Contraindication",
}

// Severity is the DUR clinical significance level. Lower is more severe:
// level 1 conflicts are contraindicated and block payment.
type Severity int

const (
	SeverityContraindicated Severity = 1
	SeveritySerious         Severity = 2
	SeverityModerate        Severity = 3
)

// Label returns the human-readable severity name.
func (s Severity) Label() string {
	switch s {
	case SeverityContraindicated:
		return "Contraindicated"
	case SeveritySerious:
		return "Serious"
	case SeverityModerate:
		return "Moderate"
	default:
		return "Unknown"
	}
}

// Blocking reports whether the severity level blocks payment.
func (s Severity) Blocking() bool {
	return s == SeverityContraindicated
}

// Gender codes as carried on member records and claims.
const (
	GenderMale    = "M"
	GenderFemale  = "F"
	GenderUnknown = "U"
)

// FormatDate formats a time.Time to the NCPDP date format (CCYYMMDD).
func FormatDate(t time.Time) string {
	return t.Format("20060102")
}

// ParseDate parses an NCPDP date string (CCYYMMDD).
func ParseDate(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}
