package telecom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCodeValid(t *testing.T) {
	for _, c := range []TransactionCode{TransactionBilling, TransactionReversal, TransactionRebill} {
		assert.True(t, c.Valid(), "%s", c)
	}
	assert.False(t, TransactionCode("B4").Valid())
	assert.False(t, TransactionCode("").Valid())
}

func TestRejectCodeMessages(t *testing.T) {
	assert.Equal(t, "Product/Service Not Covered", RejectNotCovered.Message())
	assert.Equal(t, "Prior Authorization Required", RejectPARequired.Message())
	assert.Equal(t, "Plan Limitations Exceeded", RejectPlanLimits.Message())
	assert.Equal(t, "DUR Reject", RejectDUR.Message())
}

func TestDAWCodeValid(t *testing.T) {
	assert.True(t, DAWNoSelection.Valid())
	assert.True(t, DAWGenericOutOfStock.Valid())
	assert.False(t, DAWCode("5").Valid())
}

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityContraindicated.Blocking())
	assert.False(t, SeveritySerious.Blocking())
	assert.False(t, SeverityModerate.Blocking())

	assert.Equal(t, "Contraindicated", SeverityContraindicated.Label())
	assert.Equal(t, "Serious", SeveritySerious.Label())
	assert.Equal(t, "Moderate", SeverityModerate.Label())
	assert.Equal(t, "Unknown", Severity(9).Label())
}

func TestConflictDescriptionsCoverAllCodes(t *testing.T) {
	for _, c := range []ConflictCode{
		ConflictDrugDrug, ConflictDuplication, ConflictEarlyRefill,
		ConflictHighDose, ConflictDrugAge, ConflictDrugGender,
	} {
		assert.NotEmpty(t, ConflictDescriptions[c], "%s", c)
	}
}

func TestDateRoundTrip(t *testing.T) {
	d := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "20260801", FormatDate(d))

	parsed, err := ParseDate("20260801")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d))

	_, err = ParseDate("2026-08-01")
	assert.Error(t, err)
}
