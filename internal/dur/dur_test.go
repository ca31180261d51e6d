package dur

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

var serviceDate = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

func ibuprofenMed(fill time.Time) member.Medication {
	return member.Medication{
		NDC:        "00904515260",
		GPI:        "66100010000310",
		DrugName:   "Ibuprofen 800mg",
		FillDate:   fill,
		DaysSupply: 30,
		Quantity:   decimal.NewFromInt(90),
	}
}

func warfarinMed(fill time.Time) member.Medication {
	return member.Medication{
		NDC:        "00056017270",
		GPI:        "83300010000330",
		DrugName:   "Warfarin Sodium 5mg",
		FillDate:   fill,
		DaysSupply: 30,
		Quantity:   decimal.NewFromInt(30),
	}
}

func TestScreenDrugDrugInteraction(t *testing.T) {
	rules := DefaultRuleSet()
	oldFill := serviceDate.AddDate(0, -2, 0)

	t.Run("warfarin claim against ibuprofen on file", func(t *testing.T) {
		res := rules.Screen(Request{
			Age: 55, Gender: telecom.GenderMale,
			NDC: "00056017270", GPI: "83300010000330", DrugName: "Warfarin Sodium 5mg",
			Quantity: decimal.NewFromInt(30), DaysSupply: 30, ServiceDate: serviceDate,
			Medications: []member.Medication{ibuprofenMed(oldFill)},
		})
		assert.False(t, res.Passed)
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictDrugDrug, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeverityContraindicated, res.Alerts[0].Severity)
		assert.Equal(t, "00904515260", res.Alerts[0].ConflictingDrug)
	})

	t.Run("pair matches in either direction", func(t *testing.T) {
		res := rules.Screen(Request{
			Age: 55, Gender: telecom.GenderMale,
			NDC: "00904515260", GPI: "66100010000310", DrugName: "Ibuprofen 800mg",
			Quantity: decimal.NewFromInt(90), DaysSupply: 30, ServiceDate: serviceDate,
			Medications: []member.Medication{warfarinMed(oldFill)},
		})
		assert.False(t, res.Passed)
		require.NotEmpty(t, res.Alerts)
		assert.Equal(t, telecom.ConflictDrugDrug, res.Alerts[0].Type)
	})

	t.Run("one alert per conflicting medication", func(t *testing.T) {
		second := warfarinMed(oldFill)
		second.NDC = "00003089421"
		second.GPI = "83370060000320"
		second.DrugName = "Eliquis 5mg"
		res := rules.Screen(Request{
			Age: 55, Gender: telecom.GenderMale,
			NDC: "00904515260", GPI: "66100010000310", DrugName: "Ibuprofen 800mg",
			Quantity: decimal.NewFromInt(90), DaysSupply: 30, ServiceDate: serviceDate,
			Medications: []member.Medication{warfarinMed(oldFill), second},
		})
		count := 0
		for _, a := range res.Alerts {
			if a.Type == telecom.ConflictDrugDrug {
				count++
			}
		}
		assert.Equal(t, 2, count)
	})
}

func TestScreenCleanProfile(t *testing.T) {
	res := DefaultRuleSet().Screen(Request{
		Age: 45, Gender: telecom.GenderFemale,
		NDC: "00093017101", GPI: "27250050000320", DrugName: "Metformin HCl 500mg",
		Quantity: decimal.NewFromInt(30), DaysSupply: 30, ServiceDate: serviceDate,
	})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Alerts)
}

func TestScreenTherapeuticDuplication(t *testing.T) {
	rules := DefaultRuleSet()
	atorvastatin := member.Medication{
		NDC: "00071015523", GPI: "39400010000310", DrugName: "Atorvastatin 20mg",
		FillDate: serviceDate.AddDate(0, -2, 0), DaysSupply: 30, Quantity: decimal.NewFromInt(30),
	}

	t.Run("second statin duplicates the first", func(t *testing.T) {
		res := rules.Screen(Request{
			Age: 60, Gender: telecom.GenderMale,
			NDC: "00078057715", GPI: "39400020000310", DrugName: "Rosuvastatin 10mg",
			Quantity: decimal.NewFromInt(30), DaysSupply: 30, ServiceDate: serviceDate,
			Medications: []member.Medication{atorvastatin},
		})
		assert.True(t, res.Passed, "duplication is advisory")
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictDuplication, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeverityModerate, res.Alerts[0].Severity)
		assert.Equal(t, "00071015523", res.Alerts[0].ConflictingDrug)
	})

	t.Run("refill of the same product is not duplication", func(t *testing.T) {
		res := rules.Screen(Request{
			Age: 60, Gender: telecom.GenderMale,
			NDC: "00071015523", GPI: "39400010000310", DrugName: "Atorvastatin 20mg",
			Quantity: decimal.NewFromInt(30), DaysSupply: 30,
			ServiceDate: serviceDate.AddDate(0, 1, 0),
			Medications: []member.Medication{atorvastatin},
		})
		for _, a := range res.Alerts {
			assert.NotEqual(t, telecom.ConflictDuplication, a.Type)
		}
	})
}

func TestScreenDrugAge(t *testing.T) {
	rules := DefaultRuleSet()

	screenIbuprofen := func(age int) Result {
		return rules.Screen(Request{
			Age: age, Gender: telecom.GenderMale,
			NDC: "00904515260", GPI: "66100010000310", DrugName: "Ibuprofen 800mg",
			Quantity: decimal.NewFromInt(90), DaysSupply: 30, ServiceDate: serviceDate,
		})
	}

	t.Run("NSAID at 65 and older", func(t *testing.T) {
		res := screenIbuprofen(70)
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictDrugAge, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeveritySerious, res.Alerts[0].Severity)
		assert.True(t, res.Passed, "precaution does not block")
	})

	t.Run("below the flagged range", func(t *testing.T) {
		assert.Empty(t, screenIbuprofen(64).Alerts)
	})

	t.Run("tramadol in a child blocks", func(t *testing.T) {
		res := rules.Screen(Request{
			Age: 10, Gender: telecom.GenderMale,
			NDC: "00093005801", GPI: "65100085000310", DrugName: "Tramadol HCl 50mg",
			Quantity: decimal.NewFromInt(60), DaysSupply: 30, ServiceDate: serviceDate,
		})
		assert.False(t, res.Passed)
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictDrugAge, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeverityContraindicated, res.Alerts[0].Severity)
	})
}

func TestScreenDrugGender(t *testing.T) {
	rules := DefaultRuleSet()

	screenFinasteride := func(gender string, age int) Result {
		return rules.Screen(Request{
			Age: age, Gender: gender,
			NDC: "00006011731", GPI: "24100070100310", DrugName: "Finasteride 5mg",
			Quantity: decimal.NewFromInt(30), DaysSupply: 30, ServiceDate: serviceDate,
		})
	}

	t.Run("flagged for female patients regardless of age", func(t *testing.T) {
		for _, age := range []int{25, 50, 80} {
			res := screenFinasteride(telecom.GenderFemale, age)
			require.Len(t, res.Alerts, 1, "age %d", age)
			assert.Equal(t, telecom.ConflictDrugGender, res.Alerts[0].Type)
			assert.Equal(t, telecom.SeveritySerious, res.Alerts[0].Severity)
			assert.True(t, res.Passed)
		}
	})

	t.Run("not flagged for male patients", func(t *testing.T) {
		assert.Empty(t, screenFinasteride(telecom.GenderMale, 50).Alerts)
	})
}

func TestScreenEarlyRefill(t *testing.T) {
	rules := DefaultRuleSet()

	screenRefill := func(rules *RuleSet, fill time.Time) Result {
		return rules.Screen(Request{
			Age: 45, Gender: telecom.GenderFemale,
			NDC: "00093017101", GPI: "27250050000320", DrugName: "Metformin HCl 500mg",
			Quantity: decimal.NewFromInt(30), DaysSupply: 30, ServiceDate: serviceDate,
			Medications: []member.Medication{{
				NDC: "00093017101", GPI: "27250050000320", DrugName: "Metformin HCl 500mg",
				FillDate: fill, DaysSupply: 30, Quantity: decimal.NewFromInt(30),
			}},
		})
	}

	t.Run("refill with most of the supply remaining", func(t *testing.T) {
		res := screenRefill(rules, serviceDate.AddDate(0, 0, -10)) // 20 days remain
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictEarlyRefill, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeverityModerate, res.Alerts[0].Severity)
		assert.Contains(t, res.Alerts[0].Message, "20 days")
		assert.True(t, res.Passed)
	})

	t.Run("refill near exhaustion", func(t *testing.T) {
		res := screenRefill(rules, serviceDate.AddDate(0, 0, -26)) // 4 days remain
		assert.Empty(t, res.Alerts)
	})

	t.Run("widened threshold suppresses the alert", func(t *testing.T) {
		res := screenRefill(rules.WithEarlyRefillThreshold(25), serviceDate.AddDate(0, 0, -10))
		assert.Empty(t, res.Alerts)
	})
}

func TestScreenHighDose(t *testing.T) {
	rules := DefaultRuleSet()

	screenDose := func(qty int64) Result {
		return rules.Screen(Request{
			Age: 40, Gender: telecom.GenderMale,
			NDC: "00904515260", GPI: "66100010000310", DrugName: "Ibuprofen 800mg",
			Quantity: decimal.NewFromInt(qty), DaysSupply: 30, ServiceDate: serviceDate,
		})
	}

	t.Run("over the daily maximum", func(t *testing.T) {
		res := screenDose(240) // 8 units/day against a max of 4
		require.Len(t, res.Alerts, 1)
		assert.Equal(t, telecom.ConflictHighDose, res.Alerts[0].Type)
		assert.Equal(t, telecom.SeveritySerious, res.Alerts[0].Severity)
		assert.True(t, res.Passed)
	})

	t.Run("at the daily maximum", func(t *testing.T) {
		assert.Empty(t, screenDose(120).Alerts)
	})
}

func TestScreenAlertOrdering(t *testing.T) {
	// A 70-year-old on warfarin refilling a high-dose ibuprofen fill early:
	// interaction (1), age precaution (2), high dose (2), early refill (3).
	rules := DefaultRuleSet()
	res := rules.Screen(Request{
		Age: 70, Gender: telecom.GenderMale,
		NDC: "00904515260", GPI: "66100010000310", DrugName: "Ibuprofen 800mg",
		Quantity: decimal.NewFromInt(240), DaysSupply: 30, ServiceDate: serviceDate,
		Medications: []member.Medication{
			warfarinMed(serviceDate.AddDate(0, -2, 0)),
			ibuprofenMed(serviceDate.AddDate(0, 0, -7)), // 23 days remain
		},
	})

	assert.False(t, res.Passed)
	require.Len(t, res.Alerts, 4)

	types := make([]telecom.ConflictCode, len(res.Alerts))
	for i, a := range res.Alerts {
		types[i] = a.Type
	}
	assert.Equal(t, []telecom.ConflictCode{
		telecom.ConflictDrugDrug,
		telecom.ConflictDrugAge,
		telecom.ConflictHighDose,
		telecom.ConflictEarlyRefill,
	}, types)

	for i := 1; i < len(res.Alerts); i++ {
		assert.LessOrEqual(t, res.Alerts[i-1].Severity, res.Alerts[i].Severity)
	}
}

func TestScreenWithoutGPI(t *testing.T) {
	res := DefaultRuleSet().Screen(Request{
		Age: 70, Gender: telecom.GenderFemale,
		NDC: "99999999999", DrugName: "Unknown Compound",
		Quantity: decimal.NewFromInt(500), DaysSupply: 30, ServiceDate: serviceDate,
		Medications: []member.Medication{warfarinMed(serviceDate.AddDate(0, -1, 0))},
	})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Alerts, "class rules need a GPI to match on")
}
