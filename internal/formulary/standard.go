package formulary

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// StandardCommercial returns the standard commercial plan formulary: five
// tiers from preferred generics ($10 copay) through specialty (25%
// coinsurance with prior authorization), quantity limits on selected
// products, step therapy on the GLP-1 agonists, and deductible application
// on tiers 3-5. Generic tiers bypass the deductible.
func StandardCommercial() *Formulary {
	f, err := New("standard-commercial", standardCommercialEntries())
	if err != nil {
		panic(fmt.Sprintf("formulary: standard commercial table: %v", err))
	}
	return f
}

func standardCommercialEntries() []Entry {
	tier1 := Copay(money("10.00"))
	tier2 := Copay(money("25.00"))
	tier3 := Copay(money("40.00"))
	tier4 := Copay(money("80.00"))
	tier5 := Coinsurance(money("0.25"))

	// GLP-1 agonists step through a biguanide (metformin class) first.
	biguanide := []string{"2725"}

	return []Entry{
		// Tier 1: preferred generics.
		{NDC: "00093017101", DrugName: "Metformin HCl 500mg", GPI: "27250050000320", Tier: 1, CostShare: tier1},
		{NDC: "68180051301", DrugName: "Lisinopril 10mg", GPI: "36100040000310", Tier: 1, CostShare: tier1, NegotiatedRate: money("4.50")},
		{NDC: "00071015523", DrugName: "Atorvastatin 20mg", GPI: "39400010000310", Tier: 1, CostShare: tier1},
		{NDC: "00056017270", DrugName: "Warfarin Sodium 5mg", GPI: "83300010000330", Tier: 1, CostShare: tier1},
		{NDC: "00006011731", DrugName: "Finasteride 5mg", GPI: "24100070100310", Tier: 1, CostShare: tier1},
		{NDC: "00904515260", DrugName: "Ibuprofen 800mg", GPI: "66100010000310", Tier: 1, CostShare: tier1,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("120"), PerDays: 30}},

		// Tier 2: non-preferred generics.
		{NDC: "00228267711", DrugName: "Gabapentin 300mg", GPI: "72600030000310", Tier: 2, CostShare: tier2},
		{NDC: "00093005801", DrugName: "Tramadol HCl 50mg", GPI: "65100085000310", Tier: 2, CostShare: tier2,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("240"), PerDays: 30}},
		{NDC: "00078057715", DrugName: "Rosuvastatin 10mg", GPI: "39400020000310", Tier: 2, CostShare: tier2},

		// Tier 3: preferred brands.
		{NDC: "00003089421", DrugName: "Eliquis 5mg", GPI: "83370060000320", Tier: 3, CostShare: tier3,
			DeductibleApplies: true, NegotiatedRate: money("480.00")},
		{NDC: "00597015230", DrugName: "Jardiance 10mg", GPI: "27260070000320", Tier: 3, CostShare: tier3,
			DeductibleApplies: true},

		// Tier 4: non-preferred brands.
		{NDC: "00071015640", DrugName: "Lipitor 20mg", GPI: "39400010000310", Tier: 4, CostShare: tier4,
			DeductibleApplies: true},
		{NDC: "00186504031", DrugName: "Nexium 40mg", GPI: "49270070000320", Tier: 4, CostShare: tier4,
			DeductibleApplies: true},

		// Tier 5: specialty, prior authorization required.
		{NDC: "00169413512", DrugName: "Ozempic 1mg/dose Pen", GPI: "27170055000620", Tier: 5, CostShare: tier5,
			RequiresPA: true, StepTherapy: true, StepPrerequisites: biguanide, DeductibleApplies: true,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("3"), PerDays: 28}},
		{NDC: "61958060101", DrugName: "Wegovy 2.4mg Pen", GPI: "27170055000630", Tier: 5, CostShare: tier5,
			RequiresPA: true, StepTherapy: true, StepPrerequisites: biguanide, DeductibleApplies: true,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("4"), PerDays: 28}},
		{NDC: "00002141080", DrugName: "Trulicity 1.5mg Pen", GPI: "27170035000620", Tier: 5, CostShare: tier5,
			RequiresPA: true, StepTherapy: true, StepPrerequisites: biguanide, DeductibleApplies: true,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("4"), PerDays: 28}},
		{NDC: "00074433902", DrugName: "Humira 40mg Kit", GPI: "66290020006920", Tier: 5, CostShare: tier5,
			RequiresPA: true, DeductibleApplies: true, NegotiatedRate: money("5200.00"),
			QuantityLimit: &QuantityLimit{MaxQuantity: money("2"), PerDays: 28}},
		{NDC: "58406043534", DrugName: "Enbrel 50mg Syringe", GPI: "66290010006920", Tier: 5, CostShare: tier5,
			RequiresPA: true, DeductibleApplies: true,
			QuantityLimit: &QuantityLimit{MaxQuantity: money("4"), PerDays: 28}},
	}
}
