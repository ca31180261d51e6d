package dur

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
)

// Screen evaluates the candidate against every rule. Rules run
// independently in a fixed order (interaction, duplication, age, gender,
// early refill, high dose) and all alerts are collected rather than
// short-circuited. Alerts come back most severe first, ties broken by rule
// evaluation order, so results are reproducible.
func (r *RuleSet) Screen(req Request) Result {
	var alerts []Alert
	alerts = append(alerts, r.drugDrugInteractions(req)...)
	alerts = append(alerts, r.therapeuticDuplications(req)...)
	alerts = append(alerts, r.drugAgePrecautions(req)...)
	alerts = append(alerts, r.drugGenderContraindications(req)...)
	alerts = append(alerts, r.earlyRefills(req)...)
	alerts = append(alerts, r.highDoses(req)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity < alerts[j].Severity
	})

	passed := true
	for _, a := range alerts {
		if a.Severity.Blocking() {
			passed = false
			break
		}
	}
	return Result{Passed: passed, Alerts: alerts}
}

func (r *RuleSet) drugDrugInteractions(req Request) []Alert {
	class := gpiPrefix(req.GPI, 2)
	if class == "" {
		return nil
	}
	var alerts []Alert
	for _, med := range req.Medications {
		medClass := gpiPrefix(med.GPI, 2)
		if medClass == "" {
			continue
		}
		sev, ok := r.interactions[pairOf(class, medClass)]
		if !ok {
			continue
		}
		alerts = append(alerts, Alert{
			Type:            telecom.ConflictDrugDrug,
			Severity:        sev,
			Message:         fmt.Sprintf("%s interacts with %s on the member's profile", req.DrugName, med.DrugName),
			ConflictingDrug: med.NDC,
		})
	}
	return alerts
}

func (r *RuleSet) therapeuticDuplications(req Request) []Alert {
	key := gpiPrefix(req.GPI, r.duplicationPrefixLen)
	if key == "" {
		return nil
	}
	var alerts []Alert
	for _, med := range req.Medications {
		if med.NDC == req.NDC {
			continue // refill of the same product; the early-refill rule owns timing
		}
		if gpiPrefix(med.GPI, r.duplicationPrefixLen) != key {
			continue
		}
		alerts = append(alerts, Alert{
			Type:            telecom.ConflictDuplication,
			Severity:        telecom.SeverityModerate,
			Message:         fmt.Sprintf("%s duplicates therapy with %s", req.DrugName, med.DrugName),
			ConflictingDrug: med.NDC,
		})
	}
	return alerts
}

func (r *RuleSet) drugAgePrecautions(req Request) []Alert {
	var alerts []Alert
	for _, rule := range r.ageRules {
		if !strings.HasPrefix(req.GPI, rule.gpiPrefix) {
			continue
		}
		if req.Age < rule.minAge {
			continue
		}
		if rule.maxAge > 0 && req.Age > rule.maxAge {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     telecom.ConflictDrugAge,
			Severity: rule.severity,
			Message:  rule.message,
		})
	}
	return alerts
}

func (r *RuleSet) drugGenderContraindications(req Request) []Alert {
	var alerts []Alert
	for _, rule := range r.genderRules {
		if !strings.HasPrefix(req.GPI, rule.gpiPrefix) {
			continue
		}
		if req.Gender != rule.gender {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     telecom.ConflictDrugGender,
			Severity: rule.severity,
			Message:  rule.message,
		})
	}
	return alerts
}

func (r *RuleSet) earlyRefills(req Request) []Alert {
	last, ok := lastFillOf(req)
	if !ok {
		return nil
	}
	elapsed := int(req.ServiceDate.Sub(last.FillDate).Hours() / 24)
	remaining := last.DaysSupply - elapsed
	if remaining <= r.earlyRefillThreshold {
		return nil
	}
	return []Alert{{
		Type:     telecom.ConflictEarlyRefill,
		Severity: telecom.SeverityModerate,
		Message: fmt.Sprintf("%d days of supply remain from the %s fill on %s",
			remaining, last.DrugName, telecom.FormatDate(last.FillDate)),
		ConflictingDrug: last.NDC,
	}}
}

// lastFillOf returns the most recent profile fill of the same product,
// matched by GPI when present and by NDC otherwise.
func lastFillOf(req Request) (member.Medication, bool) {
	var last member.Medication
	found := false
	for _, med := range req.Medications {
		same := med.NDC == req.NDC || (req.GPI != "" && med.GPI == req.GPI)
		if !same {
			continue
		}
		if !found || med.FillDate.After(last.FillDate) {
			last = med
			found = true
		}
	}
	return last, found
}

func (r *RuleSet) highDoses(req Request) []Alert {
	if req.DaysSupply <= 0 {
		return nil
	}
	key := gpiPrefix(req.GPI, 10)
	if key == "" {
		return nil
	}
	max, ok := r.maxDailyUnits[key]
	if !ok {
		return nil
	}
	days := decimal.NewFromInt(int64(req.DaysSupply))
	if !req.Quantity.GreaterThan(max.Mul(days)) {
		return nil
	}
	daily := req.Quantity.DivRound(days, 2)
	return []Alert{{
		Type:     telecom.ConflictHighDose,
		Severity: telecom.SeveritySerious,
		Message: fmt.Sprintf("submitted dose of %s units/day exceeds the %s units/day maximum for %s",
			daily, max, req.DrugName),
	}}
}

func gpiPrefix(gpi string, n int) string {
	if len(gpi) < n {
		return ""
	}
	return gpi[:n]
}
