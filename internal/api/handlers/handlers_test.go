package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/adjudication"
	"github.com/mark64oswald/healthsim-hello/internal/domain/claim"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
	"github.com/mark64oswald/healthsim-hello/internal/dur"
	"github.com/mark64oswald/healthsim-hello/internal/formulary"
	"github.com/mark64oswald/healthsim-hello/internal/ledger"
	"github.com/mark64oswald/healthsim-hello/internal/ncpdp/telecom"
	"github.com/mark64oswald/healthsim-hello/pkg/batch"
)

var serviceDate = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupAPI(t *testing.T) (http.Handler, *member.Store, *ledger.Ledger) {
	t.Helper()
	led := ledger.New(nil)
	eng, err := adjudication.New(formulary.StandardCommercial(), dur.DefaultRuleSet(), led, adjudication.Config{
		Clock: func() time.Time { return serviceDate },
	}, zap.NewNop())
	require.NoError(t, err)
	pool, err := batch.New(batch.Config{Workers: 4}, eng, zap.NewNop())
	require.NoError(t, err)
	store := member.NewStore()

	r := chi.NewRouter()
	r.Mount("/members", NewMemberHandler(store, led, nil, zap.NewNop()).Routes())
	r.Mount("/claims", NewClaimHandler(eng, store, led, pool, 10, nil, zap.NewNop()).Routes())
	r.Mount("/dur", NewScreeningHandler(dur.DefaultRuleSet(), zap.NewNop()).Routes())
	return r, store, led
}

func apiMember(id string) *member.Member {
	return &member.Member{
		MemberID:     id,
		CardholderID: "CRD" + id,
		FirstName:    "Maria",
		LastName:     "Santos",
		DateOfBirth:  time.Date(1981, 3, 10, 0, 0, 0, 0, time.UTC),
		Gender:       "F",
		BIN:          "610014",
		PCN:          "RXTEST",
		GroupNumber:  "GRP001",
		Accumulators: member.Accumulators{
			DeductibleMet:   decimal.Zero,
			DeductibleLimit: dec("500.00"),
			OOPMet:          decimal.Zero,
			OOPLimit:        dec("3000.00"),
		},
	}
}

func apiClaim(id, memberID, ndc, name string) *claim.PharmacyClaim {
	return &claim.PharmacyClaim{
		ClaimID:                 id,
		TransactionCode:         telecom.TransactionBilling,
		ServiceDate:             serviceDate,
		MemberID:                memberID,
		CardholderID:            "CRD" + memberID,
		BIN:                     "610014",
		PCN:                     "RXTEST",
		GroupNumber:             "GRP001",
		PharmacyNPI:             "1234567890",
		PrescriberNPI:           "9876543210",
		PrescriptionNumber:      "RX" + id,
		NDC:                     ndc,
		DrugName:                name,
		QuantityDispensed:       dec("30"),
		DaysSupply:              30,
		DAWCode:                 "0",
		IngredientCostSubmitted: dec("8.00"),
		DispensingFeeSubmitted:  dec("2.00"),
		UsualCustomaryCharge:    dec("10.00"),
		GrossAmountDue:          dec("10.00"),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestMemberLifecycle(t *testing.T) {
	h, _, _ := setupAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/members", apiMember("MBR001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created RegisterResponse
	decodeInto(t, rec, &created)
	assert.Equal(t, "MBR001", created.MemberID)

	rec = doJSON(t, h, http.MethodGet, "/members/MBR001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got member.Member
	decodeInto(t, rec, &got)
	assert.Equal(t, "Santos", got.LastName)
	assert.True(t, got.Accumulators.OOPMet.IsZero())

	med := member.Medication{
		NDC:        "00904515260",
		GPI:        "66100010000310",
		DrugName:   "Ibuprofen 800mg",
		FillDate:   serviceDate.AddDate(0, -1, 0),
		DaysSupply: 30,
		Quantity:   dec("90"),
	}
	rec = doJSON(t, h, http.MethodPost, "/members/MBR001/medications", med)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/members/MBR001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &got)
	require.Len(t, got.Medications, 1)
	assert.Equal(t, "00904515260", got.Medications[0].NDC)

	t.Run("list members", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/members", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count   int             `json:"count"`
			Members []member.Member `json:"members"`
		}
		decodeInto(t, rec, &body)
		require.Equal(t, 1, body.Count)
		assert.Equal(t, "MBR001", body.Members[0].MemberID)
	})

	t.Run("unknown member", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/members/MBR404", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid member", func(t *testing.T) {
		bad := apiMember("MBR002")
		bad.BIN = "61" // too short
		rec := doJSON(t, h, http.MethodPost, "/members", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitClaim(t *testing.T) {
	h, store, _ := setupAPI(t)
	require.NoError(t, store.Put(apiMember("MBR001")))

	rec := doJSON(t, h, http.MethodPost, "/claims", apiClaim("CLM1", "MBR001", "00093017101", "Metformin HCl 500mg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp claim.AdjudicationResponse
	decodeInto(t, rec, &resp)
	require.Equal(t, telecom.StatusPaid, resp.Status)
	require.NotNil(t, resp.Paid)
	assert.True(t, resp.Paid.PatientPayAmount.Equal(dec("10.00")))

	t.Run("duplicate returns 200 with status D", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/claims", apiClaim("CLM1", "MBR001", "00093017101", "Metformin HCl 500mg"))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp claim.AdjudicationResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, telecom.StatusDuplicate, resp.Status)
	})

	t.Run("business rejection returns 200 with status R", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/claims", apiClaim("CLM2", "MBR001", "99999999999", "Mystery Elixir"))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp claim.AdjudicationResponse
		decodeInto(t, rec, &resp)
		require.Equal(t, telecom.StatusRejected, resp.Status)
		assert.Equal(t, telecom.RejectNotCovered, resp.Reject.Code)
	})

	t.Run("unknown member", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/claims", apiClaim("CLM3", "MBR404", "00093017101", "Metformin HCl 500mg"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure names the field", func(t *testing.T) {
		bad := apiClaim("CLM4", "MBR001", "00093017101", "Metformin HCl 500mg")
		bad.PharmacyNPI = "123"
		rec := doJSON(t, h, http.MethodPost, "/claims", bad)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		decodeInto(t, rec, &body)
		assert.Equal(t, "pharmacy_npi", body["field"])
	})

	t.Run("unmatched reversal", func(t *testing.T) {
		rev := apiClaim("CLM5", "MBR001", "00093017101", "Metformin HCl 500mg")
		rev.TransactionCode = telecom.TransactionReversal
		rev.OriginalClaimID = "CLM404"
		rec := doJSON(t, h, http.MethodPost, "/claims", rev)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestClaimLookup(t *testing.T) {
	h, store, _ := setupAPI(t)
	require.NoError(t, store.Put(apiMember("MBR001")))

	rec := doJSON(t, h, http.MethodPost, "/claims", apiClaim("CLM1", "MBR001", "00093017101", "Metformin HCl 500mg"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/claims/CLM1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var app ledger.Application
	decodeInto(t, rec, &app)
	assert.Equal(t, "MBR001", app.MemberID)
	assert.True(t, app.PatientPay.Equal(dec("10.00")))
	assert.False(t, app.Reversed)

	rec = doJSON(t, h, http.MethodGet, "/claims/CLM404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitBatch(t *testing.T) {
	h, store, _ := setupAPI(t)
	require.NoError(t, store.Put(apiMember("MBR001")))
	require.NoError(t, store.Put(apiMember("MBR002")))

	req := BatchRequest{Claims: []claim.PharmacyClaim{
		*apiClaim("CLM1", "MBR001", "00093017101", "Metformin HCl 500mg"),
		*apiClaim("CLM2", "MBR002", "68180051301", "Lisinopril 10mg"),
		*apiClaim("CLM3", "MBR404", "00093017101", "Metformin HCl 500mg"),
	}}
	rec := doJSON(t, h, http.MethodPost, "/claims/batch", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	decodeInto(t, rec, &resp)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "CLM1", resp.Results[0].ClaimID)
	assert.Equal(t, "CLM2", resp.Results[1].ClaimID)
	require.NotNil(t, resp.Results[0].Response)
	assert.Equal(t, telecom.StatusPaid, resp.Results[0].Response.Status)
	assert.NotEmpty(t, resp.Results[2].Error, "unknown member surfaces per claim")
	assert.Nil(t, resp.Results[2].Response)

	t.Run("empty batch", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/claims/batch", BatchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized batch", func(t *testing.T) {
		over := BatchRequest{}
		for i := 0; i < 11; i++ {
			over.Claims = append(over.Claims, *apiClaim("CLM", "MBR001", "00093017101", "Metformin HCl 500mg"))
		}
		rec := doJSON(t, h, http.MethodPost, "/claims/batch", over)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDURScreenEndpoint(t *testing.T) {
	h, _, _ := setupAPI(t)

	req := dur.Request{
		MemberID:    "MBR001",
		Age:         58,
		Gender:      "M",
		NDC:         "00056017270",
		GPI:         "83300010000330",
		DrugName:    "Warfarin Sodium 5mg",
		Quantity:    dec("30"),
		DaysSupply:  30,
		ServiceDate: serviceDate,
		Medications: []member.Medication{{
			NDC:        "00904515260",
			GPI:        "66100010000310",
			DrugName:   "Ibuprofen 800mg",
			FillDate:   serviceDate.AddDate(0, -2, 0),
			DaysSupply: 30,
			Quantity:   dec("90"),
		}},
	}
	rec := doJSON(t, h, http.MethodPost, "/dur/screen", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dur.Result
	decodeInto(t, rec, &res)
	assert.False(t, res.Passed)
	require.NotEmpty(t, res.Alerts)
	assert.Equal(t, telecom.ConflictDrugDrug, res.Alerts[0].Type)

	t.Run("requires a drug identifier", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/dur/screen", dur.Request{MemberID: "MBR001"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
