/*
handlers_test.go - HTTP-level tests for the API handlers

Tests drive the real router with an in-memory transactional store, so each
case covers routing, JSON codecs and the domain flow behind the endpoint.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkit/debt-engine/ledger"
	ledgerstore "github.com/ledgerkit/debt-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestAPI(t *testing.T, now time.Time) (*Handler, http.Handler) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	n := 0
	h := NewHandler(ledgerstore.NewTxMemory(), nil, nil, time.Minute, log, func() string {
		n++
		return "id-" + strconv.Itoa(n)
	})
	h.Now = func() time.Time { return now }
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

func createDebtor(t *testing.T, router http.Handler, id, name string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/debtors", CreateDebtorRequest{ID: id, Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createAgreement(t *testing.T, router http.Handler, id, debtorID, principal string, count int) AgreementResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/agreements", CreateAgreementRequest{
		ID:               id,
		DebtorID:         debtorID,
		Principal:        decimal.RequireFromString(principal),
		MonthlyRate:      decimal.Zero,
		InstallmentCount: count,
		Currency:         "EUR",
		StartDate:        "2025-06-01",
		FirstDueDate:     "2025-06-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AgreementResponse
	decodeInto(t, rec, &resp)
	return resp
}

// =============================================================================
// DEBTOR ENDPOINTS
// =============================================================================

func TestCreateAndListDebtors(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	createDebtor(t, router, "d-1", "Marco")
	createDebtor(t, router, "d-2", "Giulia")

	rec := doJSON(t, router, http.MethodGet, "/api/debtors", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var debtors []DebtorDTO
	decodeInto(t, rec, &debtors)
	assert.Len(t, debtors, 2)
}

func TestCreateDebtor_MissingName(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, router, http.MethodPost, "/api/debtors", CreateDebtorRequest{ID: "d-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebtorMetricsEndpoint(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	createAgreement(t, router, "a-1", "d-1", "600", 2)

	rec := doJSON(t, router, http.MethodGet, "/api/debtors/d-1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var m MetricsDTO
	decodeInto(t, rec, &m)
	assert.True(t, m.TotalOwed.Equal(decimal.RequireFromString("600")))
	assert.True(t, m.OverdueAmount.Equal(decimal.RequireFromString("300")))
	assert.Equal(t, 1, m.OpenAgreements)
	assert.Equal(t, "2025-06-10", m.NextDueDate)

	rec = doJSON(t, router, http.MethodGet, "/api/debtors/nobody/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// AGREEMENT ENDPOINTS
// =============================================================================

func TestCreateAgreement_GeneratesSchedule(t *testing.T) {
	// GIVEN: a debtor
	// WHEN: creating a 1000/3 interest-free agreement
	// THEN: the response carries the full schedule with the remainder on the last

	_, router := newTestAPI(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")

	resp := createAgreement(t, router, "a-1", "d-1", "1000", 3)
	require.Len(t, resp.Installments, 3)
	assert.True(t, resp.Installments[0].Amount.Equal(decimal.RequireFromString("333.33")))
	assert.True(t, resp.Installments[2].Amount.Equal(decimal.RequireFromString("333.34")))
	assert.Equal(t, "2025-08-10", resp.Installments[2].DueDate)
	assert.False(t, resp.Agreement.Closed)

	rec := doJSON(t, router, http.MethodGet, "/api/agreements/a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched AgreementResponse
	decodeInto(t, rec, &fetched)
	assert.Len(t, fetched.Installments, 3)
}

func TestCreateAgreement_UnknownDebtor(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, router, http.MethodPost, "/api/agreements", CreateAgreementRequest{
		ID:               "a-1",
		DebtorID:         "nobody",
		Principal:        decimal.RequireFromString("100"),
		InstallmentCount: 1,
		StartDate:        "2025-06-01",
		FirstDueDate:     "2025-06-10",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAgreement_InvalidPrincipal(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")

	rec := doJSON(t, router, http.MethodPost, "/api/agreements", CreateAgreementRequest{
		ID:               "a-1",
		DebtorID:         "d-1",
		Principal:        decimal.Zero,
		InstallmentCount: 3,
		StartDate:        "2025-06-01",
		FirstDueDate:     "2025-06-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAgreement(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	createAgreement(t, router, "a-1", "d-1", "300", 3)

	rec := doJSON(t, router, http.MethodDelete, "/api/agreements/a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/agreements/a-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

func TestApplyPayment_FlowToClosure(t *testing.T) {
	// GIVEN: a single-installment agreement of 100
	// WHEN: paying it in full over two payments
	// THEN: the second response reports the agreement closed

	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	resp := createAgreement(t, router, "a-1", "d-1", "100", 1)
	instID := resp.Installments[0].ID

	rec := doJSON(t, router, http.MethodPost, "/api/installments/"+instID+"/payments", ApplyPaymentRequest{
		Amount: decimal.RequireFromString("40"),
		Date:   "2025-06-10",
		Method: "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var alloc AllocationResponse
	decodeInto(t, rec, &alloc)
	assert.Equal(t, "partial", alloc.Installment.Status)
	assert.False(t, alloc.AgreementClosed)
	assert.NotEmpty(t, alloc.PaymentID)

	rec = doJSON(t, router, http.MethodPost, "/api/installments/"+instID+"/payments", ApplyPaymentRequest{
		Amount: decimal.RequireFromString("60"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeInto(t, rec, &alloc)
	assert.Equal(t, "paid", alloc.Installment.Status)
	assert.True(t, alloc.AgreementClosed)
	assert.True(t, alloc.AgreementChanged)
}

func TestApplyPayment_Errors(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	resp := createAgreement(t, router, "a-1", "d-1", "100", 1)

	rec := doJSON(t, router, http.MethodPost, "/api/installments/"+resp.Installments[0].ID+"/payments", ApplyPaymentRequest{
		Amount: decimal.Zero,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/installments/no-such/payments", ApplyPaymentRequest{
		Amount: decimal.RequireFromString("10"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReversePayment(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	resp := createAgreement(t, router, "a-1", "d-1", "100", 1)

	rec := doJSON(t, router, http.MethodPost, "/api/installments/"+resp.Installments[0].ID+"/payments", ApplyPaymentRequest{
		Amount: decimal.RequireFromString("100"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var alloc AllocationResponse
	decodeInto(t, rec, &alloc)
	require.True(t, alloc.AgreementClosed)

	rec = doJSON(t, router, http.MethodDelete, "/api/payments/"+alloc.PaymentID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &alloc)
	assert.Equal(t, "pending", alloc.Installment.Status)
	assert.False(t, alloc.AgreementClosed)

	rec = doJSON(t, router, http.MethodDelete, "/api/payments/no-such", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetInstallmentStatus(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	createDebtor(t, router, "d-1", "Marco")
	resp := createAgreement(t, router, "a-1", "d-1", "100", 1)
	instID := resp.Installments[0].ID

	rec := doJSON(t, router, http.MethodPut, "/api/installments/"+instID+"/status", SetStatusRequest{Status: "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var alloc AllocationResponse
	decodeInto(t, rec, &alloc)
	assert.Equal(t, "paid", alloc.Installment.Status)
	assert.True(t, alloc.Installment.PaidAmount.Equal(decimal.RequireFromString("100")))

	rec = doJSON(t, router, http.MethodPut, "/api/installments/"+instID+"/status", SetStatusRequest{Status: "settled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// FACT ENDPOINTS
// =============================================================================

func TestFactEndpoints(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, router, http.MethodPut, "/api/facts/salary", SalaryRequest{
		Month: "2025-06", Amount: decimal.RequireFromString("2000"),
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPut, "/api/facts/salary", SalaryRequest{
		Month: "June 2025", Amount: decimal.RequireFromString("2000"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/facts/transactions", TransactionRequest{
		Date: "2025-06-05", Amount: decimal.RequireFromString("150"), Kind: "income",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/facts/transactions", TransactionRequest{
		Date: "2025-06-05", Amount: decimal.RequireFromString("150"), Kind: "transfer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/facts/fixed-expenses", FixedExpenseRequest{
		Name: "rent", Amount: decimal.RequireFromString("700"),
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// SNAPSHOT ENDPOINTS
// =============================================================================

func TestSnapshotRebuildAndFetch(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, router, http.MethodPut, "/api/facts/salary", SalaryRequest{
		Month: "2025-06", Amount: decimal.RequireFromString("2000"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/snapshots/rebuild", RebuildSnapshotsRequest{Month: "2025-06"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rebuilt struct {
		Snapshots []SnapshotDTO `json:"snapshots"`
	}
	decodeInto(t, rec, &rebuilt)
	require.Len(t, rebuilt.Snapshots, 1)
	assert.True(t, rebuilt.Snapshots[0].Salary.Equal(decimal.RequireFromString("2000")))

	rec = doJSON(t, router, http.MethodGet, "/api/snapshots/2025-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap SnapshotDTO
	decodeInto(t, rec, &snap)
	assert.Equal(t, "2025-06", snap.ReferenceMonth)

	rec = doJSON(t, router, http.MethodGet, "/api/snapshots/2024-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/snapshots/january", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotRebuild_DefaultsToCurrentMonth(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	// No body at all: rebuild the month the clock is in.
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rebuilt struct {
		Snapshots []SnapshotDTO `json:"snapshots"`
	}
	decodeInto(t, rec, &rebuilt)
	require.Len(t, rebuilt.Snapshots, 1)
	assert.Equal(t, "2025-06", rebuilt.Snapshots[0].ReferenceMonth)
}

// =============================================================================
// PROJECTION ENDPOINTS
// =============================================================================

func TestProjections_EndToEnd(t *testing.T) {
	// GIVEN: six rebuilt history months
	// WHEN: projecting 3 months ahead
	// THEN: the run is stored and listable per scenario

	h, router := newTestAPI(t, time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	for k := 1; k <= 6; k++ {
		month := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -k, 0)
		require.NoError(t, h.Store.SaveSnapshot(ctx, &ledger.MonthlySnapshot{
			ReferenceMonth:   month,
			Salary:           decimal.RequireFromString("2000"),
			VariableExpenses: decimal.RequireFromString("300"),
			CalculatedAt:     h.Now(),
		}))
	}

	rec := doJSON(t, router, http.MethodPost, "/api/projections", ProjectRequest{MonthsAhead: 3, Scenario: "realistic"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Projections []ProjectionDTO `json:"projections"`
	}
	decodeInto(t, rec, &created)
	require.Len(t, created.Projections, 3)
	assert.Equal(t, "2025-08", created.Projections[0].TargetMonth)
	assert.True(t, created.Projections[0].ProjectedSalary.Equal(decimal.RequireFromString("2000")))

	rec = doJSON(t, router, http.MethodGet, "/api/projections?scenario=realistic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Projections []ProjectionDTO `json:"projections"`
	}
	decodeInto(t, rec, &listed)
	assert.Len(t, listed.Projections, 3)

	rec = doJSON(t, router, http.MethodGet, "/api/projections?scenario=catastrophic", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjections_InsufficientHistory(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, router, http.MethodPost, "/api/projections", ProjectRequest{MonthsAhead: 3, Scenario: "realistic"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

// =============================================================================
// REMINDER ENDPOINT
// =============================================================================

func TestNextReminder(t *testing.T) {
	_, router := newTestAPI(t, time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC))

	// Nothing to remind about yet.
	rec := doJSON(t, router, http.MethodGet, "/api/reminders/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty struct {
		Reminder *ReminderDTO `json:"reminder"`
	}
	decodeInto(t, rec, &empty)
	assert.Nil(t, empty.Reminder)

	createDebtor(t, router, "d-1", "Marco")
	createAgreement(t, router, "a-1", "d-1", "600", 2)

	rec = doJSON(t, router, http.MethodGet, "/api/reminders/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Reminder *ReminderDTO `json:"reminder"`
	}
	decodeInto(t, rec, &got)
	require.NotNil(t, got.Reminder)
	assert.Equal(t, 1, got.Reminder.Installment.Number)
	assert.Equal(t, "d-1", got.Reminder.DebtorID)
	assert.Equal(t, "Marco", got.Reminder.DebtorName)
	assert.True(t, got.Reminder.Overdue)
}
