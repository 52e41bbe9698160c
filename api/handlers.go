/*
handlers.go - HTTP API handlers for the debt ledger engine

PURPOSE:
  Exposes the debt engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Debtors:
    GET    /api/debtors                        List all debtors
    POST   /api/debtors                        Create debtor
    GET    /api/debtors/{id}/metrics           Per-debtor aggregate figures

  Agreements:
    GET    /api/agreements                     List open agreements
    POST   /api/agreements                     Create agreement + full schedule
    GET    /api/agreements/{id}                Agreement with installments
    DELETE /api/agreements/{id}                Delete agreement (cascades)

  Payments:
    POST   /api/installments/{id}/payments     Apply a payment
    PUT    /api/installments/{id}/status       Manual status override
    DELETE /api/payments/{id}                  Reverse a payment

  Facts:
    PUT    /api/facts/salary                   Record a month's salary
    POST   /api/facts/transactions             Record ad-hoc income/expense
    PUT    /api/facts/fixed-expenses           Create/update fixed expense

  Snapshots:
    POST   /api/snapshots/rebuild              Rebuild month(s)
    GET    /api/snapshots/{month}              Fetch one month (YYYY-MM)

  Projections:
    POST   /api/projections                    Compute and store forecasts
    GET    /api/projections?scenario=...       List stored forecasts

  Reminders:
    GET    /api/reminders/next                 Highest-priority unpaid installment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Insufficient snapshot history for projections
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger: the domain logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ledgerkit/debt-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.TxStore
	Allocator  *ledger.Allocator
	Aggregator *ledger.Aggregator
	Projector  *ledger.Projector
	Metrics    *ledger.MetricsReader
	Publisher  ledger.Publisher
	Log        *logrus.Logger

	NewID func() string
	Now   func() time.Time

	currentScenario string
}

// NewHandler wires the engine components behind the HTTP surface.
func NewHandler(store ledger.TxStore, pub ledger.Publisher, scenarios ledger.ScenarioTable, metricsTTL time.Duration, log *logrus.Logger, newID func() string) *Handler {
	if pub == nil {
		pub = ledger.NopPublisher{}
	}
	return &Handler{
		Store:      store,
		Allocator:  ledger.NewAllocator(store, pub, newID),
		Aggregator: ledger.NewAggregator(store),
		Projector:  ledger.NewProjector(store, scenarios),
		Metrics:    ledger.NewMetricsReader(store, metricsTTL),
		Publisher:  pub,
		Log:        log,
		NewID:      newID,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// DEBTOR HANDLERS
// =============================================================================

// ListDebtors returns all debtors.
func (h *Handler) ListDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.Store.ListDebtors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debtors", err)
		return
	}

	dtos := make([]DebtorDTO, len(debtors))
	for i, d := range debtors {
		dtos[i] = toDebtorDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDebtor creates a new debtor.
func (h *Handler) CreateDebtor(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = h.NewID()
	}

	debtor := &ledger.Debtor{
		ID:        ledger.DebtorID(req.ID),
		Name:      req.Name,
		Phone:     req.Phone,
		Note:      req.Note,
		CreatedAt: h.Now(),
	}
	if err := h.Store.SaveDebtor(r.Context(), debtor); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create debtor", err)
		return
	}

	h.Publisher.Publish(r.Context(), ledger.Event{
		Kind:     ledger.DebtorChanged,
		EntityID: req.ID,
		DebtorID: debtor.ID,
		At:       h.Now(),
	})
	writeJSON(w, http.StatusCreated, toDebtorDTO(*debtor))
}

// GetDebtorMetrics returns aggregate figures for one debtor.
func (h *Handler) GetDebtorMetrics(w http.ResponseWriter, r *http.Request) {
	id := ledger.DebtorID(chi.URLParam(r, "id"))
	ctx := r.Context()

	debtor, err := h.Store.Debtor(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get debtor", err)
		return
	}
	if debtor == nil {
		writeError(w, http.StatusNotFound, "Debtor not found", nil)
		return
	}

	metrics, err := h.Metrics.Metrics(ctx, id, h.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute metrics", err)
		return
	}

	dto := MetricsDTO{
		DebtorID:       string(metrics.DebtorID),
		TotalOwed:      metrics.TotalOwed,
		OverdueAmount:  metrics.OverdueAmount,
		OpenAgreements: metrics.OpenAgreements,
		ComputedAt:     metrics.ComputedAt.Format(time.RFC3339),
	}
	if metrics.NextDueDate != nil {
		dto.NextDueDate = metrics.NextDueDate.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// AGREEMENT HANDLERS
// =============================================================================

// ListAgreements returns all open agreements.
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	agreements, err := h.Store.OpenAgreements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agreements", err)
		return
	}

	dtos := make([]AgreementDTO, len(agreements))
	for i, a := range agreements {
		dtos[i] = toAgreementDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAgreement opens a new agreement and generates its full installment
// schedule atomically.
func (h *Handler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req CreateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	debtor, err := h.Store.Debtor(ctx, ledger.DebtorID(req.DebtorID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get debtor", err)
		return
	}
	if debtor == nil {
		writeError(w, http.StatusNotFound, "Debtor not found", nil)
		return
	}

	firstDue, err := time.Parse("2006-01-02", req.FirstDueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid first_due_date format (use YYYY-MM-DD)", err)
		return
	}
	startDate := firstDue
	if req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
			return
		}
	}
	if req.ID == "" {
		req.ID = h.NewID()
	}

	agreement, installments, err := ledger.CreateAgreement(ctx, h.Store, ledger.CreateAgreementInput{
		ID:               ledger.AgreementID(req.ID),
		DebtorID:         ledger.DebtorID(req.DebtorID),
		Principal:        req.Principal,
		MonthlyRate:      req.MonthlyRate,
		InstallmentCount: req.InstallmentCount,
		Currency:         req.Currency,
		StartDate:        startDate,
		FirstDueDate:     firstDue,
	}, h.Now())
	if err != nil {
		if ledger.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid agreement", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create agreement", err)
		return
	}

	h.Publisher.Publish(ctx, ledger.Event{
		Kind:     ledger.AgreementChanged,
		EntityID: string(agreement.ID),
		DebtorID: agreement.DebtorID,
		At:       h.Now(),
	})
	writeJSON(w, http.StatusCreated, AgreementResponse{
		Agreement:    toAgreementDTO(*agreement),
		Installments: toInstallmentDTOs(installments),
	})
}

// GetAgreement returns an agreement with its installments.
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	id := ledger.AgreementID(chi.URLParam(r, "id"))
	ctx := r.Context()

	agreement, err := h.Store.Agreement(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agreement", err)
		return
	}
	if agreement == nil {
		writeError(w, http.StatusNotFound, "Agreement not found", nil)
		return
	}

	installments, err := h.Store.InstallmentsByAgreement(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get installments", err)
		return
	}

	writeJSON(w, http.StatusOK, AgreementResponse{
		Agreement:    toAgreementDTO(*agreement),
		Installments: toInstallmentDTOs(installments),
	})
}

// DeleteAgreement removes an agreement and everything under it.
func (h *Handler) DeleteAgreement(w http.ResponseWriter, r *http.Request) {
	id := ledger.AgreementID(chi.URLParam(r, "id"))
	ctx := r.Context()

	agreement, err := h.Store.Agreement(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agreement", err)
		return
	}
	if agreement == nil {
		writeError(w, http.StatusNotFound, "Agreement not found", nil)
		return
	}

	if err := h.Store.DeleteAgreement(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete agreement", err)
		return
	}

	h.Publisher.Publish(ctx, ledger.Event{
		Kind:     ledger.AgreementChanged,
		EntityID: string(id),
		DebtorID: agreement.DebtorID,
		At:       h.Now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ApplyPayment records a payment against an installment.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstallmentID(chi.URLParam(r, "id"))

	var req ApplyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := h.Now()
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	result, err := h.Allocator.ApplyPayment(r.Context(), id, req.Amount, date, req.Method, req.Note)
	if err != nil {
		h.writeAllocationError(w, "Failed to apply payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationResponse(result))
}

// ReversePayment undoes a recorded payment.
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))

	result, err := h.Allocator.ReversePayment(r.Context(), id)
	if err != nil {
		h.writeAllocationError(w, "Failed to reverse payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationResponse(result))
}

// SetInstallmentStatus is the manual override path.
func (h *Handler) SetInstallmentStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstallmentID(chi.URLParam(r, "id"))

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Allocator.SetStatus(r.Context(), id, ledger.InstallmentStatus(req.Status))
	if err != nil {
		h.writeAllocationError(w, "Failed to set status", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationResponse(result))
}

func (h *Handler) writeAllocationError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// =============================================================================
// FACT HANDLERS
// =============================================================================

// SaveSalary records a month's salary (upsert by month).
func (h *Handler) SaveSalary(w http.ResponseWriter, r *http.Request) {
	var req SalaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := time.Parse("2006-01", req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	record := &ledger.SalaryRecord{
		ID:             h.NewID(),
		ReferenceMonth: ledger.MonthStart(month),
		Amount:         req.Amount,
	}
	if err := h.Store.SaveSalary(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save salary", err)
		return
	}

	h.Publisher.Publish(r.Context(), ledger.Event{
		Kind:     ledger.SalaryChanged,
		EntityID: record.ID,
		At:       h.Now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "month": req.Month})
}

// SaveTransaction records an ad-hoc income or expense.
func (h *Handler) SaveTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	kind := ledger.TransactionKind(req.Kind)
	if kind != ledger.TransactionIncome && kind != ledger.TransactionExpense {
		writeError(w, http.StatusBadRequest, "Kind must be 'income' or 'expense'", nil)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	tx := &ledger.CashTransaction{
		ID:          h.NewID(),
		Date:        date,
		Amount:      req.Amount,
		Kind:        kind,
		Description: req.Description,
	}
	if err := h.Store.SaveTransaction(r.Context(), tx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save transaction", err)
		return
	}

	h.Publisher.Publish(r.Context(), ledger.Event{
		Kind:     ledger.TransactionChanged,
		EntityID: tx.ID,
		At:       h.Now(),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"id": tx.ID})
}

// SaveFixedExpense creates or updates a recurring expense.
func (h *Handler) SaveFixedExpense(w http.ResponseWriter, r *http.Request) {
	var req FixedExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", nil)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if req.ID == "" {
		req.ID = h.NewID()
	}

	expense := &ledger.FixedExpense{
		ID:     req.ID,
		Name:   req.Name,
		Amount: req.Amount,
		Active: active,
	}
	if err := h.Store.SaveFixedExpense(r.Context(), expense); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save fixed expense", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": expense.ID})
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// RebuildSnapshots recomputes one or more monthly snapshots.
func (h *Handler) RebuildSnapshots(w http.ResponseWriter, r *http.Request) {
	var req RebuildSnapshotsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	now := h.Now()
	month := ledger.MonthStart(now)
	if req.Month != "" {
		parsed, err := time.Parse("2006-01", req.Month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
			return
		}
		month = ledger.MonthStart(parsed)
	}
	months := req.Months
	if months < 1 {
		months = 1
	}

	snapshots, err := h.Aggregator.RebuildRange(r.Context(), month, months, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to rebuild snapshots", err)
		return
	}

	dtos := make([]SnapshotDTO, len(snapshots))
	for i, s := range snapshots {
		dtos[i] = toSnapshotDTO(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": dtos})
}

// GetSnapshot returns the stored snapshot for a month (YYYY-MM).
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	month, err := time.Parse("2006-01", chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	snapshot, err := h.Store.SnapshotByMonth(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get snapshot", err)
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusNotFound, "Snapshot not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(*snapshot))
}

// =============================================================================
// PROJECTION HANDLERS
// =============================================================================

// CreateProjections computes and stores forecasts for the months ahead.
func (h *Handler) CreateProjections(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scenario := ledger.Scenario(req.Scenario)
	if req.Scenario == "" {
		scenario = ledger.ScenarioRealistic
	}
	monthsAhead := req.MonthsAhead
	if monthsAhead < 1 {
		monthsAhead = 3
	}

	projections, err := h.Projector.Project(r.Context(), monthsAhead, scenario, h.Now())
	if err != nil {
		switch {
		case ledger.IsValidation(err):
			writeError(w, http.StatusBadRequest, "Invalid projection request", err)
		case errors.Is(err, ledger.ErrInsufficientHistory):
			writeError(w, http.StatusConflict, "Not enough snapshot history to project", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to project", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"projections": toProjectionDTOs(projections)})
}

// ListProjections returns stored projections for a scenario.
func (h *Handler) ListProjections(w http.ResponseWriter, r *http.Request) {
	scenario := ledger.Scenario(r.URL.Query().Get("scenario"))
	if scenario == "" {
		scenario = ledger.ScenarioRealistic
	}
	if !ledger.ValidScenario(scenario) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	projections, err := h.Store.ProjectionsByScenario(r.Context(), scenario)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projections", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projections": toProjectionDTOs(projections)})
}

// =============================================================================
// REMINDER HANDLERS
// =============================================================================

// NextReminder returns the single unpaid installment most in need of a nudge:
// earliest overdue first, then the earliest upcoming.
func (h *Handler) NextReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := h.Now()

	open, err := h.Store.OpenAgreements(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agreements", err)
		return
	}

	var candidates []ledger.Installment
	owners := make(map[ledger.AgreementID]ledger.DebtorID, len(open))
	for _, a := range open {
		owners[a.ID] = a.DebtorID
		installments, err := h.Store.InstallmentsByAgreement(ctx, a.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get installments", err)
			return
		}
		candidates = append(candidates, installments...)
	}

	target := ledger.SelectReminderTarget(candidates, asOf)
	if target == nil {
		writeJSON(w, http.StatusOK, map[string]any{"reminder": nil})
		return
	}

	dto := ReminderDTO{
		Installment: toInstallmentDTO(*target),
		DebtorID:    string(owners[target.AgreementID]),
		Overdue:     target.IsOverdue(asOf),
	}
	if debtor, err := h.Store.Debtor(ctx, owners[target.AgreementID]); err == nil && debtor != nil {
		dto.DebtorName = debtor.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminder": dto})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
