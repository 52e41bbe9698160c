/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates debtors, agreements
	with their schedules, payments and cash-flow facts that demonstrate
	specific features.

AVAILABLE SCENARIOS:

	single-debtor:      One debtor, one interest-free plan, partially paid
	overdue-portfolio:  Several debtors with overdue and current installments
	projection-history: Six months of facts and snapshots, ready to project

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create debtors
 3. Create agreements (schedules are generated with them)
 4. Apply payments through the allocator so statuses and closures are real
 5. Optionally record salary/transactions and rebuild snapshots

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overdue-portfolio"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: the Handler these loaders hang off
  - server.go: /api/scenarios routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "single-debtor",
		Name:        "Single Debtor",
		Description: "One interest-free payment plan, first installment paid",
		Category:    "debts",
	},
	{
		ID:          "overdue-portfolio",
		Name:        "Overdue Portfolio",
		Description: "Three debtors with a mix of overdue, partial and current installments",
		Category:    "debts",
	},
	{
		ID:          "projection-history",
		Name:        "Projection History",
		Description: "Six months of salary, expenses and snapshots, ready for forecasting",
		Category:    "cashflow",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "single-debtor":
		err = h.loadSingleDebtorScenario(ctx)
	case "overdue-portfolio":
		err = h.loadOverduePortfolioScenario(ctx)
	case "projection-history":
		err = h.loadProjectionHistoryScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSingleDebtorScenario(ctx context.Context) error {
	now := h.Now()

	if err := h.Store.SaveDebtor(ctx, &ledger.Debtor{
		ID:        "demo-marco",
		Name:      "Marco Bianchi",
		Phone:     "+39 333 1234567",
		Note:      "Colleague, reliable payer",
		CreatedAt: now,
	}); err != nil {
		return err
	}

	// Plan opened two months ago, so the first installment is already due.
	firstDue := ledger.MonthStart(now).AddDate(0, -2, 15)
	_, installments, err := ledger.CreateAgreement(ctx, h.Store, ledger.CreateAgreementInput{
		ID:               "demo-agr-marco",
		DebtorID:         "demo-marco",
		Principal:        decimal.RequireFromString("1000"),
		MonthlyRate:      decimal.Zero,
		InstallmentCount: 3,
		Currency:         "EUR",
		StartDate:        firstDue,
		FirstDueDate:     firstDue,
	}, now)
	if err != nil {
		return err
	}

	// First installment settled on time, second half paid.
	if _, err := h.Allocator.ApplyPayment(ctx, installments[0].ID,
		installments[0].Amount, installments[0].DueDate, "transfer", "On time"); err != nil {
		return err
	}
	half := installments[1].Amount.Div(decimal.NewFromInt(2)).Round(2)
	_, err = h.Allocator.ApplyPayment(ctx, installments[1].ID,
		half, installments[1].DueDate, "cash", "Partial")
	return err
}

func (h *Handler) loadOverduePortfolioScenario(ctx context.Context) error {
	now := h.Now()

	debtors := []ledger.Debtor{
		{ID: "demo-marco", Name: "Marco Bianchi", Phone: "+39 333 1234567", CreatedAt: now},
		{ID: "demo-giulia", Name: "Giulia Russo", Note: "Sister-in-law", CreatedAt: now},
		{ID: "demo-luca", Name: "Luca Ferrari", Note: "Chronically late", CreatedAt: now},
	}
	for i := range debtors {
		if err := h.Store.SaveDebtor(ctx, &debtors[i]); err != nil {
			return err
		}
	}

	type plan struct {
		id        string
		debtorID  ledger.DebtorID
		principal string
		rate      string
		count     int
		firstDue  time.Time
		payments  int // leading installments to settle
	}
	plans := []plan{
		// Marco: current, paying on schedule.
		{"demo-agr-marco", "demo-marco", "600", "0", 6, ledger.MonthStart(now).AddDate(0, -2, 9), 2},
		// Giulia: financed plan at 1.5% monthly, one payment in.
		{"demo-agr-giulia", "demo-giulia", "2400", "1.5", 12, ledger.MonthStart(now).AddDate(0, -1, 4), 1},
		// Luca: three months behind, nothing paid.
		{"demo-agr-luca", "demo-luca", "450", "0", 3, ledger.MonthStart(now).AddDate(0, -3, 19), 0},
	}

	for _, p := range plans {
		_, installments, err := ledger.CreateAgreement(ctx, h.Store, ledger.CreateAgreementInput{
			ID:               ledger.AgreementID(p.id),
			DebtorID:         p.debtorID,
			Principal:        decimal.RequireFromString(p.principal),
			MonthlyRate:      decimal.RequireFromString(p.rate),
			InstallmentCount: p.count,
			Currency:         "EUR",
			StartDate:        p.firstDue,
			FirstDueDate:     p.firstDue,
		}, now)
		if err != nil {
			return err
		}
		for k := 0; k < p.payments && k < len(installments); k++ {
			if _, err := h.Allocator.ApplyPayment(ctx, installments[k].ID,
				installments[k].Amount, installments[k].DueDate, "cash", ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) loadProjectionHistoryScenario(ctx context.Context) error {
	now := h.Now()
	currentMonth := ledger.MonthStart(now)

	// Recurring obligations.
	fixed := []ledger.FixedExpense{
		{ID: "demo-fix-rent", Name: "Rent", Amount: decimal.RequireFromString("700"), Active: true},
		{ID: "demo-fix-utilities", Name: "Utilities", Amount: decimal.RequireFromString("120"), Active: true},
		{ID: "demo-fix-gym", Name: "Gym (cancelled)", Amount: decimal.RequireFromString("45"), Active: false},
	}
	for i := range fixed {
		if err := h.Store.SaveFixedExpense(ctx, &fixed[i]); err != nil {
			return err
		}
	}

	// Six trailing months of salary and variable activity.
	for k := 1; k <= 6; k++ {
		month := currentMonth.AddDate(0, -k, 0)
		tag := month.Format("2006-01")

		if err := h.Store.SaveSalary(ctx, &ledger.SalaryRecord{
			ID:             "demo-sal-" + tag,
			ReferenceMonth: month,
			Amount:         decimal.RequireFromString("2000"),
		}); err != nil {
			return err
		}
		if err := h.Store.SaveTransaction(ctx, &ledger.CashTransaction{
			ID:          "demo-tx-inc-" + tag,
			Date:        month.AddDate(0, 0, 7),
			Amount:      decimal.RequireFromString("180"),
			Kind:        ledger.TransactionIncome,
			Description: "Freelance work",
		}); err != nil {
			return err
		}
		if err := h.Store.SaveTransaction(ctx, &ledger.CashTransaction{
			ID:          "demo-tx-exp-" + tag,
			Date:        month.AddDate(0, 0, 18),
			Amount:      decimal.RequireFromString("320"),
			Kind:        ledger.TransactionExpense,
			Description: "Groceries and fuel",
		}); err != nil {
			return err
		}
	}

	// A receivable landing next month, so the first projection shows
	// confirmed payments on top of the averages.
	if err := h.Store.SaveDebtor(ctx, &ledger.Debtor{
		ID:        "demo-anna",
		Name:      "Anna Romano",
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if _, _, err := ledger.CreateAgreement(ctx, h.Store, ledger.CreateAgreementInput{
		ID:               "demo-agr-anna",
		DebtorID:         "demo-anna",
		Principal:        decimal.RequireFromString("750"),
		MonthlyRate:      decimal.Zero,
		InstallmentCount: 3,
		Currency:         "EUR",
		StartDate:        now,
		FirstDueDate:     currentMonth.AddDate(0, 1, 14),
	}, now); err != nil {
		return err
	}

	// Materialize the history so projections work immediately.
	_, err := h.Aggregator.RebuildRange(ctx, currentMonth.AddDate(0, -6, 0), 6, now)
	return err
}
