/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  Monetary fields are decimal.Decimal and serialize as quoted decimal
  strings ("333.33"). Clients must not parse them as binary floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model these types mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerkit/debt-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// DebtorDTO represents a debtor in API responses.
type DebtorDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateDebtorRequest is the request to create a debtor.
type CreateDebtorRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Note  string `json:"note,omitempty"`
}

// AgreementDTO represents an agreement in API responses.
type AgreementDTO struct {
	ID               string          `json:"id"`
	DebtorID         string          `json:"debtor_id"`
	Principal        decimal.Decimal `json:"principal"`
	MonthlyRate      decimal.Decimal `json:"monthly_rate"`
	InstallmentCount int             `json:"installment_count"`
	Currency         string          `json:"currency"`
	StartDate        string          `json:"start_date"`
	FirstDueDate     string          `json:"first_due_date"`
	Closed           bool            `json:"closed"`
	CreatedAt        string          `json:"created_at,omitempty"`
}

// CreateAgreementRequest is the request to open a new agreement. The full
// installment schedule is generated and persisted with it.
type CreateAgreementRequest struct {
	ID               string          `json:"id"`
	DebtorID         string          `json:"debtor_id"`
	Principal        decimal.Decimal `json:"principal"`
	MonthlyRate      decimal.Decimal `json:"monthly_rate"` // fraction or percent
	InstallmentCount int             `json:"installment_count"`
	Currency         string          `json:"currency"`
	StartDate        string          `json:"start_date"`     // YYYY-MM-DD
	FirstDueDate     string          `json:"first_due_date"` // YYYY-MM-DD
}

// AgreementResponse bundles an agreement with its installments.
type AgreementResponse struct {
	Agreement    AgreementDTO     `json:"agreement"`
	Installments []InstallmentDTO `json:"installments"`
}

// InstallmentDTO represents one scheduled obligation.
type InstallmentDTO struct {
	ID          string          `json:"id"`
	AgreementID string          `json:"agreement_id"`
	Number      int             `json:"number"`
	DueDate     string          `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      string          `json:"status"`
}

// ApplyPaymentRequest records a payment against an installment.
type ApplyPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"` // YYYY-MM-DD, defaults to today
	Method string          `json:"method,omitempty"`
	Note   string          `json:"note,omitempty"`
}

// SetStatusRequest is the manual status override.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// AllocationResponse reports what a payment mutation changed.
type AllocationResponse struct {
	PaymentID        string         `json:"payment_id,omitempty"`
	Installment      InstallmentDTO `json:"installment"`
	AgreementClosed  bool           `json:"agreement_closed"`
	AgreementChanged bool           `json:"agreement_changed"`
}

// SnapshotDTO represents one month's materialized aggregate.
type SnapshotDTO struct {
	ReferenceMonth     string          `json:"reference_month"`
	Salary             decimal.Decimal `json:"salary"`
	PaymentsReceived   decimal.Decimal `json:"payments_received"`
	VariableIncome     decimal.Decimal `json:"variable_income"`
	VariableExpenses   decimal.Decimal `json:"variable_expenses"`
	FixedExpenses      decimal.Decimal `json:"fixed_expenses"`
	OverdueAmount      decimal.Decimal `json:"overdue_amount"`
	PlannedReceivables decimal.Decimal `json:"planned_receivables"`
	ActiveDebtors      int             `json:"active_debtors"`
	ActiveAgreements   int             `json:"active_agreements"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	NetBalance         decimal.Decimal `json:"net_balance"`
	CalculatedAt       string          `json:"calculated_at"`
}

// RebuildSnapshotsRequest triggers a snapshot rebuild. Month defaults to the
// current month; Months > 1 backfills forward from Month.
type RebuildSnapshotsRequest struct {
	Month  string `json:"month,omitempty"` // YYYY-MM
	Months int    `json:"months,omitempty"`
}

// ProjectRequest computes and stores projections.
type ProjectRequest struct {
	MonthsAhead int    `json:"months_ahead"`
	Scenario    string `json:"scenario"`
}

// ProjectionDTO represents one (month, scenario) forecast.
type ProjectionDTO struct {
	TargetMonth               string          `json:"target_month"`
	Scenario                  string          `json:"scenario"`
	ProjectedSalary           decimal.Decimal `json:"projected_salary"`
	ProjectedPayments         decimal.Decimal `json:"projected_payments"`
	ProjectedVariableIncome   decimal.Decimal `json:"projected_variable_income"`
	ProjectedVariableExpenses decimal.Decimal `json:"projected_variable_expenses"`
	ProjectedFixedExpenses    decimal.Decimal `json:"projected_fixed_expenses"`
	TotalIncome               decimal.Decimal `json:"total_income"`
	TotalExpenses             decimal.Decimal `json:"total_expenses"`
	NetBalance                decimal.Decimal `json:"net_balance"`
	Confidence                decimal.Decimal `json:"confidence"`
}

// MetricsDTO represents per-debtor aggregate figures.
type MetricsDTO struct {
	DebtorID       string          `json:"debtor_id"`
	TotalOwed      decimal.Decimal `json:"total_owed"`
	OverdueAmount  decimal.Decimal `json:"overdue_amount"`
	OpenAgreements int             `json:"open_agreements"`
	NextDueDate    string          `json:"next_due_date,omitempty"`
	ComputedAt     string          `json:"computed_at"`
}

// SalaryRequest records a month's salary.
type SalaryRequest struct {
	Month  string          `json:"month"` // YYYY-MM
	Amount decimal.Decimal `json:"amount"`
}

// TransactionRequest records an ad-hoc income or expense.
type TransactionRequest struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"` // income | expense
	Description string          `json:"description,omitempty"`
}

// FixedExpenseRequest creates or updates a recurring expense.
type FixedExpenseRequest struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Active *bool           `json:"active,omitempty"` // defaults to true
}

// ReminderDTO is the single installment most in need of a nudge.
type ReminderDTO struct {
	Installment InstallmentDTO `json:"installment"`
	DebtorID    string         `json:"debtor_id"`
	DebtorName  string         `json:"debtor_name,omitempty"`
	Overdue     bool           `json:"overdue"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDebtorDTO(d ledger.Debtor) DebtorDTO {
	return DebtorDTO{
		ID:        string(d.ID),
		Name:      d.Name,
		Phone:     d.Phone,
		Note:      d.Note,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

func toAgreementDTO(a ledger.Agreement) AgreementDTO {
	return AgreementDTO{
		ID:               string(a.ID),
		DebtorID:         string(a.DebtorID),
		Principal:        a.Principal,
		MonthlyRate:      a.MonthlyRate,
		InstallmentCount: a.InstallmentCount,
		Currency:         a.Currency,
		StartDate:        a.StartDate.Format("2006-01-02"),
		FirstDueDate:     a.FirstDueDate.Format("2006-01-02"),
		Closed:           a.Closed,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

func toInstallmentDTO(i ledger.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:          string(i.ID),
		AgreementID: string(i.AgreementID),
		Number:      i.Number,
		DueDate:     i.DueDate.Format("2006-01-02"),
		Amount:      i.Amount,
		PaidAmount:  i.PaidAmount,
		Remaining:   i.RemainingAmount(),
		Status:      string(i.Status),
	}
}

func toInstallmentDTOs(installments []ledger.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, inst := range installments {
		dtos[i] = toInstallmentDTO(inst)
	}
	return dtos
}

func toSnapshotDTO(s ledger.MonthlySnapshot) SnapshotDTO {
	return SnapshotDTO{
		ReferenceMonth:     s.ReferenceMonth.Format("2006-01"),
		Salary:             s.Salary,
		PaymentsReceived:   s.PaymentsReceived,
		VariableIncome:     s.VariableIncome,
		VariableExpenses:   s.VariableExpenses,
		FixedExpenses:      s.FixedExpenses,
		OverdueAmount:      s.OverdueAmount,
		PlannedReceivables: s.PlannedReceivables,
		ActiveDebtors:      s.ActiveDebtors,
		ActiveAgreements:   s.ActiveAgreements,
		TotalIncome:        s.TotalIncome,
		TotalExpenses:      s.TotalExpenses,
		NetBalance:         s.NetBalance,
		CalculatedAt:       s.CalculatedAt.Format(time.RFC3339),
	}
}

func toProjectionDTO(p ledger.CashFlowProjection) ProjectionDTO {
	return ProjectionDTO{
		TargetMonth:               p.TargetMonth.Format("2006-01"),
		Scenario:                  string(p.Scenario),
		ProjectedSalary:           p.ProjectedSalary,
		ProjectedPayments:         p.ProjectedPayments,
		ProjectedVariableIncome:   p.ProjectedVariableIncome,
		ProjectedVariableExpenses: p.ProjectedVariableExpenses,
		ProjectedFixedExpenses:    p.ProjectedFixedExpenses,
		TotalIncome:               p.TotalIncome,
		TotalExpenses:             p.TotalExpenses,
		NetBalance:                p.NetBalance,
		Confidence:                p.Confidence,
	}
}

func toProjectionDTOs(projections []ledger.CashFlowProjection) []ProjectionDTO {
	dtos := make([]ProjectionDTO, len(projections))
	for i, p := range projections {
		dtos[i] = toProjectionDTO(p)
	}
	return dtos
}

func toAllocationResponse(result *ledger.AllocationResult) AllocationResponse {
	resp := AllocationResponse{
		Installment:      toInstallmentDTO(*result.Installment),
		AgreementChanged: result.AgreementChanged,
	}
	if result.Agreement != nil {
		resp.AgreementClosed = result.Agreement.Closed
	}
	if result.Payment != nil {
		resp.PaymentID = string(result.Payment.ID)
	}
	return resp
}
