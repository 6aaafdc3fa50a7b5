package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/pnl"
	"github.com/josh-kwaku/fx-settlement/internal/service"
)

// numericString accepts a JSON number or a string such as "10,000.50".
type numericString string

func (n *numericString) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numericString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numericString(num)
	return nil
}

type transactionDTO struct {
	OrderID       string          `json:"order_id"`
	Customer      string          `json:"customer"`
	Kind          string          `json:"kind"`
	PaymentKind   string          `json:"payment_kind,omitempty"`
	BaseCurrency  string          `json:"base_currency,omitempty"`
	QuoteCurrency string          `json:"quote_currency,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`
	Operator      string          `json:"operator,omitempty"`
	Status        string          `json:"status"`
	SettledIn     decimal.Decimal `json:"settled_in"`
	SettledOut    decimal.Decimal `json:"settled_out"`
	CreatedAt     time.Time       `json:"created_at"`
	CanceledAt    *time.Time      `json:"canceled_at,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		OrderID:       t.OrderID,
		Customer:      t.Customer,
		Kind:          string(t.Kind),
		PaymentKind:   string(t.PaymentKind),
		BaseCurrency:  string(t.BaseCurrency),
		QuoteCurrency: string(t.QuoteCurrency),
		Amount:        t.Amount,
		Rate:          t.Rate,
		Operator:      string(t.Operator),
		Status:        string(t.Status),
		SettledIn:     t.SettledIn,
		SettledOut:    t.SettledOut,
		CreatedAt:     t.CreatedAt,
		CanceledAt:    t.CanceledAt,
	}
}

type moneyDTO struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type costBasisDTO struct {
	Direction        string          `json:"direction"`
	AcquiredCurrency string          `json:"acquired_currency"`
	SpentCurrency    string          `json:"spent_currency"`
	TotalAcquired    decimal.Decimal `json:"total_acquired"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toCostBasisDTO(cb domain.CostBasis) costBasisDTO {
	return costBasisDTO{
		Direction:        cb.Direction,
		AcquiredCurrency: string(cb.AcquiredCurrency),
		SpentCurrency:    string(cb.SpentCurrency),
		TotalAcquired:    cb.TotalAcquired,
		TotalSpent:       cb.TotalSpent,
		AverageCost:      cb.AverageCost,
		UpdatedAt:        cb.UpdatedAt,
	}
}

type tradeResultDTO struct {
	Transaction      transactionDTO `json:"transaction"`
	CustomerPays     moneyDTO       `json:"customer_pays"`
	CustomerReceives moneyDTO       `json:"customer_receives"`
	CostBasis        *costBasisDTO  `json:"cost_basis,omitempty"`
}

func toTradeResultDTO(r *service.TradeResult) tradeResultDTO {
	dto := tradeResultDTO{
		Transaction:      toTransactionDTO(r.Transaction),
		CustomerPays:     moneyDTO{Amount: r.CustomerPays.Amount, Currency: string(r.CustomerPays.Currency)},
		CustomerReceives: moneyDTO{Amount: r.CustomerReceives.Amount, Currency: string(r.CustomerReceives.Currency)},
	}
	if r.CostBasis != nil {
		cb := toCostBasisDTO(*r.CostBasis)
		dto.CostBasis = &cb
	}
	return dto
}

type runDTO struct {
	ID          uuid.UUID           `json:"id"`
	Customer    string              `json:"customer"`
	Currency    string              `json:"currency"`
	Direction   string              `json:"direction"`
	Amount      decimal.Decimal     `json:"amount"`
	OffsetTotal decimal.Decimal     `json:"offset_total"`
	Residual    decimal.Decimal     `json:"residual"`
	Status      string              `json:"status"`
	PaymentID   *string             `json:"payment_id"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Trace       []domain.TraceEntry `json:"trace"`
}

func toRunDTO(r *domain.SettlementRun) runDTO {
	return runDTO{
		ID:          r.ID,
		Customer:    r.Customer,
		Currency:    string(r.Currency),
		Direction:   string(r.Direction),
		Amount:      r.Amount,
		OffsetTotal: r.OffsetTotal,
		Residual:    r.Residual,
		Status:      string(r.Status),
		PaymentID:   r.PaymentID,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		Trace:       r.Trace(),
	}
}

type balanceDTO struct {
	Customer  string          `json:"customer"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func toBalanceDTO(b domain.Balance) balanceDTO {
	dto := balanceDTO{Customer: b.Customer, Currency: string(b.Currency), Amount: b.Amount}
	if !b.UpdatedAt.IsZero() {
		dto.UpdatedAt = &b.UpdatedAt
	}
	return dto
}

type debtDTO struct {
	Customer  string          `json:"customer"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction"`
}

type adjustmentDTO struct {
	ID        uuid.UUID       `json:"id"`
	Customer  string          `json:"customer"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAdjustmentDTO(a *domain.Adjustment) adjustmentDTO {
	return adjustmentDTO{
		ID:        a.ID,
		Customer:  a.Customer,
		Currency:  string(a.Currency),
		Amount:    a.Amount,
		Note:      a.Note,
		CreatedAt: a.CreatedAt,
	}
}

type expenseDTO struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Purpose   string          `json:"purpose"`
	CreatedAt time.Time       `json:"created_at"`
}

func toExpenseDTO(e *domain.Expense) expenseDTO {
	return expenseDTO{ID: e.ID, Amount: e.Amount, Currency: string(e.Currency), Purpose: e.Purpose, CreatedAt: e.CreatedAt}
}

type pnlRowDTO struct {
	OrderID     string                     `json:"order_id"`
	Customer    string                     `json:"customer"`
	Date        string                     `json:"date"`
	Base        string                     `json:"base_currency"`
	Quote       string                     `json:"quote_currency"`
	Amount      decimal.Decimal            `json:"amount"`
	Revenue     decimal.Decimal            `json:"revenue"`
	Costs       map[string]decimal.Decimal `json:"costs"`
	Profit      map[string]decimal.Decimal `json:"profit"`
	Unmatched   decimal.Decimal            `json:"unmatched"`
	Unconverted []string                   `json:"unconverted,omitempty"`
	MatchedSell []string                   `json:"matched_sell_orders"`
}

func currencyMap(m map[domain.Currency]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func toPnLRowDTO(r pnl.Row) pnlRowDTO {
	matched := r.MatchedSell
	if matched == nil {
		matched = []string{}
	}
	return pnlRowDTO{
		OrderID:     r.OrderID,
		Customer:    r.Customer,
		Date:        r.CreatedAt.Format("2006-01-02"),
		Base:        string(r.Base),
		Quote:       string(r.Quote),
		Amount:      r.Amount,
		Revenue:     r.Revenue,
		Costs:       currencyMap(r.Costs),
		Profit:      currencyMap(r.Profit),
		Unmatched:   r.Unmatched,
		Unconverted: r.Unconverted,
		MatchedSell: matched,
	}
}

type summaryDTO struct {
	Currency       string          `json:"currency"`
	TotalIncome    decimal.Decimal `json:"total_income"`
	ActualIncome   decimal.Decimal `json:"actual_income"`
	PendingIncome  decimal.Decimal `json:"pending_income"`
	TotalExpense   decimal.Decimal `json:"total_expense"`
	ActualExpense  decimal.Decimal `json:"actual_expense"`
	PendingExpense decimal.Decimal `json:"pending_expense"`
	Expenses       decimal.Decimal `json:"expenses"`
	CreditBalance  decimal.Decimal `json:"credit_balance"`
	Net            decimal.Decimal `json:"net"`
}

func toSummaryDTO(s pnl.CurrencySummary) summaryDTO {
	return summaryDTO{
		Currency:       string(s.Currency),
		TotalIncome:    s.TotalIncome,
		ActualIncome:   s.ActualIncome,
		PendingIncome:  s.PendingIncome,
		TotalExpense:   s.TotalExpense,
		ActualExpense:  s.ActualExpense,
		PendingExpense: s.PendingExpense,
		Expenses:       s.Expenses,
		CreditBalance:  s.CreditBalance,
		Net:            s.Net(),
	}
}

type windowDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
