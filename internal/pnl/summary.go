package pnl

import (
	"fmt"
	"sort"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// CurrencySummary is the settlement position in one currency over a window.
// Income is what customers owe the company, expense what the company owes
// customers plus recorded operating expenses.
type CurrencySummary struct {
	Currency       domain.Currency
	TotalIncome    decimal.Decimal
	ActualIncome   decimal.Decimal
	PendingIncome  decimal.Decimal
	TotalExpense   decimal.Decimal
	ActualExpense  decimal.Decimal
	PendingExpense decimal.Decimal
	Expenses       decimal.Decimal
	CreditBalance  decimal.Decimal
}

func (s CurrencySummary) Net() decimal.Decimal {
	return s.ActualIncome.Sub(s.ActualExpense)
}

// Summarize folds window trades and expenses into per-currency totals,
// sorted by currency code.
func Summarize(trades []domain.Transaction, expenses []domain.Expense) ([]CurrencySummary, error) {
	acc := map[domain.Currency]*CurrencySummary{}
	get := func(c domain.Currency) *CurrencySummary {
		s, ok := acc[c]
		if !ok {
			s = &CurrencySummary{Currency: c}
			acc[c] = s
		}
		return s
	}

	for i := range trades {
		t := &trades[i]
		if !t.IsTrade() || t.Status == domain.StatusCanceled {
			continue
		}
		quote, err := t.ExpectedQuote()
		if err != nil {
			return nil, fmt.Errorf("Summarize: order %s: %w", t.OrderID, err)
		}

		incomeCur, incomeTotal := t.QuoteCurrency, quote
		expenseCur, expenseTotal := t.BaseCurrency, t.Amount
		if t.Kind == domain.KindSell {
			incomeCur, incomeTotal = t.BaseCurrency, t.Amount
			expenseCur, expenseTotal = t.QuoteCurrency, quote
		}

		in := get(incomeCur)
		in.TotalIncome = in.TotalIncome.Add(incomeTotal)
		in.ActualIncome = in.ActualIncome.Add(t.SettledIn)
		in.PendingIncome = in.PendingIncome.Add(incomeTotal.Sub(t.SettledIn))

		out := get(expenseCur)
		out.TotalExpense = out.TotalExpense.Add(expenseTotal)
		out.ActualExpense = out.ActualExpense.Add(t.SettledOut)
		out.PendingExpense = out.PendingExpense.Add(expenseTotal.Sub(t.SettledOut))
	}

	for _, e := range expenses {
		s := get(e.Currency)
		s.Expenses = s.Expenses.Add(e.Amount)
		s.ActualExpense = s.ActualExpense.Add(e.Amount)
	}

	out := make([]CurrencySummary, 0, len(acc))
	for _, s := range acc {
		s.CreditBalance = decimal.Max(decimal.Zero, s.ActualIncome.Sub(s.TotalIncome))
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}
