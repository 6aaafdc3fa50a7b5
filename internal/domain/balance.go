package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCompanyAccount is the ledger entity that mirrors every customer-facing
// balance change.
const DefaultCompanyAccount = "COMPANY"

type Balance struct {
	Customer  string
	Currency  Currency
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

type Adjustment struct {
	ID        uuid.UUID
	Customer  string
	Currency  Currency
	Amount    decimal.Decimal
	Note      string
	CreatedAt time.Time
}

type Expense struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Currency  Currency
	Purpose   string
	CreatedAt time.Time
}

type DebtDirection string

const (
	CompanyOwesCustomer DebtDirection = "company_owes_customer"
	CustomerOwesCompany DebtDirection = "customer_owes_company"
)

var debtThreshold = decimal.New(1, -2)

// Debt is a non-trivial non-company balance.
type Debt struct {
	Customer  string
	Currency  Currency
	Amount    decimal.Decimal
	Direction DebtDirection
}

// DebtFromBalance classifies a balance, returning false when its magnitude is
// within one cent of zero.
func DebtFromBalance(b Balance) (Debt, bool) {
	if !b.Amount.Abs().GreaterThan(debtThreshold) {
		return Debt{}, false
	}
	d := Debt{Customer: b.Customer, Currency: b.Currency, Amount: b.Amount, Direction: CompanyOwesCustomer}
	if b.Amount.IsNegative() {
		d.Direction = CustomerOwesCompany
	}
	return d, true
}

// PurgeResult counts rows removed per table by a customer purge.
type PurgeResult struct {
	Balances       int64
	Transactions   int64
	Adjustments    int64
	SettlementRuns int64
}
