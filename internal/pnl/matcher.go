// Package pnl matches buy orders against sell-order inventory to compute
// realized profit, and summarises settlement progress per currency.
package pnl

import (
	"fmt"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

var matchTolerance = decimal.New(1, -6)

// Lot is one sell order's inventory as seen by the matcher. Cost is the
// company's settled quote-side outflow for the whole order.
type Lot struct {
	OrderID   string
	Quote     domain.Currency
	Amount    decimal.Decimal
	Cost      decimal.Decimal
	CreatedAt time.Time
}

// Demand is one buy order to be funded from the lot pool.
type Demand struct {
	OrderID   string
	Customer  string
	Base      domain.Currency
	Quote     domain.Currency
	Amount    decimal.Decimal
	Revenue   decimal.Decimal
	CreatedAt time.Time
}

func LotFromSell(t domain.Transaction) Lot {
	return Lot{
		OrderID:   t.OrderID,
		Quote:     t.QuoteCurrency,
		Amount:    t.Amount,
		Cost:      t.SettledOut,
		CreatedAt: t.CreatedAt,
	}
}

func DemandFromBuy(t domain.Transaction) Demand {
	return Demand{
		OrderID:   t.OrderID,
		Customer:  t.Customer,
		Base:      t.BaseCurrency,
		Quote:     t.QuoteCurrency,
		Amount:    t.Amount,
		Revenue:   t.SettledIn,
		CreatedAt: t.CreatedAt,
	}
}

// Converter turns a cost in one currency into another. ok is false when no
// rate is tracked for the pair.
type Converter interface {
	Convert(amount decimal.Decimal, from, to domain.Currency) (converted decimal.Decimal, ok bool, err error)
}

// Row is the matching result for one buy order. Costs holds the accumulated
// cost per currency; only the buy's quote currency carries profit.
type Row struct {
	OrderID     string
	Customer    string
	Base        domain.Currency
	Quote       domain.Currency
	Amount      decimal.Decimal
	Revenue     decimal.Decimal
	Costs       map[domain.Currency]decimal.Decimal
	Profit      map[domain.Currency]decimal.Decimal
	Unmatched   decimal.Decimal
	Unconverted []string
	MatchedSell []string
	CreatedAt   time.Time
}

func (r Row) Cost(c domain.Currency) decimal.Decimal {
	return r.Costs[c]
}

// ProfitIn returns zero for any currency other than the buy's quote.
func (r Row) ProfitIn(c domain.Currency) decimal.Decimal {
	return r.Profit[c]
}

// Match funds each demand, in order, from the lot pool oldest first. Lots are
// shared across demands: what one buy consumes is gone for the next. Neither
// input slice is modified.
func Match(demands []Demand, lots []Lot, conv Converter, tracked []domain.Currency) ([]Row, error) {
	remaining := make([]decimal.Decimal, len(lots))
	for i, l := range lots {
		remaining[i] = l.Amount
	}
	cursor := 0

	rows := make([]Row, 0, len(demands))
	for _, d := range demands {
		row := Row{
			OrderID:   d.OrderID,
			Customer:  d.Customer,
			Base:      d.Base,
			Quote:     d.Quote,
			Amount:    d.Amount,
			Revenue:   d.Revenue,
			Costs:     make(map[domain.Currency]decimal.Decimal),
			Profit:    make(map[domain.Currency]decimal.Decimal),
			CreatedAt: d.CreatedAt,
		}
		need := d.Amount

		for cursor < len(lots) && remaining[cursor].LessThanOrEqual(matchTolerance) {
			cursor++
		}
		for i := cursor; i < len(lots); i++ {
			if remaining[i].LessThanOrEqual(matchTolerance) {
				continue
			}
			lot := lots[i]
			matched := decimal.Min(need, remaining[i])

			// cost share = matched * cost / amount, multiplied first to keep precision
			var share decimal.Decimal
			if lot.Amount.IsPositive() {
				share = matched.Mul(lot.Cost).DivRound(lot.Amount, 10)
			}

			if lot.Quote == d.Quote {
				row.Costs[d.Quote] = row.Costs[d.Quote].Add(share)
			} else {
				converted, ok, err := conv.Convert(share, lot.Quote, d.Quote)
				if err != nil {
					return nil, fmt.Errorf("Match: order %s against %s: %w", d.OrderID, lot.OrderID, err)
				}
				if ok {
					row.Costs[d.Quote] = row.Costs[d.Quote].Add(converted)
				} else {
					row.Unconverted = append(row.Unconverted, lot.OrderID)
				}
			}

			need = need.Sub(matched)
			remaining[i] = remaining[i].Sub(matched)
			row.MatchedSell = append(row.MatchedSell, lot.OrderID)

			if need.LessThanOrEqual(matchTolerance) {
				break
			}
		}

		row.Unmatched = decimal.Max(need, decimal.Zero)
		for _, c := range tracked {
			row.Profit[c] = decimal.Zero
			if _, ok := row.Costs[c]; !ok && c != d.Quote {
				row.Costs[c] = decimal.Zero
			}
		}
		row.Costs[d.Quote] = domain.RoundMoney(row.Costs[d.Quote])
		row.Profit[d.Quote] = domain.RoundMoney(d.Revenue.Sub(row.Costs[d.Quote]))
		rows = append(rows, row)
	}
	return rows, nil
}
