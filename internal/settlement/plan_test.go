package settlement

import (
	"testing"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(id string, kind domain.TradeKind, amount string, base, quote domain.Currency, op domain.Operator, rate string, at time.Duration) domain.Transaction {
	return domain.Transaction{
		OrderID:       id,
		Customer:      "A",
		Kind:          kind,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Amount:        dec(amount),
		Rate:          dec(rate),
		Operator:      op,
		Status:        domain.StatusPending,
		CreatedAt:     t0.Add(at),
	}
}

func cmd(amount string, currency domain.Currency, dir domain.Direction) Command {
	return Command{Customer: "A", Currency: currency, Amount: dec(amount), Direction: dir}
}

func TestBuildPlan_PartialQuoteSettlement(t *testing.T) {
	buy := order("YS000000001", domain.KindBuy, "10000", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)

	plan, err := BuildPlan(cmd("500", "USDT", domain.Inbound), []domain.Transaction{buy})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.Equal(t, domain.PhaseQuoteFIFO, step.Phase)
	assert.Equal(t, domain.SideIn, step.Side)
	assert.Equal(t, "500.00", step.SettledAfter.StringFixed(2))
	assert.Equal(t, domain.StatusPartial, step.NewStatus)
	assert.True(t, plan.Residual.IsZero())
	assert.True(t, plan.OffsetTotal.IsZero())
}

func TestBuildPlan_HedgeThenFIFO(t *testing.T) {
	sell := order("YS000000001", domain.KindSell, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)
	buy := order("YS000000002", domain.KindBuy, "10000", "MYR", "USDT", domain.OperatorDivide, "4.42", time.Minute)

	plan, err := BuildPlan(cmd("100", "USDT", domain.Inbound), []domain.Transaction{buy, sell})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)

	hedge := plan.Steps[0]
	assert.Equal(t, domain.PhaseHedge, hedge.Phase)
	assert.Equal(t, "YS000000001", hedge.OrderID)
	assert.Equal(t, domain.SideOut, hedge.Side)
	assert.Equal(t, "100.00", hedge.SettledAfter.StringFixed(2))
	assert.Equal(t, "-100.00", hedge.BalanceDelta.StringFixed(2))
	assert.Equal(t, domain.StatusPartial, hedge.NewStatus)

	assert.Equal(t, "100.00", plan.OffsetTotal.StringFixed(2))
	assert.Equal(t, "200.00", plan.EffectivePayment.StringFixed(2))

	fifo := plan.Steps[1]
	assert.Equal(t, domain.PhaseQuoteFIFO, fifo.Phase)
	assert.Equal(t, "YS000000002", fifo.OrderID)
	assert.Equal(t, "200.00", fifo.AmountApplied.StringFixed(2))
	assert.Equal(t, "200.00", fifo.BalanceDelta.StringFixed(2))
	assert.True(t, plan.Residual.IsZero())
}

func TestBuildPlan_FIFOIsOldestFirst(t *testing.T) {
	older := order("YS000000001", domain.KindBuy, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)
	newer := order("YS000000002", domain.KindBuy, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", time.Hour)

	plan, err := BuildPlan(cmd("150", "USDT", domain.Inbound), []domain.Transaction{newer, older})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "YS000000001", plan.Steps[0].OrderID)
	assert.Equal(t, "100.00", plan.Steps[0].AmountApplied.StringFixed(2))
	assert.Equal(t, domain.StatusPartial, plan.Steps[0].NewStatus)
	assert.Equal(t, "YS000000002", plan.Steps[1].OrderID)
	assert.Equal(t, "50.00", plan.Steps[1].AmountApplied.StringFixed(2))
}

func TestBuildPlan_BaseFIFOThenResidual(t *testing.T) {
	sell := order("YS000000001", domain.KindSell, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)

	plan, err := BuildPlan(cmd("1000", "MYR", domain.Inbound), []domain.Transaction{sell})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	base := plan.Steps[0]
	assert.Equal(t, domain.PhaseBaseFIFO, base.Phase)
	assert.Equal(t, domain.SideIn, base.Side)
	assert.Equal(t, "442.00", base.AmountApplied.StringFixed(2))

	residual := plan.Steps[1]
	assert.Equal(t, domain.PhaseResidual, residual.Phase)
	assert.Equal(t, domain.SideBalance, residual.Side)
	assert.Empty(t, residual.OrderID)
	assert.Equal(t, "558.00", residual.BalanceDelta.StringFixed(2))
	assert.Equal(t, "558.00", plan.Residual.StringFixed(2))
}

func TestBuildPlan_OutboundMirrorsInbound(t *testing.T) {
	sell := order("YS000000001", domain.KindSell, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)

	plan, err := BuildPlan(cmd("150", "USDT", domain.Outbound), []domain.Transaction{sell})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	fifo := plan.Steps[0]
	assert.Equal(t, domain.PhaseQuoteFIFO, fifo.Phase)
	assert.Equal(t, domain.SideOut, fifo.Side)
	assert.Equal(t, "100.00", fifo.AmountApplied.StringFixed(2))
	assert.Equal(t, "-100.00", fifo.BalanceDelta.StringFixed(2))

	residual := plan.Steps[1]
	assert.Equal(t, "-50.00", residual.BalanceDelta.StringFixed(2))
}

func TestBuildPlan_SkipsClosedOrders(t *testing.T) {
	settled := order("YS000000001", domain.KindBuy, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0)
	settled.Status = domain.StatusSettled
	canceled := order("YS000000002", domain.KindBuy, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", time.Minute)
	canceled.Status = domain.StatusCanceled

	plan, err := BuildPlan(cmd("10", "USDT", domain.Inbound), []domain.Transaction{settled, canceled})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, domain.PhaseResidual, plan.Steps[0].Phase)
}

func TestBuildPlan_DoesNotMutateInput(t *testing.T) {
	input := []domain.Transaction{
		order("YS000000001", domain.KindBuy, "10000", "MYR", "USDT", domain.OperatorDivide, "4.42", 0),
	}

	_, err := BuildPlan(cmd("500", "USDT", domain.Inbound), input)
	require.NoError(t, err)

	assert.True(t, input[0].SettledIn.IsZero())
	assert.Equal(t, domain.StatusPending, input[0].Status)
}

func TestBuildPlan_Invariants(t *testing.T) {
	outstanding := []domain.Transaction{
		order("YS000000001", domain.KindSell, "442", "MYR", "USDT", domain.OperatorDivide, "4.42", 0),
		order("YS000000002", domain.KindBuy, "1000", "MYR", "USDT", domain.OperatorDivide, "4.42", time.Minute),
		order("YS000000003", domain.KindBuy, "300", "USDT", "MYR", domain.OperatorMultiply, "4.40", 2*time.Minute),
		order("YS000000004", domain.KindSell, "50", "USDT", "MYR", domain.OperatorMultiply, "4.45", 3*time.Minute),
	}

	for _, c := range []Command{
		cmd("250", "USDT", domain.Inbound),
		cmd("250", "USDT", domain.Outbound),
		cmd("900", "MYR", domain.Inbound),
		cmd("900", "MYR", domain.Outbound),
		cmd("0.01", "USDT", domain.Inbound),
	} {
		t.Run(string(c.Direction)+"/"+string(c.Currency), func(t *testing.T) {
			plan, err := BuildPlan(c, outstanding)
			require.NoError(t, err)

			total := decimal.Zero
			for _, s := range plan.Steps {
				total = total.Add(s.BalanceDelta)
				assert.False(t, s.AmountApplied.IsNegative(), "step %d", s.Seq)
				if s.OrderID == "" {
					continue
				}
				assert.True(t, s.SettledAfter.GreaterThanOrEqual(s.SettledBefore), "step %d monotonic", s.Seq)

				projected := plan.Orders[s.OrderID]
				recomputed, err := projected.ComputeStatus()
				require.NoError(t, err)
				assert.Equal(t, recomputed, projected.Status, "order %s", s.OrderID)
			}
			assert.True(t, c.Direction.Sign().Mul(c.Amount).Equal(total),
				"net delta %s for %s %s", total, c.Direction, c.Amount)

			for i, s := range plan.Steps {
				assert.Equal(t, i+1, s.Seq)
			}
		})
	}
}

func TestCommandNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{name: "valid", cmd: cmd("10.005", "USDT", domain.Inbound)},
		{name: "zero amount", cmd: cmd("0.004", "USDT", domain.Inbound), wantErr: domain.ErrInvalidAmount},
		{name: "bad currency", cmd: cmd("10", "usdt", domain.Inbound), wantErr: domain.ErrInvalidCurrency},
		{name: "bad direction", cmd: cmd("10", "USDT", domain.Direction("sideways")), wantErr: domain.ErrInvalidDirection},
		{name: "company account", cmd: Command{Customer: "company", Currency: "USDT", Amount: dec("1"), Direction: domain.Inbound}, wantErr: domain.ErrReservedCustomer},
		{name: "missing customer", cmd: Command{Currency: "USDT", Amount: dec("1"), Direction: domain.Inbound}, wantErr: domain.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cmd.Normalize(domain.DefaultCompanyAccount)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "10.01", got.Amount.StringFixed(2))
		})
	}
}
