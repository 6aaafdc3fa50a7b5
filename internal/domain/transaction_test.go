package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuoteAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		rate    string
		op      Operator
		want    string
		wantErr error
	}{
		{name: "divide rounds half up", amount: "10000", rate: "4.42", op: OperatorDivide, want: "2262.44"},
		{name: "multiply", amount: "1000", rate: "4.425", op: OperatorMultiply, want: "4425"},
		{name: "multiply rounds to cents", amount: "333.33", rate: "1.005", op: OperatorMultiply, want: "335"},
		{name: "half cent rounds up", amount: "0.125", rate: "1", op: OperatorMultiply, want: "0.13"},
		{name: "zero rate", amount: "100", rate: "0", op: OperatorDivide, wantErr: ErrArithmetic},
		{name: "negative rate", amount: "100", rate: "-1", op: OperatorMultiply, wantErr: ErrArithmetic},
		{name: "unknown operator", amount: "100", rate: "1", op: Operator("+"), wantErr: ErrInvalidOperator},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QuoteAmount(dec(tc.amount), dec(tc.rate), tc.op)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tc.want).Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func buyOrder() *Transaction {
	return &Transaction{
		OrderID:       "YS000000001",
		Customer:      "A",
		Kind:          KindBuy,
		BaseCurrency:  "MYR",
		QuoteCurrency: "USDT",
		Amount:        dec("10000"),
		Rate:          dec("4.42"),
		Operator:      OperatorDivide,
		Status:        StatusPending,
	}
}

func TestComputeStatus_BuyFullySettled(t *testing.T) {
	tx := buyOrder()
	tx.SettledIn = dec("2262.44")
	tx.SettledOut = dec("10000.00")

	status, err := tx.ComputeStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, status)
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name       string
		kind       TradeKind
		settledIn  string
		settledOut string
		want       Status
	}{
		{name: "buy untouched", kind: KindBuy, settledIn: "0", settledOut: "0", want: StatusPending},
		{name: "buy quote leg only", kind: KindBuy, settledIn: "2262.44", settledOut: "0", want: StatusPartial},
		{name: "buy base leg only", kind: KindBuy, settledIn: "0", settledOut: "10000", want: StatusPartial},
		{name: "buy within tolerance", kind: KindBuy, settledIn: "2262.43", settledOut: "9999.99", want: StatusSettled},
		{name: "buy outside tolerance", kind: KindBuy, settledIn: "2262.42", settledOut: "10000", want: StatusPartial},
		{name: "sell roles inverted", kind: KindSell, settledIn: "10000", settledOut: "2262.44", want: StatusSettled},
		{name: "sell with buy-shaped legs", kind: KindSell, settledIn: "2262.44", settledOut: "10000", want: StatusPartial},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := buyOrder()
			tx.Kind = tc.kind
			tx.SettledIn = dec(tc.settledIn)
			tx.SettledOut = dec(tc.settledOut)

			got, err := tx.ComputeStatus()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeStatus_CanceledIsTerminal(t *testing.T) {
	tx := buyOrder()
	tx.Status = StatusCanceled
	tx.SettledIn = dec("2262.44")
	tx.SettledOut = dec("10000")

	got, err := tx.ComputeStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got)
}

func TestSides(t *testing.T) {
	tx := buyOrder()
	assert.Equal(t, SideIn, tx.QuoteSide())
	assert.Equal(t, SideOut, tx.BaseSide())

	tx.Kind = KindSell
	assert.Equal(t, SideOut, tx.QuoteSide())
	assert.Equal(t, SideIn, tx.BaseSide())
}

func TestCreationEffect(t *testing.T) {
	tx := buyOrder()
	eff, err := tx.CreationEffect()
	require.NoError(t, err)
	assert.True(t, dec("10000").Equal(eff.Base))
	assert.True(t, dec("-2262.44").Equal(eff.Quote))

	tx.Kind = KindSell
	eff, err = tx.CreationEffect()
	require.NoError(t, err)
	assert.True(t, dec("-10000").Equal(eff.Base))
	assert.True(t, dec("2262.44").Equal(eff.Quote))
}

func TestValidRate(t *testing.T) {
	assert.True(t, ValidRate(dec("4.42")))
	assert.True(t, ValidRate(dec("1.00000001")))
	assert.True(t, ValidRate(dec("1.000000010")), "trailing zeros past the scale are harmless")
	assert.False(t, ValidRate(dec("1.000000005")))
	assert.False(t, ValidRate(decimal.Zero))
	assert.False(t, ValidRate(dec("-4.42")))
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1,000.005")
	require.NoError(t, err)
	assert.Equal(t, "1000.01", got.StringFixed(2))

	_, err = ParseAmount("0.004")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usdt ")
	require.NoError(t, err)
	assert.Equal(t, Currency("USDT"), c)

	for _, bad := range []string{"", "US", "USDTX", "U5D"} {
		_, err := ParseCurrency(bad)
		assert.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, ErrOrderNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrPaymentNotFound, ErrNotFound)
}
