package dao

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"42", "42"},
		{"42wei", "42"},
		{"1gwei", "1000000000"},
		{"1eth", "1000000000000000000"},
		{"1.5 ETH", "1500000000000000000"},
		{"0.000000000000000001ether", "1"},
		{maxUint256, maxUint256},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	for _, bad := range []string{"", "-1", "abc", "0.5wei", "1.0000000000000000001eth", maxUint256 + "0"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestAmountCheckedArithmetic(t *testing.T) {
	max := MustParseAmount(maxUint256)

	_, err := max.Add(NewAmount(1))
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = NewAmount(1).Sub(NewAmount(2))
	assert.ErrorIs(t, err, ErrUnderflow)
	_, err = max.Mul(NewAmount(2))
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = NewAmount(1).Div(Amount{})
	assert.ErrorIs(t, err, ErrDivByZero)

	q, err := Ether(7).Div(WeiPerEther)
	require.NoError(t, err)
	assert.True(t, q.Eq(NewAmount(7)))

	sum, err := Sum(Ether(1), Ether(2), NewAmount(3))
	require.NoError(t, err)
	assert.Equal(t, "3000000000000000003", sum.String())
	_, err = Sum(max, NewAmount(1))
	assert.ErrorIs(t, err, ErrOverflow)

	assert.True(t, Min(Ether(1), Ether(2)).Eq(Ether(1)))
	assert.True(t, Ether(2).Gte(Ether(2)))
	assert.Equal(t, "2.5", MustParseAmount("2.5eth").Ether())
}

func TestAmountJSON(t *testing.T) {
	in := Split{ProjectID: 3, Amount: MustParseAmount("1.25eth")}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"projectId":3,"amount":"1250000000000000000"}`, string(raw))

	var out Split
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	// clients may send unit suffixes
	require.NoError(t, json.Unmarshal([]byte(`{"projectId":1,"amount":"2eth"}`), &out))
	assert.True(t, out.Amount.Eq(Ether(2)))
}
