package dao

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow      = errors.New("amount overflow")
	ErrUnderflow     = errors.New("amount underflow")
	ErrDivByZero     = errors.New("division by zero")
	ErrInvalidAmount = errors.New("invalid amount")
)

// WeiPerEther is 10^18.
var WeiPerEther = MustParseAmount("1000000000000000000")

// Amount is an unsigned 256-bit wei value. The zero value is 0.
// Arithmetic never wraps: every operation that could leave the range reports an error.
type Amount struct {
	v uint256.Int
}

// NewAmount lifts a small integer into an Amount.
// Example payload: dao.NewAmount(42)
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// AmountFromUint256 copies a host value.
func AmountFromUint256(u *uint256.Int) Amount {
	var a Amount
	if u != nil {
		a.v.Set(u)
	}
	return a
}

// Ether is a convenience for tests and configs: n whole ether.
// Example payload: dao.Ether(10)
func Ether(n uint64) Amount {
	a, err := NewAmount(n).Mul(WeiPerEther)
	if err != nil {
		panic(err)
	}
	return a
}

// Uint256 returns a fresh copy for handing to the host.
func (a Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

func (a Amount) IsZero() bool           { return a.v.IsZero() }
func (a Amount) Cmp(b Amount) int       { return a.v.Cmp(&b.v) }
func (a Amount) Lt(b Amount) bool       { return a.v.Lt(&b.v) }
func (a Amount) Gt(b Amount) bool       { return a.v.Gt(&b.v) }
func (a Amount) Eq(b Amount) bool       { return a.v.Eq(&b.v) }
func (a Amount) Gte(b Amount) bool      { return !a.v.Lt(&b.v) }
func (a Amount) Uint64() (uint64, bool) { return a.v.Uint64(), a.v.IsUint64() }

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Sub returns a-b or ErrUnderflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

// Mul returns a*b or ErrOverflow.
func (a Amount) Mul(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Div is integer division rounding down.
func (a Amount) Div(b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var out Amount
	out.v.Div(&a.v, &b.v)
	return out, nil
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Sum adds all values, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}

// String is the plain wei digits.
func (a Amount) String() string { return a.v.Dec() }

// Ether formats the value in ether, trimming trailing zeros.
// Example payload: dao.Ether(3).Ether() == "3"
func (a Amount) Ether() string {
	d, err := decimal.NewFromString(a.v.Dec())
	if err != nil {
		return a.v.Dec()
	}
	return d.Shift(-18).String()
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

var unitShift = map[string]int32{
	"wei":   0,
	"gwei":  9,
	"eth":   18,
	"ether": 18,
}

// ParseAmount accepts plain wei digits or a decimal with a unit suffix.
// Fractions below one wei are rejected, so are negatives.
// Example payload: dao.ParseAmount("1.5eth")
func ParseAmount(s string) (Amount, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	shift := int32(0)
	for _, unit := range []string{"gwei", "ether", "eth", "wei"} {
		if strings.HasSuffix(raw, unit) {
			shift = unitShift[unit]
			raw = strings.TrimSpace(strings.TrimSuffix(raw, unit))
			break
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}
	d = d.Shift(shift)
	if !d.Equal(d.Truncate(0)) {
		return Amount{}, fmt.Errorf("%w: fraction of a wei in %q", ErrInvalidAmount, s)
	}
	var a Amount
	if err := a.v.SetFromDecimal(d.BigInt().String()); err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return a, nil
}

// MustParseAmount panics on bad input; only for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}
