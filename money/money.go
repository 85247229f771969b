package money

import (
	"fmt"
	"math/big"
	"strings"
)

// Scale is the number of decimal places carried by every Amount.
const Scale = 2

var minorPerUnit = big.NewInt(100)

// Amount is a fixed-point monetary value with two decimal places, stored as
// non-negative minor units in a big.Int. The zero value is zero.
type Amount struct {
	minor *big.Int
}

// Zero returns a zero amount.
func Zero() Amount {
	return Amount{minor: big.NewInt(0)}
}

// FromMinor builds an amount from an integer count of minor units.
func FromMinor(v int64) (Amount, error) {
	if v < 0 {
		return Amount{}, fmt.Errorf("money: negative amount %d", v)
	}
	return Amount{minor: big.NewInt(v)}, nil
}

// MustFromMinor is FromMinor for trusted constants; it panics on negatives.
func MustFromMinor(v int64) Amount {
	amount, err := FromMinor(v)
	if err != nil {
		panic(err)
	}
	return amount
}

// Parse converts a plain decimal string such as "1000.00", "10" or ".50" into
// an Amount. More than two fractional digits, signs, or any non-digit
// character is an error. Currency-token stripping is the caller's concern.
func Parse(raw string) (Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Amount{}, fmt.Errorf("money: empty amount")
	}
	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	if whole == "" && frac == "" {
		return Amount{}, fmt.Errorf("money: invalid amount %q", raw)
	}
	if len(frac) > Scale {
		return Amount{}, fmt.Errorf("money: amount %q exceeds scale %d", raw, Scale)
	}
	for len(frac) < Scale {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Amount{}, fmt.Errorf("money: invalid amount %q", raw)
		}
	}
	minor, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("money: invalid amount %q", raw)
	}
	return Amount{minor: minor}, nil
}

func (a Amount) units() *big.Int {
	if a.minor == nil {
		return big.NewInt(0)
	}
	return a.minor
}

// Minor returns a defensive copy of the minor-unit integer.
func (a Amount) Minor() *big.Int {
	return new(big.Int).Set(a.units())
}

// Add returns a + b without mutating either operand.
func (a Amount) Add(b Amount) Amount {
	return Amount{minor: new(big.Int).Add(a.units(), b.units())}
}

// Cmp compares a against b, returning -1, 0, or 1.
func (a Amount) Cmp(b Amount) int {
	return a.units().Cmp(b.units())
}

// Equal reports whether the two amounts are numerically identical.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// Sign returns 0 for a zero amount and 1 otherwise; negative amounts cannot
// be constructed through the public API but a corrupted value reports -1.
func (a Amount) Sign() int {
	return a.units().Sign()
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.units().Sign() == 0
}

// MulRat multiplies the amount by a non-negative rational and rounds the
// result to scale using round-half-to-even.
func (a Amount) MulRat(r *big.Rat) Amount {
	if r == nil {
		return Amount{minor: a.Minor()}
	}
	num := new(big.Int).Mul(a.units(), r.Num())
	den := r.Denom()
	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(num, den, rem)
	rem.Abs(rem)
	twice := new(big.Int).Lsh(rem, 1)
	switch twice.Cmp(den) {
	case 1:
		quo.Add(quo, big.NewInt(1))
	case 0:
		if quo.Bit(0) == 1 {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return Amount{minor: quo}
}

// String renders the canonical scale-2 decimal form, e.g. "1234.56".
func (a Amount) String() string {
	units := a.units()
	neg := units.Sign() < 0
	abs := new(big.Int).Abs(units)
	whole := new(big.Int)
	rem := new(big.Int)
	whole.QuoRem(abs, minorPerUnit, rem)
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%02d", sign, whole.String(), rem.Int64())
}

// MarshalJSON renders the amount as its canonical decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts the canonical decimal string form.
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	parsed, err := Parse(text)
	if err != nil {
		return err
	}
	a.minor = parsed.minor
	return nil
}
