package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point monetary value with two decimal places.
// All arithmetic rounds half-up to two places, matching how prices and
// debts are stored in the database (NUMERIC(10,2)).
type Amount struct {
	d decimal.Decimal
}

const places = 2

func Zero() Amount {
	return Amount{}
}

func FromInt(n int64) Amount {
	return Amount{d: decimal.NewFromInt(n)}
}

// FromString parses a decimal string such as "1250.50". The value is
// rounded half-up to two places so "0.005" becomes "0.01".
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d.Round(places)}, nil
}

// MustParse is for constants in tests and seed data.
func MustParse(s string) Amount {
	a, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// MulQty multiplies a unit price by an integer quantity. Integer
// multiplication of a two-place value never needs rounding.
func (a Amount) MulQty(qty int) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(int64(qty)))}
}

func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

func Min(a, b Amount) Amount {
	if a.d.LessThan(b.d) {
		return a
	}
	return b
}

func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// String always renders two decimal places, e.g. "1250.00".
func (a Amount) String() string {
	return a.d.StringFixed(places)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value renders the amount for SQL parameters; Scan accepts the string,
// []byte, or numeric representations the pgx stdlib driver produces for
// NUMERIC columns.
func (a Amount) Value() (interface{}, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = FromInt(v)
		return nil
	case float64:
		*a = Amount{d: decimal.NewFromFloat(v).Round(places)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
