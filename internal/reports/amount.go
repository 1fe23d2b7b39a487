package reports

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalAmount converts a report or entity value into a signed decimal.
// Strings may carry currency symbols, thousands separators and accounting
// parentheses; anything that does not parse yields zero.
func DecimalAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case int32:
		return decimal.NewFromInt(int64(val))
	case Number:
		return decimal.NewFromFloat(float64(val))
	case *Number:
		if val == nil {
			return decimal.Zero
		}
		return decimal.NewFromFloat(float64(*val))
	case json.Number:
		return parseAmountString(val.String())
	case string:
		return parseAmountString(val)
	case *string:
		if val == nil {
			return decimal.Zero
		}
		return parseAmountString(*val)
	case Cell:
		return parseAmountString(val.Value)
	default:
		return decimal.Zero
	}
}

// ParseAmount is DecimalAmount as a float64.
func ParseAmount(v any) float64 {
	return DecimalAmount(v).InexactFloat64()
}

func parseAmountString(s string) decimal.Decimal {
	d, ok := parseAmountStrict(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// parseAmountStrict strips formatting and reports whether what is left is a number.
func parseAmountStrict(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") ||
		strings.HasPrefix(s, "$(") && strings.HasSuffix(s, ")")
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', ',', ' ', '\u00a0', '(', ')':
			return -1
		}
		return r
	}, s)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		return d.Abs().Neg(), true
	}
	return d, true
}

func isNumeric(s string) bool {
	_, ok := parseAmountStrict(s)
	return ok
}

// Number is a JSON amount that tolerates strings, numbers and null.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(ParseAmount(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// ID is an upstream identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	*id = ID(string(data))
	return nil
}
