package param

import (
	"github.com/shopspring/decimal"
)

// Kind tags the representation of a candidate value.
type Kind int

const (
	// KindText is a plain string emitted verbatim. The empty text is a bare flag.
	KindText Kind = iota
	// KindNumber is a numeric candidate.
	KindNumber
	// KindQuoted is a pre-escaped composite such as `"-np 4"`. It is stored
	// without its outer quotes and always travels as a single argument.
	KindQuoted
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindQuoted:
		return "quoted"
	default:
		return "text"
	}
}

// Value is a single candidate value of a parameter.
type Value struct {
	kind Kind
	text string
	num  decimal.Decimal
}

// Text returns a plain text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Quoted returns a pre-escaped composite value. s must not include the
// surrounding quote characters.
func Quoted(s string) Value {
	return Value{kind: KindQuoted, text: s}
}

// Number returns a numeric value rendered in canonical decimal form.
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, text: d.String(), num: d}
}

// Int returns a numeric value for n.
func Int(n int) Value {
	return Number(decimal.NewFromInt(int64(n)))
}

// NumberLiteral returns a numeric value that keeps the literal spelling of
// lit when rendered. It fails if lit is not a number.
func NumberLiteral(lit string) (Value, error) {
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, text: lit, num: d}, nil
}

// ParseValue infers the kind of a textual candidate. A value wrapped in
// matching single or double quotes is Quoted, a value whose canonical decimal
// form equals its spelling is a Number, anything else is Text.
func ParseValue(s string) Value {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return Quoted(s[1 : len(s)-1])
	}
	if d, err := decimal.NewFromString(s); err == nil && d.String() == s {
		return Number(d)
	}
	return Text(s)
}

// Kind reports the value's tag.
func (v Value) Kind() Kind { return v.kind }

// String returns the value as it is passed to a child process.
func (v Value) String() string { return v.text }

// Decimal returns the numeric value and whether v is a number.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindNumber {
		return decimal.Zero, false
	}
	return v.num, true
}

// IsBareFlag reports whether the value is the empty text, which makes the
// option name stand alone on the command line.
func (v Value) IsBareFlag() bool {
	return v.kind == KindText && v.text == ""
}

// Equal reports whether two values have the same kind and spelling.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.text == o.text
}
