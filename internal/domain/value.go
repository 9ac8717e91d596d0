package domain

import (
	"strconv"
	"strings"
)

// ValueKind identifies which member of a Value is populated.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindBool
	KindFloat
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

// Value is a tagged union of the scalar types narrative state can hold.
// The zero Value has KindNone.
type Value struct {
	kind ValueKind
	b    bool
	f    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Float returns a numeric Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports the populated member.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v holds nothing.
func (v Value) IsZero() bool { return v.kind == KindNone }

// AsFloat converts v to a number. Strings are parsed; bools are not numbers.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsBool converts v to a truth value. Numbers are true when non-zero and
// strings are parsed with strconv.ParseBool.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindFloat:
		return v.f != 0, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// String renders v the way it is compared against authored target strings.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// ParseValue infers a Value from authored text: booleans and numbers are
// recognised, everything else stays a string.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Float(f)
	}
	return String(raw)
}

// FormatScore prints whole numbers with one decimal ("70.0") and keeps the
// shortest exact form otherwise ("0.25").
func FormatScore(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
