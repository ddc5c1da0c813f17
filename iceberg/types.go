package iceberg

import (
	"strconv"
	"strings"
)

// TypeFlag is a bit-set describing which runtime kinds an argument position
// accepts. Flags exist only for argument validation; a Value carries a Kind,
// never a flag set.
type TypeFlag int

const (
	TypeInt TypeFlag = 1 << iota
	TypeFloat
	TypeBool
	TypeStr
	TypeLabel
)

// TypeAny accepts every kind. Mask bits out to narrow it, e.g. TypeAny^TypeLabel.
const TypeAny = TypeInt | TypeFloat | TypeBool | TypeStr | TypeLabel

func (f TypeFlag) String() string {
	var names []string
	flags := []TypeFlag{TypeInt, TypeFloat, TypeBool, TypeStr, TypeLabel}
	for i, flag := range flags {
		if f&flag != 0 {
			names = append(names, Kind(i).String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Kind is the type tag of a runtime value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindLabel
)

func (k Kind) String() string {
	return []string{
		"int",
		"float",
		"bool",
		"str",
		"label",
	}[k]
}

// Flag returns the TypeFlag bit matching this kind, for mask checks.
func (k Kind) Flag() TypeFlag {
	return []TypeFlag{
		TypeInt,
		TypeFloat,
		TypeBool,
		TypeStr,
		TypeLabel,
	}[k]
}

// Value is a tagged scalar. Exactly one payload field is meaningful, selected
// by Kind; Str doubles as the label name for KindLabel. Values are copied on
// assignment, there is no aliasing.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

func NewInt(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

func NewFloat(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

func NewBool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

func NewString(v string) Value {
	return Value{Kind: KindString, Str: v}
}

func NewLabel(name string) Value {
	return Value{Kind: KindLabel, Str: name}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

func (v Value) asFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// asInt truncates toward zero when the value is a float.
func (v Value) asInt() int64 {
	if v.Kind == KindFloat {
		return int64(v.Float)
	}
	return v.Int
}

func (v Value) truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindBool:
		return v.Bool
	default:
		return v.Str != ""
	}
}

// formatFloat keeps a decimal point in the short form so a stringified float
// still reads as a float literal.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}
