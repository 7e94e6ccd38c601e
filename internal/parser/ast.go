package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Layer 1: indentation tree

// Document is the parsed form of one rule source.
type Document struct {
	Name        string
	Nodes       []*Node // top-level sections, in source order
	Diagnostics []Diagnostic

	rule    string          // enclosing top-level key while parsing
	dropped []droppedHeader // malformed top-level lines
}

// droppedHeader is a top-level line that could not start a section. With an
// indented body it was meant as a rule header.
type droppedHeader struct {
	key     string
	line    int
	hasBody bool
}

// Node is a Section (Children, no Value) or a Scalar (Value, no Children).
type Node struct {
	Key      string
	Line     int // 1-based
	Depth    int
	Section  bool
	Raw      string // value text as written, scalars only
	Value    Value
	Children []*Node
}

// Child returns the direct child with the given key, or nil.
func (n *Node) Child(key string) *Node {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// ValueKind is the type of a coerced scalar.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	default:
		return "string"
	}
}

// Value is a typed scalar: an integer, float, string or ordered list of strings.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	List  []string
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func ListValue(l []string) Value { return Value{Kind: KindList, List: l} }

// Interface returns the value as a plain Go value (int64, float64, string or []string).
func (v Value) Interface() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindList:
		return v.List
	default:
		return v.Str
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float)
	case KindList:
		return "[" + strings.Join(v.List, ", ") + "]"
	default:
		return v.Str
	}
}

// formatFloat always keeps a decimal point so a float never reads back as an integer.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		return []byte(formatFloat(v.Float)), nil
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return marshalUnescaped(v.List)
	default:
		return marshalUnescaped(v.Str)
	}
}

func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads numbers with a '.' or exponent as floats and all other numbers as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var l []string
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		*v = ListValue(l)
	default:
		text := string(data)
		if strings.ContainsAny(text, ".eE") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return fmt.Errorf("invalid float value %s: %w", text, err)
			}
			*v = FloatValue(f)
			return nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %s: %w", text, err)
		}
		*v = IntValue(i)
	}
	return nil
}

// Layer 2: compiled rules

// Operator is a comparison operator. The source synonym "=" never appears here.
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpEqual        Operator = "=="
)

// Condition is a single comparison of a named variable against a typed value.
type Condition struct {
	Var   string
	Op    Operator
	Value Value
	Line  int
}

// GroupKind discriminates Group. Only GroupAnd and GroupLeaf are produced by
// the current grammar.
type GroupKind string

const (
	GroupAnd  GroupKind = "and"
	GroupOr   GroupKind = "or"
	GroupNot  GroupKind = "not"
	GroupLeaf GroupKind = "leaf"
)

// Group is a boolean combination of conditions. A leaf carries Condition;
// and/or hold Children; not holds exactly one child.
type Group struct {
	Kind      GroupKind
	Children  []Group
	Condition *Condition
}

// And returns a conjunction of the given groups.
func And(children ...Group) Group {
	return Group{Kind: GroupAnd, Children: children}
}

// Leaf wraps a single condition.
func Leaf(c Condition) Group {
	return Group{Kind: GroupLeaf, Condition: &c}
}

// Empty reports whether the group holds no conditions at any depth. An empty
// conjunction matches vacuously: consumers must treat it as always true.
func (g Group) Empty() bool {
	if g.Kind == GroupLeaf {
		return g.Condition == nil
	}
	for _, c := range g.Children {
		if !c.Empty() {
			return false
		}
	}
	return true
}

// Attribute is a scalar field declared directly under a rule header.
type Attribute struct {
	Key   string
	Value Value
	Line  int
}

// Rule is a compiled rule. Records are not modified after compilation.
type Rule struct {
	ID         string
	Document   string
	Line       int
	Attributes []Attribute
	When       Group
}

// Attr returns the attribute with the given key.
func (r *Rule) Attr(key string) (Value, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}
