package parser

import "strings"

// Longer operators first: "<=" and ">=" share a prefix with "<" and ">".
var operatorPrefixes = []struct {
	prefix string
	op     Operator
}{
	{">=", OpGreaterEqual},
	{"<=", OpLessEqual},
	{">", OpGreater},
	{"<", OpLess},
	{"==", OpEqual},
	{"=", OpEqual},
}

// ParseCondition splits condition text such as `< 2500`, `== "active"` or a
// bare `active` into an operator and a coerced value. Text without an
// operator prefix compares with ==.
func ParseCondition(text string) (Operator, Value) {
	op, operand := splitOperator(text)
	return op, CoerceValue(operand)
}

// splitOperator extracts the operator prefix and the operand text. An
// operator with nothing after it is not treated as an operator.
func splitOperator(text string) (Operator, string) {
	s := strings.TrimSpace(text)
	for _, p := range operatorPrefixes {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		if operand := strings.TrimSpace(s[len(p.prefix):]); operand != "" {
			return p.op, operand
		}
		break
	}
	return OpEqual, s
}

// hasUnsupportedOperator reports operator-like prefixes outside the
// supported set. They still compile through splitOperator, so `=> 5` is an
// equality against "> 5" and `!= 4` an equality against "!= 4".
func hasUnsupportedOperator(text string) (string, bool) {
	s := strings.TrimSpace(text)
	for _, p := range []string{"!=", "<>", "=>", "=<", "=~"} {
		if strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}
