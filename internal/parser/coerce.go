package parser

import (
	"strconv"
	"strings"
)

// CoerceValue converts a raw token into a typed scalar. It never fails: a
// token that is not quoted, a list or a number is returned as a string.
func CoerceValue(raw string) Value {
	v, _ := coerce(raw)
	return v
}

// coerce also reports whether a token that looks numeric failed to parse as
// one, so callers can surface an UnparseableValue diagnostic.
func coerce(raw string) (Value, bool) {
	s := strings.TrimSpace(raw)

	if inner, ok := unquote(s); ok {
		return StringValue(inner), false
	}

	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		items := []string{}
		for _, item := range strings.Split(s[1:len(s)-1], ",") {
			item = strings.TrimSpace(item)
			if inner, ok := unquote(item); ok {
				item = inner
			}
			if item != "" {
				items = append(items, item)
			}
		}
		return ListValue(items), false
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f), false
		}
	} else if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i), false
	}

	return StringValue(s), looksNumeric(s)
}

// unquote strips one matching pair of double or single quotes. Inside double
// quotes, \" and \\ are unescaped.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return s, false
	}
	inner := s[1 : len(s)-1]
	if q == '"' && strings.Contains(inner, `\`) {
		inner = strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(inner)
	}
	return inner, true
}

// looksNumeric reports whether s starts like a number: an optional sign
// followed by a digit, or by a '.' and a digit.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[0] == '.' {
		return len(s) > 1 && isDigit(s[1])
	}
	return isDigit(s[0])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
