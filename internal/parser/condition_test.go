package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		text  string
		op    Operator
		value Value
	}{
		{"< 2500", OpLess, IntValue(2500)},
		{"<2500", OpLess, IntValue(2500)},
		{"<= 10", OpLessEqual, IntValue(10)},
		{"> 0.5", OpGreater, FloatValue(0.5)},
		{">= 3", OpGreaterEqual, IntValue(3)},
		{`== "active"`, OpEqual, StringValue("active")},
		{"= active", OpEqual, StringValue("active")},
		{"=5", OpEqual, IntValue(5)},
		{"active", OpEqual, StringValue("active")},
		{"42", OpEqual, IntValue(42)},
		{`"active"`, OpEqual, StringValue("active")},
		{"  >=   7  ", OpGreaterEqual, IntValue(7)},
		{"<", OpEqual, StringValue("<")},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			op, value := ParseCondition(tt.text)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseCondition_SingleAndDoubleEqualsNormalizeAlike(t *testing.T) {
	op1, v1 := ParseCondition("= 3")
	op2, v2 := ParseCondition("== 3")
	assert.Equal(t, op1, op2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, OpEqual, op1)
}

func TestParseCondition_OperatorSet(t *testing.T) {
	valid := map[Operator]bool{OpGreaterEqual: true, OpLessEqual: true, OpGreater: true, OpLess: true, OpEqual: true}
	for _, text := range []string{">= 1", "<= x", "> 1.5", "< -2", "== y", "= z", "plain", "=== 3", "<< 2"} {
		op, _ := ParseCondition(text)
		assert.True(t, valid[op], "%q gave %q", text, op)
		assert.NotEqual(t, Operator("="), op)
	}
}

func TestHasUnsupportedOperator(t *testing.T) {
	op, bad := hasUnsupportedOperator("!= 3")
	assert.True(t, bad)
	assert.Equal(t, "!=", op)

	_, bad = hasUnsupportedOperator(">= 3")
	assert.False(t, bad)
}
