package parser

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizeOnly(t *testing.T, content string) Logic {
	t.Helper()
	res := compileText(t, content)
	require.Len(t, res.Rules, 1)
	logic, err := Normalize(res.Rules[0].When)
	require.NoError(t, err)
	return logic
}

func TestNormalize_BareCondition(t *testing.T) {
	logic := normalizeOnly(t, `R-1:
  when:
    latency: "< 2500"
`)
	want := []ConditionRecord{{Var: "latency", Agg: "current", Op: OpLess, Value: IntValue(2500)}}
	if diff := cmp.Diff(want, logic.All); diff != "" {
		t.Errorf("logic mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_AndConditionStripsQuotes(t *testing.T) {
	logic := normalizeOnly(t, `R-1:
  when:
    AND:
      status: '"active"'
`)
	want := []ConditionRecord{{Var: "status", Agg: AggCurrent, Op: OpEqual, Value: StringValue("active")}}
	if diff := cmp.Diff(want, logic.All); diff != "" {
		t.Errorf("logic mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_NoWhenIsEmptyAll(t *testing.T) {
	logic := normalizeOnly(t, "R-1:\n  category: x\n")
	require.NotNil(t, logic.All)
	assert.Empty(t, logic.All)

	b, err := json.Marshal(logic)
	require.NoError(t, err)
	assert.JSONEq(t, `{"all": []}`, string(b))
}

func TestNormalize_PreservesDeclarationOrder(t *testing.T) {
	logic := normalizeOnly(t, `R-1:
  when:
    zeta: 1
    AND:
      beta: "> 2"
      alpha: "<= 3.5"
    gamma: "== \"on\""
    AND2: 5
`)
	var got []string
	for _, c := range logic.All {
		got = append(got, c.Var)
	}
	want := []string{"zeta", "beta", "alpha", "gamma", "AND2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StringValue("on"), logic.All[3].Value)
	assert.Equal(t, FloatValue(3.5), logic.All[2].Value)
}

func TestNormalize_RoundTripKeepsOperatorsAndTypes(t *testing.T) {
	logic := normalizeOnly(t, `R-1:
  when:
    steps: ">= 10000"
    ratio: "< 2.0"
    mood: "= calm"
    sleep: 7.5
    streak: 3
`)
	b, err := json.Marshal(logic)
	require.NoError(t, err)

	var back Logic
	require.NoError(t, json.Unmarshal(b, &back))
	if diff := cmp.Diff(logic, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, FloatValue(2), back.All[1].Value)
	assert.Equal(t, KindInt, back.All[4].Value.Kind)
	assert.Contains(t, string(b), `"value":2.0`)
}

func TestNormalize_UnsupportedGroupKinds(t *testing.T) {
	_, err := Normalize(Group{Kind: GroupOr, Children: []Group{Leaf(Condition{Var: "a", Op: OpEqual, Value: IntValue(1)})}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedGroup))

	_, err = Normalize(And(Group{Kind: GroupNot}))
	assert.True(t, errors.Is(err, ErrUnsupportedGroup))
}

func TestNormalize_DeepAndFlattens(t *testing.T) {
	g := And(
		Leaf(Condition{Var: "a", Op: OpLess, Value: IntValue(1)}),
		And(And(Leaf(Condition{Var: "b", Op: OpGreater, Value: IntValue(2)}))),
	)
	logic, err := Normalize(g)
	require.NoError(t, err)
	require.Len(t, logic.All, 2)
	assert.Equal(t, "b", logic.All[1].Var)
}
