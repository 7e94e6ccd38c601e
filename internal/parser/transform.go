package parser

import (
	"errors"
	"fmt"
)

// AggCurrent is the only aggregation window today. The field is emitted on
// every condition so rolling aggregations can be added without a format change.
const AggCurrent = "current"

// ErrUnsupportedGroup is returned when a Group holds a kind the export shape
// cannot represent yet.
var ErrUnsupportedGroup = errors.New("unsupported condition group")

// Logic is the canonical export shape of a rule's conditions.
type Logic struct {
	All []ConditionRecord `json:"all"`
}

// ConditionRecord is one exported condition.
type ConditionRecord struct {
	Var   string   `json:"var"`
	Agg   string   `json:"agg"`
	Op    Operator `json:"op"`
	Value Value    `json:"value"`
}

// Normalize flattens a conjunction into Logic, keeping declaration order. A
// nested AND contributes its leaves where it was declared. An empty group
// yields an empty, non-nil All.
func Normalize(g Group) (Logic, error) {
	logic := Logic{All: []ConditionRecord{}}
	if err := flatten(g, &logic.All); err != nil {
		return Logic{}, err
	}
	return logic, nil
}

func flatten(g Group, out *[]ConditionRecord) error {
	switch g.Kind {
	case GroupLeaf:
		if g.Condition == nil {
			return nil
		}
		c := g.Condition
		*out = append(*out, ConditionRecord{Var: c.Var, Agg: AggCurrent, Op: c.Op, Value: c.Value})
	case GroupAnd, "":
		for _, child := range g.Children {
			if err := flatten(child, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedGroup, g.Kind)
	}
	return nil
}
