package parser

import (
	"errors"
	"fmt"
)

// Hard failures. Everything else is reported as a Diagnostic.
var (
	ErrEmptyInput = errors.New("input contains no rule definitions")
	ErrUnreadable = errors.New("input is not valid UTF-8 text")
)

// Kind classifies a Diagnostic.
type Kind string

const (
	KindMalformedLine      Kind = "MalformedLine"
	KindUnsupportedNesting Kind = "UnsupportedNesting"
	KindDuplicateRuleID    Kind = "DuplicateRuleId"
	KindUnparseableValue   Kind = "UnparseableValue"
	KindDuplicateKey       Kind = "DuplicateKey"
	KindMalformedRule      Kind = "MalformedRule"
	KindUnsupportedGroup   Kind = "UnsupportedGroup"
	KindUnsupportedValue   Kind = "UnsupportedValue"
	KindInvalidAttribute   Kind = "InvalidAttribute"
	KindUnreadableDocument Kind = "UnreadableDocument"
)

// Severity ranks a Diagnostic. SeverityError means some input was skipped.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a non-fatal report attached to a document line and, when
// known, the rule it belongs to.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Document string
	Line     int // 1-based, 0 when not tied to a line
	RuleID   string
	Message  string
}

func (d Diagnostic) String() string {
	loc := d.Document
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.Document, d.Line)
	}
	if d.RuleID != "" {
		return fmt.Sprintf("%s: %s [%s] %s: %s", loc, d.Severity, d.Kind, d.RuleID, d.Message)
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, d.Severity, d.Kind, d.Message)
}
