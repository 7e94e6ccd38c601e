package parser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// Keys with meaning inside a rule body.
const (
	WhenKey = "when"
	AndKey  = "AND"
)

// Group keywords the grammar reserves but does not support yet.
var reservedGroups = []string{"OR", "NOT", "ANY", "ALL", "NONE"}

// Options configures a Compiler.
type Options struct {
	// RulePattern, when set, restricts rules to top-level sections whose key
	// matches. Without it every top-level section with a body is a rule.
	RulePattern *regexp.Regexp
	// Logger receives duplicate and skip warnings. Nil discards.
	Logger *slog.Logger
}

// Compiler turns parsed documents into Rules. It keeps no state between
// calls and is safe for concurrent use.
type Compiler struct {
	pattern *regexp.Regexp
	logger  *slog.Logger
}

// NewCompiler creates a Compiler.
func NewCompiler(opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Compiler{pattern: opts.RulePattern, logger: logger}
}

// Source is one rule document's name and content.
type Source struct {
	Name    string
	Content []byte
}

// Parsed is the outcome of parsing one Source.
type Parsed struct {
	Doc *Document
	Err error
}

// ParseSource parses a single source.
func ParseSource(src Source) Parsed {
	doc, err := Parse(src.Name, src.Content)
	return Parsed{Doc: doc, Err: err}
}

// Status summarizes a Result.
type Status int

const (
	// StatusOK means at least one rule compiled.
	StatusOK Status = iota
	// StatusNoRules means the input held no rule candidates at all.
	StatusNoRules
	// StatusAllSkipped means rule candidates existed but every one was skipped.
	StatusAllSkipped
)

func (s Status) String() string {
	switch s {
	case StatusNoRules:
		return "no rules"
	case StatusAllSkipped:
		return "all rules skipped"
	default:
		return "ok"
	}
}

// Result holds the compiled rules in first-declaration order and every
// diagnostic in input order.
type Result struct {
	Rules       []Rule
	Diagnostics []Diagnostic
	Candidates  int // rule headers seen, including duplicates and skipped ones
	Skipped     int
}

// Status reports whether rules compiled, none existed, or all were skipped.
func (r *Result) Status() Status {
	switch {
	case len(r.Rules) > 0:
		return StatusOK
	case r.Candidates == 0:
		return StatusNoRules
	default:
		return StatusAllSkipped
	}
}

// HasErrors reports whether any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Rule returns the compiled rule with the given id.
func (r *Result) Rule(id string) (*Rule, bool) {
	for i := range r.Rules {
		if r.Rules[i].ID == id {
			return &r.Rules[i], true
		}
	}
	return nil, false
}

// CompileSources parses and compiles sources in order. It fails only when
// no source could be parsed at all; an empty or unreadable source among
// readable ones becomes an UnreadableDocument diagnostic.
func (c *Compiler) CompileSources(sources ...Source) (*Result, error) {
	parsed := make([]Parsed, len(sources))
	for i, src := range sources {
		parsed[i] = ParseSource(src)
	}
	return c.CompileParsed(parsed...)
}

// CompileParsed compiles already-parsed documents in order. Rule ids are
// unique across documents: a later rule with a colliding id replaces the
// earlier one (last write wins) but keeps its position, and a
// DuplicateRuleId warning is recorded.
func (c *Compiler) CompileParsed(parsed ...Parsed) (*Result, error) {
	if len(parsed) == 0 {
		return nil, ErrEmptyInput
	}

	res := &Result{}
	var failures []error
	for _, p := range parsed {
		if p.Err != nil {
			failures = append(failures, p.Err)
			name := ""
			if p.Doc != nil {
				name = p.Doc.Name
			}
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:     KindUnreadableDocument,
				Severity: SeverityError,
				Document: name,
				Message:  p.Err.Error(),
			})
			continue
		}
		c.compileDocument(p.Doc, res)
	}

	if len(failures) == len(parsed) {
		return nil, errors.Join(failures...)
	}

	c.logger.Debug("compiled rules",
		"documents", len(parsed),
		"rules", len(res.Rules),
		"skipped", res.Skipped,
		"diagnostics", len(res.Diagnostics),
	)
	return res, nil
}

// compileDocument appends one document's rules and diagnostics to res.
func (c *Compiler) compileDocument(doc *Document, res *Result) {
	res.Diagnostics = append(res.Diagnostics, doc.Diagnostics...)

	index := make(map[string]int, len(res.Rules))
	for i, r := range res.Rules {
		index[r.ID] = i
	}

	for _, h := range doc.dropped {
		if c.pattern != nil && !c.pattern.MatchString(h.key) {
			continue
		}
		if c.pattern == nil && !h.hasBody {
			continue
		}
		res.Candidates++
		res.Skipped++
		c.logger.Warn("rule skipped", "rule", h.key, "document", doc.Name, "line", h.line)
	}

	for _, node := range doc.Nodes {
		if c.pattern != nil && !c.pattern.MatchString(node.Key) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:     KindMalformedRule,
				Severity: SeverityInfo,
				Document: doc.Name,
				Line:     node.Line,
				Message:  fmt.Sprintf("section %q does not match the rule pattern; ignored", node.Key),
			})
			continue
		}
		res.Candidates++

		rc := ruleCompiler{doc: doc, node: node}
		rule, ok := rc.compile()
		res.Diagnostics = append(res.Diagnostics, rc.diags...)
		if !ok {
			res.Skipped++
			c.logger.Warn("rule skipped", "rule", node.Key, "document", doc.Name, "line", node.Line)
			continue
		}

		if i, dup := index[rule.ID]; dup {
			prev := res.Rules[i]
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:     KindDuplicateRuleID,
				Severity: SeverityWarning,
				Document: doc.Name,
				Line:     rule.Line,
				RuleID:   rule.ID,
				Message:  fmt.Sprintf("replaces the definition at %s:%d", prev.Document, prev.Line),
			})
			c.logger.Warn("duplicate rule id; last definition wins",
				"rule", rule.ID,
				"previous", fmt.Sprintf("%s:%d", prev.Document, prev.Line),
				"current", fmt.Sprintf("%s:%d", doc.Name, rule.Line),
			)
			res.Rules[i] = rule
			continue
		}
		index[rule.ID] = len(res.Rules)
		res.Rules = append(res.Rules, rule)
	}
}

// ruleCompiler compiles one rule node, collecting its diagnostics.
type ruleCompiler struct {
	doc    *Document
	node   *Node
	diags  []Diagnostic
	failed bool
}

func (rc *ruleCompiler) report(kind Kind, sev Severity, line int, format string, args ...any) {
	if sev == SeverityError {
		rc.failed = true
	}
	rc.diags = append(rc.diags, Diagnostic{
		Kind:     kind,
		Severity: sev,
		Document: rc.doc.Name,
		Line:     line,
		RuleID:   rc.node.Key,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (rc *ruleCompiler) compile() (Rule, bool) {
	node := rc.node
	rule := Rule{
		ID:       node.Key,
		Document: rc.doc.Name,
		Line:     node.Line,
		When:     And(),
	}

	if len(node.Children) == 0 {
		rc.report(KindMalformedRule, SeverityError, node.Line, "rule header has no body")
		return rule, false
	}

	for _, child := range node.Children {
		switch {
		case child.Key == WhenKey && child.Section:
			rule.When = rc.compileWhen(child)
		case child.Key == WhenKey:
			rc.report(KindMalformedRule, SeverityError, child.Line, "%q must be an indented block, got %q", WhenKey, child.Raw)
		case child.Section:
			rc.report(KindMalformedRule, SeverityWarning, child.Line, "nested block %q is not a rule attribute; ignored", child.Key)
		default:
			rule.Attributes = append(rule.Attributes, Attribute{Key: child.Key, Value: child.Value, Line: child.Line})
		}
	}

	return rule, !rc.failed
}

// compileWhen builds the conjunction of a when block. Scalars are leaf
// conditions; an AND block contributes its own scalars, nested one level.
func (rc *ruleCompiler) compileWhen(when *Node) Group {
	var children []Group
	for _, child := range when.Children {
		if !child.Section {
			if cond, ok := rc.condition(child); ok {
				children = append(children, Leaf(cond))
			}
			continue
		}
		switch {
		case strings.EqualFold(child.Key, AndKey):
			children = append(children, rc.compileAnd(child))
		case isReservedGroup(child.Key):
			rc.report(KindUnsupportedGroup, SeverityError, child.Line, "%q groups are not supported; only %s", child.Key, AndKey)
		case len(child.Children) == 0:
			rc.report(KindMalformedRule, SeverityError, child.Line, "condition %q has no value", child.Key)
		default:
			rc.report(KindMalformedRule, SeverityError, child.Line, "condition %q must be a single value, not a block", child.Key)
		}
	}
	return And(children...)
}

func (rc *ruleCompiler) compileAnd(and *Node) Group {
	var children []Group
	for _, child := range and.Children {
		if !child.Section {
			if cond, ok := rc.condition(child); ok {
				children = append(children, Leaf(cond))
			}
			continue
		}
		if strings.EqualFold(child.Key, AndKey) || isReservedGroup(child.Key) {
			rc.report(KindUnsupportedNesting, SeverityError, child.Line, "%q nested inside %s; only one level of %s is supported", child.Key, and.Key, AndKey)
			continue
		}
		rc.report(KindMalformedRule, SeverityError, child.Line, "%s block entry %q must be a condition value", AndKey, child.Key)
	}
	return And(children...)
}

// condition turns a scalar into a leaf Condition. The operator is parsed from
// the first-level coerced text, so `"< 2500"` yields < and the integer 2500.
func (rc *ruleCompiler) condition(n *Node) (Condition, bool) {
	var text string
	switch n.Value.Kind {
	case KindList:
		rc.report(KindUnsupportedValue, SeverityError, n.Line, "condition %q has a list value; list-valued conditions are not supported", n.Key)
		return Condition{}, false
	case KindString:
		text = n.Value.Str
	default:
		text = n.Raw
	}

	op, operand := splitOperator(text)
	if foreign, ok := hasUnsupportedOperator(text); ok {
		rc.report(KindUnparseableValue, SeverityWarning, n.Line, "condition %q: operator %q is not supported; compared with %s against %q", n.Key, foreign, op, operand)
	} else if op == OpEqual && operand == strings.TrimSpace(text) && strings.IndexAny(operand, "<>=") == 0 {
		rc.report(KindUnparseableValue, SeverityWarning, n.Line, "condition %q: operator without operand; compared as the literal %q", n.Key, operand)
	}

	value, numericFailed := coerce(operand)
	if value.Kind == KindList {
		rc.report(KindUnsupportedValue, SeverityError, n.Line, "condition %q has a list value; list-valued conditions are not supported", n.Key)
		return Condition{}, false
	}
	if numericFailed {
		rc.report(KindUnparseableValue, SeverityInfo, n.Line, "condition %q: %q looks numeric but is not a valid number; compared as a string", n.Key, operand)
	}
	return Condition{Var: n.Key, Op: op, Value: value, Line: n.Line}, true
}

func isReservedGroup(key string) bool {
	for _, g := range reservedGroups {
		if strings.EqualFold(key, g) {
			return true
		}
	}
	return false
}
