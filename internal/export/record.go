package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chriserin/rulec/internal/parser"
)

// Record is the exported form of a compiled rule, as consumed by the rule
// evaluation UI.
type Record struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenantId"`
	Category     string       `json:"category"`
	Priority     int          `json:"priority"`
	Severity     int          `json:"severity"`
	CooldownDays int          `json:"cooldownDays"`
	MaxPerDay    int          `json:"maxPerDay"`
	Enabled      bool         `json:"enabled"`
	Tags         []string     `json:"tags"`
	Logic        parser.Logic `json:"logic"`
	Locale       string       `json:"locale"`
	Messages     []Message    `json:"messages"`
}

// Message is one candidate text shown when a rule fires.
type Message struct {
	Text   string `json:"text"`
	Weight int    `json:"weight"`
	Active bool   `json:"active"`
}

// Defaults fill record fields a rule does not set itself.
type Defaults struct {
	TenantID     string
	Category     string
	Priority     int
	Severity     int
	CooldownDays int
	MaxPerDay    int
	Enabled      bool
	Locale       string
}

// StandardDefaults returns the values used when no configuration overrides them.
func StandardDefaults() Defaults {
	return Defaults{
		TenantID: "default",
		Category: "general",
		Priority: 50,
		Severity: 1,
		Enabled:  true,
		Locale:   "es-ES",
	}
}

// Build turns a compiled rule into a Record. Known attributes override the
// defaults; a wrongly typed one is reported and the default kept.
func Build(rule *parser.Rule, d Defaults, t Templater) (Record, []parser.Diagnostic, error) {
	logic, err := parser.Normalize(rule.When)
	if err != nil {
		return Record{}, nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	rec := Record{
		ID:           rule.ID,
		TenantID:     d.TenantID,
		Category:     d.Category,
		Priority:     d.Priority,
		Severity:     d.Severity,
		CooldownDays: d.CooldownDays,
		MaxPerDay:    d.MaxPerDay,
		Enabled:      d.Enabled,
		Tags:         []string{},
		Logic:        logic,
		Locale:       d.Locale,
	}

	o := overrider{rule: rule}
	o.str(&rec.TenantID, "tenant_id", "tenantId")
	o.str(&rec.Category, "category")
	o.int(&rec.Priority, "priority")
	o.int(&rec.Severity, "severity")
	o.int(&rec.CooldownDays, "cooldown_days", "cooldownDays")
	o.int(&rec.MaxPerDay, "max_per_day", "maxPerDay")
	o.bool(&rec.Enabled, "enabled")
	o.list(&rec.Tags, "tags")
	o.str(&rec.Locale, "locale")

	rec.Messages = t.Messages(rule)
	return rec, o.diags, nil
}

// BuildAll builds records for every rule of a compile result, in order.
func BuildAll(res *parser.Result, d Defaults, t Templater) ([]Record, []parser.Diagnostic, error) {
	records := make([]Record, 0, len(res.Rules))
	var diags []parser.Diagnostic
	for i := range res.Rules {
		rec, ds, err := Build(&res.Rules[i], d, t)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		diags = append(diags, ds...)
	}
	return records, diags, nil
}

type overrider struct {
	rule  *parser.Rule
	diags []parser.Diagnostic
}

func (o *overrider) lookup(keys ...string) (parser.Attribute, bool) {
	for _, a := range o.rule.Attributes {
		for _, k := range keys {
			if a.Key == k {
				return a, true
			}
		}
	}
	return parser.Attribute{}, false
}

func (o *overrider) invalid(a parser.Attribute, want string) {
	o.diags = append(o.diags, parser.Diagnostic{
		Kind:     parser.KindInvalidAttribute,
		Severity: parser.SeverityWarning,
		Document: o.rule.Document,
		Line:     a.Line,
		RuleID:   o.rule.ID,
		Message:  fmt.Sprintf("%q must be %s, got %s %q; default used", a.Key, want, a.Value.Kind, a.Value.String()),
	})
}

func (o *overrider) str(dst *string, keys ...string) {
	a, ok := o.lookup(keys...)
	if !ok {
		return
	}
	if a.Value.Kind == parser.KindList {
		o.invalid(a, "a single value")
		return
	}
	*dst = a.Value.String()
}

func (o *overrider) int(dst *int, keys ...string) {
	a, ok := o.lookup(keys...)
	if !ok {
		return
	}
	if a.Value.Kind != parser.KindInt {
		o.invalid(a, "an integer")
		return
	}
	*dst = int(a.Value.Int)
}

func (o *overrider) bool(dst *bool, keys ...string) {
	a, ok := o.lookup(keys...)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(a.Value.String()))
	if a.Value.Kind != parser.KindString || err != nil {
		o.invalid(a, "true or false")
		return
	}
	*dst = b
}

func (o *overrider) list(dst *[]string, keys ...string) {
	a, ok := o.lookup(keys...)
	if !ok {
		return
	}
	switch a.Value.Kind {
	case parser.KindList:
		*dst = append([]string{}, a.Value.List...)
	case parser.KindString:
		if a.Value.Str != "" {
			*dst = []string{a.Value.Str}
		}
	default:
		o.invalid(a, "a list")
	}
}
