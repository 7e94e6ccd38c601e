package export

import (
	"strconv"
	"strings"

	"github.com/chriserin/rulec/internal/parser"
)

// Templater produces the messages of a rule record.
type Templater interface {
	Messages(rule *parser.Rule) []Message
}

// CandidateTemplater renders one message per entry of a rule's candidates
// attribute, up to Max, or a single Fallback message when there are none.
// Templates may use {id}, {n} (1-based) and {candidate}.
type CandidateTemplater struct {
	Max      int
	Weight   int
	Variant  string
	Fallback string
}

// DefaultTemplater returns the stock message templates.
func DefaultTemplater() *CandidateTemplater {
	return &CandidateTemplater{
		Max:      3,
		Weight:   1,
		Variant:  "Mensaje para {id} - Variante {n}",
		Fallback: "Recomendación para {id}",
	}
}

// CandidatesKey is the rule attribute holding message candidates.
const CandidatesKey = "candidates"

func (t *CandidateTemplater) Messages(rule *parser.Rule) []Message {
	var candidates []string
	if v, ok := rule.Attr(CandidatesKey); ok {
		switch v.Kind {
		case parser.KindList:
			candidates = v.List
		case parser.KindString:
			if v.Str != "" {
				candidates = []string{v.Str}
			}
		default:
			candidates = []string{v.String()}
		}
	}

	var msgs []Message
	for i, c := range candidates {
		if t.Max > 0 && i >= t.Max {
			break
		}
		msgs = append(msgs, Message{Text: render(t.Variant, rule.ID, i+1, c), Weight: t.Weight, Active: true})
	}
	if len(msgs) == 0 {
		msgs = append(msgs, Message{Text: render(t.Fallback, rule.ID, 1, ""), Weight: t.Weight, Active: true})
	}
	return msgs
}

func render(tmpl, id string, n int, candidate string) string {
	return strings.NewReplacer(
		"{id}", id,
		"{n}", strconv.Itoa(n),
		"{candidate}", candidate,
	).Replace(tmpl)
}
