package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stackEntry is one ancestor on the indentation stack. A nil node marks a
// skipped line whose indented body is dropped along with it.
type stackEntry struct {
	depth   int
	node    *Node
	dropped int // 1-based index into Document.dropped, 0 for none
}

// Parse builds the indentation tree of a rule document. A line is a child of
// the closest preceding line with a smaller indentation, whatever the indent
// width. Malformed lines are reported in Document.Diagnostics and skipped.
// The error is ErrUnreadable or ErrEmptyInput; the Document is never nil.
func Parse(name string, content []byte) (*Document, error) {
	doc := &Document{Name: name}

	if !utf8.Valid(content) {
		return doc, fmt.Errorf("%s: %w", name, ErrUnreadable)
	}

	var stack []stackEntry
	seen := 0

	for i, line := range strings.Split(string(content), "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		seen++

		depth := indentation(line)
		for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}

		doc.rule = ""
		if len(stack) > 0 && stack[0].node != nil {
			doc.rule = stack[0].node.Key
		}
		if len(stack) > 0 && stack[0].dropped > 0 {
			doc.dropped[stack[0].dropped-1].hasBody = true
		}

		var parent *Node
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.node == nil {
				stack = append(stack, stackEntry{depth: depth})
				continue
			}
			if !top.node.Section {
				doc.addLine(KindMalformedLine, SeverityError, lineNo,
					fmt.Sprintf("line is indented under the value of %q", top.node.Key))
				stack = append(stack, stackEntry{depth: depth})
				continue
			}
			parent = top.node
		}

		node, ok := doc.parseLine(trimmed, lineNo, depth)
		if !ok {
			entry := stackEntry{depth: depth}
			if parent == nil {
				entry.dropped = doc.drop("", lineNo)
			}
			stack = append(stack, entry)
			continue
		}

		if parent == nil {
			if !node.Section {
				doc.addLine(KindMalformedLine, SeverityError, lineNo,
					fmt.Sprintf("top-level %q has a value; rule headers end with ':'", node.Key))
				stack = append(stack, stackEntry{depth: depth, dropped: doc.drop(node.Key, lineNo)})
				continue
			}
			doc.Nodes = append(doc.Nodes, node)
		} else {
			doc.attach(parent, node)
		}
		stack = append(stack, stackEntry{depth: depth, node: node})
	}

	if seen == 0 {
		return doc, fmt.Errorf("%s: %w", name, ErrEmptyInput)
	}
	return doc, nil
}

// parseLine classifies a trimmed line as a section header (`key:`) or a
// `key: value` scalar.
func (doc *Document) parseLine(trimmed string, lineNo, depth int) (*Node, bool) {
	if strings.HasSuffix(trimmed, ":") && indexUnquoted(trimmed[:len(trimmed)-1], ':') < 0 {
		key := strings.TrimSpace(trimmed[:len(trimmed)-1])
		if key == "" {
			doc.addLine(KindMalformedLine, SeverityError, lineNo, "empty key")
			return nil, false
		}
		return &Node{Key: key, Line: lineNo, Depth: depth, Section: true}, true
	}

	idx := indexUnquoted(trimmed, ':')
	if idx < 0 {
		doc.addLine(KindMalformedLine, SeverityError, lineNo,
			fmt.Sprintf("expected 'key:' or 'key: value', got %q", trimmed))
		return nil, false
	}
	key := strings.TrimSpace(trimmed[:idx])
	if key == "" {
		doc.addLine(KindMalformedLine, SeverityError, lineNo, "empty key")
		return nil, false
	}
	raw := strings.TrimSpace(trimmed[idx+1:])
	value, numericFailed := coerce(raw)
	if numericFailed {
		doc.addLine(KindUnparseableValue, SeverityInfo, lineNo,
			fmt.Sprintf("%q looks numeric but is not a valid number; kept as a string", raw))
	}
	return &Node{Key: key, Line: lineNo, Depth: depth, Raw: raw, Value: value}, true
}

// attach adds node under parent. A repeated key replaces the earlier node in
// its original position.
func (doc *Document) attach(parent, node *Node) {
	for i, c := range parent.Children {
		if c.Key == node.Key {
			doc.addLine(KindDuplicateKey, SeverityWarning, node.Line,
				fmt.Sprintf("%q repeats line %d under %q; the later one is used", node.Key, c.Line, parent.Key))
			parent.Children[i] = node
			return
		}
	}
	parent.Children = append(parent.Children, node)
}

// drop records a malformed top-level line and returns its stack marker.
func (doc *Document) drop(key string, line int) int {
	doc.dropped = append(doc.dropped, droppedHeader{key: key, line: line})
	return len(doc.dropped)
}

func (doc *Document) addLine(kind Kind, sev Severity, line int, msg string) {
	doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
		Kind:     kind,
		Severity: sev,
		Document: doc.Name,
		Line:     line,
		RuleID:   doc.rule,
		Message:  msg,
	})
}

// indentation counts leading whitespace characters.
func indentation(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

// indexUnquoted returns the index of the first c outside single or double
// quotes, or -1.
func indexUnquoted(s string, c byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case quote != 0:
			if b == '\\' && quote == '"' {
				i++
			} else if b == quote {
				quote = 0
			}
		case b == '"' || b == '\'':
			quote = b
		case b == c:
			return i
		}
	}
	return -1
}
