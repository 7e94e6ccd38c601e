package parser

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func generateRules(count int) []byte {
	var buf bytes.Buffer
	buf.WriteString("# generated\n")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&buf, "R-%d:\n", i)
		fmt.Fprintf(&buf, "  category: bucket_%d\n", i%7)
		buf.WriteString("  candidates: [\"one\", \"two\", \"three\"]\n")
		buf.WriteString("  when:\n")
		fmt.Fprintf(&buf, "    latency: \"< %d\"\n", 1000+i)
		buf.WriteString("    status: '\"active\"'\n")
		buf.WriteString("    AND:\n")
		fmt.Fprintf(&buf, "      ratio: \">= 0.%d\"\n", i%10)
		buf.WriteString("      errors: \"= 0\"\n\n")
	}
	return buf.Bytes()
}

func BenchmarkCompile(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		content := generateRules(n)
		b.Run(fmt.Sprintf("rules_%d", n), func(b *testing.B) {
			c := NewCompiler(Options{})
			for i := 0; i < b.N; i++ {
				res, err := c.CompileSources(Source{Name: "bench.yaml", Content: content})
				require.NoError(b, err)
				require.Len(b, res.Rules, n)
			}
		})
	}
}

func TestGeneratedRulesCompileCleanly(t *testing.T) {
	res, err := NewCompiler(Options{}).CompileSources(Source{Name: "gen.yaml", Content: generateRules(25)})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	require.Len(t, res.Rules, 25)
	logic, err := Normalize(res.Rules[24].When)
	require.NoError(t, err)
	require.Len(t, logic.All, 4)
}
