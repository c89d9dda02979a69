package ethereal

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereal-ir/evmla/core/evmla/assembly"
)

// DOT renders the block graph in Graphviz format. Jump edges are solid,
// fall-through edges dashed.
func (g *Graph) DOT(title string) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "digraph EVMLA {")
	fmt.Fprintln(w, "  rankdir=TB;")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	if title != "" {
		fmt.Fprintf(w, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(title))
	}
	blocks := g.Blocks(DeclarationOrder)
	for _, b := range blocks {
		first, last := "", ""
		if n := len(b.Elements); n > 0 {
			first = b.Elements[0].Instruction.Name.String()
			last = b.Elements[n-1].Instruction.Name.String()
		}
		label := fmt.Sprintf("block_%s\\nelements=%d stack=%d\\nfirst:%s\\nlast:%s",
			b.Ref(), len(b.Elements), b.Stack.Len(), first, last)
		fmt.Fprintf(w, "  %s [label=\"%s\"];\n", dotNode(b), escapeDOT(label))
	}
	for _, b := range blocks {
		for i := range b.Elements {
			if target := b.Elements[i].target; target != nil {
				if succ, ok := g.Lookup(*target); ok {
					fmt.Fprintf(w, "  %s -> %s;\n", dotNode(b), dotNode(succ))
				}
			}
		}
		if b.next != nil {
			if succ, ok := g.Lookup(*b.next); ok {
				style := "dashed"
				if b.endsWith(assembly.JUMPI) {
					style = "dotted"
				}
				fmt.Fprintf(w, "  %s -> %s [style=%s];\n", dotNode(b), dotNode(succ), style)
			}
		}
	}
	fmt.Fprintln(w, "}")
	w.Flush()
	return buf.Bytes()
}

func dotNode(b *Block) string {
	return fmt.Sprintf("n_%s_%s_%d", b.Key.CodeType, b.Key.Tag.Dec(), max(b.instance, 0))
}

func escapeDOT(s string) string {
	// Backslash sequences such as \n are left for Graphviz.
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Stats summarises a graph for reporting.
type Stats struct {
	Region      string
	Templates   int
	Instances   int
	Elements    int
	Edges       int
	Folded      int
	ExtraHashes int
	MaxStack    int
}

// Stats returns one summary per region.
func (g *Graph) Stats() []Stats {
	out := make([]Stats, 0, len(g.regions))
	for _, r := range g.regions {
		s := Stats{Region: r.CodeType.String(), Templates: len(r.blocks)}
		for _, b := range r.Instances() {
			s.Instances++
			s.Elements += len(b.Elements)
			s.Edges += len(b.Successors())
			s.ExtraHashes += len(b.ExtraHashes)
			s.MaxStack = max(s.MaxStack, b.InitialStack.Len(), b.Stack.Len())
			for i := range b.Elements {
				if b.Elements[i].folded {
					s.Folded++
				}
				s.MaxStack = max(s.MaxStack, b.Elements[i].stack.Len())
			}
		}
		out = append(out, s)
	}
	return out
}
