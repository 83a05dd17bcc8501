package css

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
)

// Printer writes rule trees in a canonical layout: one selector per rule,
// one declaration per line, nested rules indented.
type Printer struct {
	// Indent is the string used for each nesting level. Defaults to two spaces.
	Indent string
}

// Print writes n to w.
func (p *Printer) Print(w io.Writer, n ast.Node) error {
	bw := bufio.NewWriter(w)
	pw := &printer{w: bw, indent: p.Indent}
	if pw.indent == "" {
		pw.indent = "  "
	}
	pw.node(n, 0)
	if pw.err != nil {
		return pw.err
	}
	return bw.Flush()
}

// printer holds the state of a single Print call. The first write error
// stops all further output.
type printer struct {
	w      *bufio.Writer
	indent string
	err    error
}

func (p *printer) write(depth int, s ...string) {
	if p.err != nil {
		return
	}
	if depth > 0 {
		_, p.err = p.w.WriteString(strings.Repeat(p.indent, depth))
	}
	for _, v := range s {
		if p.err == nil {
			_, p.err = p.w.WriteString(v)
		}
	}
}

func (p *printer) node(n ast.Node, depth int) {
	switch n := n.(type) {
	case *ast.StyleSheet:
		if n == nil {
			return
		}
		p.rules(n.Rules, depth)
		p.opaque(n.Opaque, len(n.Rules) > 0, depth)

	case ast.Rules:
		p.rules(n, depth)

	case *ast.RuleNode:
		if n == nil {
			return
		}
		if n.AtRule != nil {
			p.write(depth, n.AtRule.String(), " {\n")
		} else {
			p.write(depth, n.Selector.String(), " {\n")
		}
		p.declarations(n.Declarations, depth+1)
		if len(n.Declarations) > 0 && len(n.Children) > 0 {
			p.write(0, "\n")
		}
		p.rules(n.Children, depth+1)
		p.opaque(n.Opaque, len(n.Declarations)+len(n.Children) > 0, depth+1)
		p.write(depth, "}\n")

	case ast.Declarations:
		p.declarations(n, depth)

	case *ast.Declaration:
		if n == nil {
			return
		}
		p.write(depth, n.String(), "\n")

	case nil:
		return

	default:
		// Selectors and atoms print on one line.
		p.write(depth, n.String())
	}
}

func (p *printer) rules(a ast.Rules, depth int) {
	for i, r := range a {
		if i > 0 {
			p.write(0, "\n")
		}
		p.node(r, depth)
	}
}

// opaque prints opaque blocks separated by blank lines, with one before
// the first block when it follows other output.
func (p *printer) opaque(a []*ast.OpaqueBlock, after bool, depth int) {
	for i, b := range a {
		if i > 0 || after {
			p.write(0, "\n")
		}
		p.write(depth, b.String(), "\n")
	}
}

func (p *printer) declarations(a ast.Declarations, depth int) {
	for i := range a {
		p.node(&a[i], depth)
	}
}

// Print returns the canonical text of a node using the default printer.
func Print(n ast.Node) string {
	var buf bytes.Buffer
	var p Printer
	_ = p.Print(&buf, n)
	return buf.String()
}
