// Package encode serializes rule trees for storage, comparison and
// machine-readable output.
//
// The binary form is canonical CBOR (RFC 8949 core deterministic encoding):
// the same tree always produces the same bytes, so digests of it can be
// compared across runs and releases.
package encode

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// Version is the wire format version written into every encoded tree.
const Version uint8 = 2

// maxNestedLevels bounds decoding. A rule nested d groups deep sits 2d+3
// levels down and its atoms add five more.
const maxNestedLevels = 2*parser.MaxDepthLimit + 16

// ErrVersion is returned when decoding a tree written by another format version.
var ErrVersion = errors.New("unsupported encoding version")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("cbor encoder: %s", err))
	}
	if decMode, err = (cbor.DecOptions{MaxNestedLevels: maxNestedLevels}).DecMode(); err != nil {
		panic(fmt.Sprintf("cbor decoder: %s", err))
	}
}

// wireSheet is the intermediate form of a stylesheet. Atoms are flattened
// into a tagged union so the encoding does not depend on Go type names.
type wireSheet struct {
	Version uint8
	Rules   []wireRule
	Opaque  []wireOpaque
}

type wireRule struct {
	Selector     []wireExpr
	Declarations []wireDecl
	Children     []wireRule
	AtRule       *wireAtRule
	Opaque       []wireOpaque
}

type wireAtRule struct {
	Name          string
	Prelude       string
	ContainerName string
	Condition     []wireDecl
}

type wireOpaque struct {
	Keyword string
	Name    string
	Prelude string
	Body    string
	Line    int
	Char    int
	Offset  int
}

type wireDecl struct {
	Key   string
	Value string
}

// wireExpr holds either an atom or a combinator (Combinator > 0). An atom
// is flattened into its base selector followed by each attribute or
// pseudo-class refinement, innermost first, so nesting depth does not grow
// with the length of a compound selector.
type wireExpr struct {
	Atoms      []wireAtom
	Combinator int
}

// wireAtom is a union of all atom kinds.
type wireAtom struct {
	Type string // "universal", "type", "class", "id", "attribute", "pseudo"

	// Type, Class, ID and pseudo-class name.
	Name string

	// Pseudo-class fields.
	Function bool
	Args     string

	Spec *wireSpec
}

type wireSpec struct {
	Namespace       string
	Name            string
	Operator        int
	Value           string
	CaseInsensitive bool
}

// MarshalCBOR returns the canonical CBOR encoding of ss.
func MarshalCBOR(ss *ast.StyleSheet) ([]byte, error) {
	if ss == nil {
		ss = &ast.StyleSheet{}
	}
	w := wireSheet{Version: Version, Rules: toWireRules(ss.Rules), Opaque: toWireOpaque(ss.Opaque)}

	data, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stylesheet: %w", err)
	}
	return data, nil
}

// UnmarshalCBOR decodes a stylesheet written by MarshalCBOR.
func UnmarshalCBOR(data []byte) (*ast.StyleSheet, error) {
	var w wireSheet
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode stylesheet: %w", err)
	}
	if w.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, w.Version)
	}

	rules, err := fromWireRules(w.Rules)
	if err != nil {
		return nil, err
	}
	return &ast.StyleSheet{Rules: rules, Opaque: fromWireOpaque(w.Opaque)}, nil
}

func toWireOpaque(blocks []*ast.OpaqueBlock) []wireOpaque {
	var out []wireOpaque
	for _, b := range blocks {
		out = append(out, wireOpaque{
			Keyword: b.Keyword,
			Name:    b.Name,
			Prelude: b.Prelude,
			Body:    b.Body,
			Line:    b.Pos.Line,
			Char:    b.Pos.Char,
			Offset:  b.Pos.Offset,
		})
	}
	return out
}

func fromWireOpaque(blocks []wireOpaque) []*ast.OpaqueBlock {
	var out []*ast.OpaqueBlock
	for _, b := range blocks {
		out = append(out, &ast.OpaqueBlock{
			Keyword: b.Keyword,
			Name:    b.Name,
			Prelude: b.Prelude,
			Body:    b.Body,
			Pos:     token.Pos{Line: b.Line, Char: b.Char, Offset: b.Offset},
		})
	}
	return out
}

func toWireRules(rules ast.Rules) []wireRule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]wireRule, 0, len(rules))
	for _, r := range rules {
		if r == nil {
			continue
		}
		wr := wireRule{
			Selector:     toWireSelector(r.Selector),
			Declarations: toWireDecls(r.Declarations),
			Children:     toWireRules(r.Children),
			Opaque:       toWireOpaque(r.Opaque),
		}
		if r.AtRule != nil {
			wr.AtRule = &wireAtRule{
				Name:          r.AtRule.Name,
				Prelude:       r.AtRule.Prelude,
				ContainerName: r.AtRule.ContainerName,
				Condition:     toWireDecls(r.AtRule.Condition),
			}
		}
		out = append(out, wr)
	}
	return out
}

func toWireDecls(decls ast.Declarations) []wireDecl {
	if len(decls) == 0 {
		return nil
	}
	out := make([]wireDecl, len(decls))
	for i, d := range decls {
		out[i] = wireDecl{Key: d.Key, Value: d.Value}
	}
	return out
}

func toWireSelector(sel ast.Selector) []wireExpr {
	if len(sel) == 0 {
		return nil
	}
	out := make([]wireExpr, len(sel))
	for i, e := range sel {
		if e.IsCombinator() {
			out[i] = wireExpr{Combinator: int(e.Combinator)}
		} else {
			out[i] = wireExpr{Atoms: toWireAtoms(e.Atom)}
		}
	}
	return out
}

// toWireAtoms unwinds the refinements of a into a list ending with the base
// selector, then reverses it.
func toWireAtoms(a ast.Atom) []wireAtom {
	var out []wireAtom
	for a != nil {
		switch v := a.(type) {
		case *ast.Attribute:
			out = append(out, wireAtom{Type: "attribute", Spec: &wireSpec{
				Namespace:       v.Spec.Namespace,
				Name:            v.Spec.Name,
				Operator:        int(v.Spec.Operator),
				Value:           v.Spec.Value,
				CaseInsensitive: v.Spec.CaseInsensitive,
			}})
			a = refined(v.Atom)
			continue
		case *ast.PseudoClass:
			out = append(out, wireAtom{Type: "pseudo", Name: v.Name, Function: v.Function, Args: v.Args})
			a = refined(v.Atom)
			continue
		case *ast.Type:
			out = append(out, wireAtom{Type: "type", Name: v.Name})
		case *ast.Class:
			out = append(out, wireAtom{Type: "class", Name: v.Name})
		case *ast.ID:
			out = append(out, wireAtom{Type: "id", Name: v.Name})
		default:
			out = append(out, wireAtom{Type: "universal"})
		}
		a = nil
	}
	slices.Reverse(out)
	return out
}

// refined returns the atom an attribute or pseudo-class applies to.
func refined(a ast.Atom) ast.Atom {
	if a == nil {
		return &ast.Universal{}
	}
	return a
}

func fromWireRules(rules []wireRule) (ast.Rules, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	out := make(ast.Rules, len(rules))
	for i, wr := range rules {
		sel, err := fromWireSelector(wr.Selector)
		if err != nil {
			return nil, err
		}
		children, err := fromWireRules(wr.Children)
		if err != nil {
			return nil, err
		}
		r := &ast.RuleNode{
			Selector:     sel,
			Declarations: fromWireDecls(wr.Declarations),
			Children:     children,
			Opaque:       fromWireOpaque(wr.Opaque),
		}
		if wr.AtRule != nil {
			r.AtRule = &ast.AtRule{
				Name:          wr.AtRule.Name,
				Prelude:       wr.AtRule.Prelude,
				ContainerName: wr.AtRule.ContainerName,
				Condition:     fromWireDecls(wr.AtRule.Condition),
			}
		}
		out[i] = r
	}
	return out, nil
}

func fromWireDecls(decls []wireDecl) ast.Declarations {
	if len(decls) == 0 {
		return nil
	}
	out := make(ast.Declarations, len(decls))
	for i, d := range decls {
		out[i] = ast.Declaration{Key: d.Key, Value: d.Value}
	}
	return out
}

func fromWireSelector(exprs []wireExpr) (ast.Selector, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make(ast.Selector, len(exprs))
	for i, e := range exprs {
		if len(e.Atoms) == 0 {
			if e.Combinator < int(ast.Descendant) || e.Combinator > int(ast.Column) {
				return nil, fmt.Errorf("invalid combinator %d", e.Combinator)
			}
			out[i] = ast.CombinatorExpr(ast.Combinator(e.Combinator))
			continue
		}
		a, err := fromWireAtoms(e.Atoms)
		if err != nil {
			return nil, err
		}
		out[i] = ast.AtomExpr(a)
	}
	return out, nil
}

// fromWireAtoms rebuilds an atom from its base selector and refinements.
func fromWireAtoms(list []wireAtom) (ast.Atom, error) {
	var a ast.Atom
	switch w := list[0]; w.Type {
	case "universal":
		a = &ast.Universal{}
	case "type":
		a = &ast.Type{Name: w.Name}
	case "class":
		a = &ast.Class{Name: w.Name}
	case "id":
		a = &ast.ID{Name: w.Name}
	default:
		return nil, fmt.Errorf("unknown atom type %q", w.Type)
	}

	for _, w := range list[1:] {
		switch w.Type {
		case "attribute":
			if w.Spec == nil {
				return nil, errors.New("attribute atom without specification")
			}
			a = &ast.Attribute{Atom: a, Spec: ast.AttributeSpec{
				Namespace:       w.Spec.Namespace,
				Name:            w.Spec.Name,
				Operator:        ast.AttributeOperator(w.Spec.Operator),
				Value:           w.Spec.Value,
				CaseInsensitive: w.Spec.CaseInsensitive,
			}}
		case "pseudo":
			a = &ast.PseudoClass{Atom: a, Name: w.Name, Function: w.Function, Args: w.Args}
		default:
			return nil, fmt.Errorf("unknown refinement type %q", w.Type)
		}
	}
	return a, nil
}
