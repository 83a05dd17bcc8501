package parser_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
)

func class(name string) *ast.Class { return &ast.Class{Name: name} }
func typ(name string) *ast.Type    { return &ast.Type{Name: name} }

// sel builds a selector from atoms and combinators.
func sel(items ...any) ast.Selector {
	var a ast.Selector
	for _, item := range items {
		switch item := item.(type) {
		case ast.Atom:
			a = append(a, ast.AtomExpr(item))
		case ast.Combinator:
			a = append(a, ast.CombinatorExpr(item))
		}
	}
	return a
}

func decl(key, value string) ast.Declaration {
	return ast.Declaration{Key: key, Value: value}
}

func rule(s ast.Selector, decls ...ast.Declaration) *ast.RuleNode {
	return &ast.RuleNode{Selector: s, Declarations: decls}
}

func media(prelude string, children ...*ast.RuleNode) *ast.RuleNode {
	return &ast.RuleNode{AtRule: &ast.AtRule{Name: "media", Prelude: prelude}, Children: children}
}

// Ensure the parser builds rule trees from stylesheets.
func TestParse(t *testing.T) {
	var tests = []struct {
		in    string
		rules ast.Rules
		kinds []error
	}{
		// Scenario A.
		{in: `.a.b > div { color: red; }`, rules: ast.Rules{
			rule(sel(class("a"), class("b"), ast.Child, typ("div")), decl("color", "red")),
		}},

		// Scenario B.
		{in: `.a, .b { x: y; }`, rules: ast.Rules{
			rule(sel(class("a")), decl("x", "y")),
			rule(sel(class("b")), decl("x", "y")),
		}},

		// Scenario C.
		{in: `.a:hover { x: y; }`, rules: ast.Rules{
			rule(sel(&ast.PseudoClass{Atom: class("a"), Name: "hover"}), decl("x", "y")),
		}},

		// Scenario D.
		{in: `@media (x) { .a { y: z; } }`, rules: ast.Rules{
			media("(x)", rule(sel(class("a")), decl("y", "z"))),
		}},

		// Scenario E.
		{in: `.a { color }`, rules: ast.Rules{rule(sel(class("a")))}, kinds: []error{parser.ErrMalformedDeclaration}},

		// Empty input and empty blocks.
		{in: ``},
		{in: "  \n\t "},
		{in: `.a {}`, rules: ast.Rules{rule(sel(class("a")))}},
		{in: `.a { ; ; }`, rules: ast.Rules{rule(sel(class("a")))}},

		// Stray semicolons and CDO/CDC between rules.
		{in: `; <!-- .a { x: y } --> ;`, rules: ast.Rules{rule(sel(class("a")), decl("x", "y"))}},

		// Values are raw source text.
		{in: `.a { margin: 0 auto !important; background: url("x.png") no-repeat; grid: [a] 1fr / auto }`, rules: ast.Rules{
			rule(sel(class("a")),
				decl("margin", "0 auto !important"),
				decl("background", `url("x.png") no-repeat`),
				decl("grid", "[a] 1fr / auto"),
			),
		}},
		{in: `.a { color: rgb(0, 0, 0) }`, rules: ast.Rules{rule(sel(class("a")), decl("color", "rgb(0, 0, 0)"))}},
		{in: `:root { --gap: { a: b }; }`, rules: ast.Rules{
			rule(sel(&ast.PseudoClass{Atom: &ast.Universal{}, Name: "root"}), decl("--gap", "{ a: b }")),
		}},

		// Nested group rules.
		{in: `@supports (display: grid) { @media screen { .a { x: y } } .b { z: w } }`, rules: ast.Rules{
			{AtRule: &ast.AtRule{Name: "supports", Prelude: "(display: grid)"}, Children: ast.Rules{
				media("screen", rule(sel(class("a")), decl("x", "y"))),
				rule(sel(class("b")), decl("z", "w")),
			}},
		}},
		{in: `@MEDIA screen {}`, rules: ast.Rules{media("screen")}},

		// A faulty rule is skipped and parsing continues.
		{in: `.a { x y } .b { z: w }`, rules: ast.Rules{
			rule(sel(class("a"))),
			rule(sel(class("b")), decl("z", "w")),
		}, kinds: []error{parser.ErrMalformedDeclaration}},
		{in: `.a::before { x: y } .b { z: w }`, rules: ast.Rules{
			rule(sel(class("b")), decl("z", "w")),
		}, kinds: []error{parser.ErrUnsupportedSelectorSyntax}},
		{in: `1px { x: y } .b { z: w }`, rules: ast.Rules{
			rule(sel(class("b")), decl("z", "w")),
		}, kinds: []error{parser.ErrMalformedSelector}},
		{in: `.a, { x: y } .b {}`, rules: ast.Rules{
			rule(sel(class("b"))),
		}, kinds: []error{parser.ErrMalformedSelector}},
		{in: `.a { @media screen { x: y } } .b {}`, rules: ast.Rules{
			rule(sel(class("a"))),
			rule(sel(class("b"))),
		}, kinds: []error{parser.ErrMalformedDeclaration}},

		// Fatal faults keep the rules read so far.
		{in: `.a {} { x: y } .b {}`, rules: ast.Rules{rule(sel(class("a")))}, kinds: []error{parser.ErrUnexpectedBlock}},
		{in: `.a {} @charset "utf-8"; .b {}`, rules: ast.Rules{rule(sel(class("a")))}, kinds: []error{parser.ErrUnsupportedAtRule}},
		{in: `@media screen`, kinds: []error{stream.ErrDelimiterMismatch}},
		{in: `@media screen { .a {} @page {} .b {} }`, rules: ast.Rules{
			media("screen", rule(sel(class("a")))),
		}, kinds: []error{parser.ErrUnsupportedAtRule}},
		{in: `.a`, kinds: []error{stream.ErrDelimiterMismatch}},
	}

	for i, tt := range tests {
		ss, err := parser.ParseString(tt.in)
		require.NotNil(t, ss, "%d. %q", i, tt.in)
		if diff := cmp.Diff(tt.rules, ss.Rules); diff != "" {
			t.Errorf("%d. %q: rules mismatch (-want +got):\n%s", i, tt.in, diff)
		}
		assertKinds(t, tt.kinds, err, "%d. %q", i, tt.in)
	}
}

// assertKinds checks that err is an ErrorList holding one error per kind.
func assertKinds(t *testing.T, kinds []error, err error, msgAndArgs ...any) {
	t.Helper()
	if len(kinds) == 0 {
		assert.NoError(t, err, msgAndArgs...)
		return
	}
	var list parser.ErrorList
	if !assert.True(t, errors.As(err, &list), msgAndArgs...) {
		return
	}
	if !assert.Len(t, list, len(kinds), msgAndArgs...) {
		return
	}
	for i, kind := range kinds {
		assert.ErrorIs(t, list[i], kind, msgAndArgs...)
	}
}

// Ensure N selectors produce N nodes with independent declarations.
func TestParse_CommaSplit(t *testing.T) {
	ss, err := parser.ParseString(`.a, #b, div > span { x: y; z: w }`)
	require.NoError(t, err)
	require.Len(t, ss.Rules, 3)

	for _, r := range ss.Rules {
		assert.Equal(t, ast.Declarations{decl("x", "y"), decl("z", "w")}, r.Declarations)
		assert.Empty(t, r.Children)
	}
	ss.Rules[0].Declarations[0].Value = "changed"
	assert.Equal(t, "y", ss.Rules[1].Declarations[0].Value)

	// Each node carries the selector its comma-separated part parses to alone.
	for i, part := range []string{".a", "#b", "div > span"} {
		list, err := parser.ParseSelectorList(stream.NewString(part))
		require.NoError(t, err, part)
		require.Len(t, list, 1, part)
		if diff := cmp.Diff(list[0], ss.Rules[i].Selector); diff != "" {
			t.Errorf("%d. %q: selector mismatch (-want +got):\n%s", i, part, diff)
		}
	}
}

// Ensure only group at-rules carry children.
func TestParse_NestingInvariant(t *testing.T) {
	ss, err := parser.ParseString(`
		.a { x: y }
		@media screen { .b {} @supports (x: y) { .c, .d {} } }
		@container card (min-width: 400px) { .e { z: w } }
	`)
	require.NoError(t, err)

	var n int
	ast.Walk(ss.Rules, func(r *ast.RuleNode, depth int) bool {
		n++
		if r.AtRule == nil {
			assert.Empty(t, r.Children, r.String())
			assert.NotEmpty(t, r.Selector, r.String())
		} else {
			assert.Empty(t, r.Selector, r.String())
			assert.Empty(t, r.Declarations, r.String())
		}
		return true
	})
	assert.Equal(t, 8, n)
}

// Ensure nesting beyond the maximum depth aborts.
func TestParse_NestingTooDeep(t *testing.T) {
	src := strings.Repeat("@media a {", 5) + ".x {}" + strings.Repeat("}", 5)

	ss, err := parser.ParseString(src, parser.WithMaxDepth(5))
	require.NoError(t, err)
	assert.Len(t, ss.Rules, 1)

	ss, err = parser.ParseString(src, parser.WithMaxDepth(4))
	assert.ErrorIs(t, err, parser.ErrNestingTooDeep)
	assert.Len(t, ss.Rules, 1)

	deep := strings.Repeat("@media a {", parser.DefaultMaxDepth+1)
	_, err = parser.ParseString(deep)
	assert.ErrorIs(t, err, parser.ErrNestingTooDeep)

	// Limits above MaxDepthLimit are lowered to it.
	deep = strings.Repeat("@media a {", parser.MaxDepthLimit+1)
	_, err = parser.ParseString(deep, parser.WithMaxDepth(1<<20))
	assert.ErrorIs(t, err, parser.ErrNestingTooDeep)
}

// Ensure strict mode aborts on the first fault.
func TestParse_Strict(t *testing.T) {
	ss, err := parser.ParseString(`.a { x: y } .b { z } .c { w: v }`, parser.WithStrict(true))
	assertKinds(t, []error{parser.ErrMalformedDeclaration}, err)
	assert.Equal(t, ast.Rules{rule(sel(class("a")), decl("x", "y"))}, ss.Rules)

	_, err = parser.ParseString(`.a:: {}`, parser.WithStrict(true))
	assertKinds(t, []error{parser.ErrUnsupportedSelectorSyntax}, err)
}

// Ensure skipped unsupported syntax is logged and recorded.
func TestParse_SkipUnsupported(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ss, err := parser.ParseString(`.a::before, & .b { x: y }`,
		parser.WithUnsupportedSyntax(parser.SkipUnsupported),
		parser.WithLogger(logger),
	)
	assertKinds(t, []error{parser.ErrUnsupportedSelectorSyntax, parser.ErrUnsupportedSelectorSyntax}, err)
	assert.Equal(t, ast.Rules{
		rule(sel(class("a")), decl("x", "y")),
		rule(sel(class("b")), decl("x", "y")),
	}, ss.Rules)
	assert.Contains(t, buf.String(), "skipping unsupported selector syntax")
}

// Ensure errors carry the position of the offending token.
func TestParse_ErrorPosition(t *testing.T) {
	_, err := parser.ParseString(".a {}\n  .b { x: }")

	var e *parser.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "2:8: malformed declaration: empty value for \"x\"", e.Error())
	assert.Equal(t, 1, e.Pos.Line)
}

// Ensure the error list formats like a single error with a count.
func TestErrorList_Error(t *testing.T) {
	var tests = []struct {
		in parser.ErrorList
		s  string
	}{
		{in: nil, s: "no errors"},
		{in: parser.ErrorList{}, s: "no errors"},
		{in: parser.ErrorList{&parser.Error{Message: "foo"}}, s: "1:1: foo"},
		{in: parser.ErrorList{&parser.Error{Message: "foo"}, &parser.Error{Message: "bar"}}, s: "1:1: foo (and 1 more errors)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.s, tt.in.Error())
	}
	assert.Nil(t, parser.ErrorList(nil).Err())
}
