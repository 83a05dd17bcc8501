package parser

import (
	"strings"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// ParseSelectorList parses comma-separated selectors up to and including
// the opening token of a {}-block, or to the end of the stream. The block
// itself is left for the caller to enter with ParseNestedBlock.
//
// The error is an ErrorList holding skipped unsupported syntax and the
// fault that stopped the parse, if any.
func ParseSelectorList(s *stream.Stream, opts ...Option) (ast.SelectorList, error) {
	p := newParser(opts)
	list, err := p.parseSelectorList(s)
	if err != nil {
		p.errors = append(p.errors, wrapError(nil, err))
	}
	return list, p.errors.Err()
}

// selectorBuilder accumulates one compound selector sequence.
type selectorBuilder struct {
	sel   ast.Selector
	space bool // whitespace seen since the last expression
}

// pop returns the last atom if it may be refined by a pseudo-class or
// attribute, removing it from the sequence.
func (b *selectorBuilder) pop() (ast.Atom, bool) {
	n := len(b.sel)
	if b.space || n == 0 || b.sel[n-1].IsCombinator() {
		return nil, false
	}
	a := b.sel[n-1].Atom
	b.sel = b.sel[:n-1]
	return a, true
}

func (b *selectorBuilder) atom(a ast.Atom) {
	if n := len(b.sel); b.space && n > 0 && !b.sel[n-1].IsCombinator() {
		b.sel = append(b.sel, ast.CombinatorExpr(ast.Descendant))
	}
	b.sel = append(b.sel, ast.AtomExpr(a))
	b.space = false
}

func (b *selectorBuilder) combinator(c ast.Combinator) bool {
	if n := len(b.sel); n == 0 || b.sel[n-1].IsCombinator() {
		return false
	}
	b.sel = append(b.sel, ast.CombinatorExpr(c))
	b.space = false
	return true
}

// done returns the finished sequence and resets the builder.
func (b *selectorBuilder) done() (ast.Selector, bool) {
	sel := b.sel
	b.sel, b.space = nil, false
	if n := len(sel); n == 0 || sel[n-1].IsCombinator() {
		return nil, false
	}
	return sel, true
}

func (p *parser) parseSelectorList(s *stream.Stream) (ast.SelectorList, error) {
	var list ast.SelectorList
	var b selectorBuilder

	finish := func(tok token.Token) error {
		sel, ok := b.done()
		if !ok {
			return newError(ErrMalformedSelector, tok.Position(), "missing selector before %s", token.Quote(tok))
		}
		list = append(list, sel)
		return nil
	}

	for {
		tok := s.NextIncludingWhitespace()
		switch tok := tok.(type) {
		case *token.Whitespace:
			b.space = true

		case *token.EOF, *token.LBrace:
			if err := finish(tok); err != nil {
				return nil, err
			}
			return list, nil

		case *token.Comma:
			if err := finish(tok); err != nil {
				return nil, err
			}

		case *token.Ident:
			b.atom(&ast.Type{Name: tok.Value})

		case *token.Hash:
			if tok.Type != "id" {
				return nil, newError(ErrMalformedSelector, tok.Pos, "invalid id selector %s", token.Quote(tok))
			}
			b.atom(&ast.ID{Name: tok.Value})

		case *token.Delim:
			if err := p.parseDelim(s, &b, tok); err != nil {
				return nil, err
			}

		case *token.Column:
			if err := p.unsupported(tok.Pos, "column combinator %q", "||"); err != nil {
				return nil, err
			}

		case *token.Function:
			atom, ok := b.pop()
			if !ok {
				return nil, newError(ErrMalformedSelector, tok.Pos, "pseudo-class %s without a selector", token.Quote(tok))
			}
			b.atom(&ast.PseudoClass{Atom: atom, Name: tok.Value, Function: true, Args: functionArgs(s)})

		case *token.Colon:
			if err := p.parsePseudoClass(s, &b, tok); err != nil {
				return nil, err
			}

		case *token.LBrack:
			var spec ast.AttributeSpec
			if err := s.ParseNestedBlock(func(s *stream.Stream) (err error) {
				spec, err = parseAttributeSpec(s, tok.Pos)
				return err
			}); err != nil {
				return nil, err
			}
			atom, ok := b.pop()
			if !ok {
				atom = &ast.Universal{}
			}
			b.atom(&ast.Attribute{Atom: atom, Spec: spec})

		default:
			return nil, newError(ErrMalformedSelector, tok.Position(), "unexpected %s", token.Quote(tok))
		}
	}
}

func (p *parser) parseDelim(s *stream.Stream, b *selectorBuilder, tok *token.Delim) error {
	var c ast.Combinator
	switch tok.Value {
	case ".":
		ident, ok := s.PeekIncludingWhitespace().(*token.Ident)
		if !ok {
			return newError(ErrMalformedSelector, tok.Pos, "missing class name after %q", ".")
		}
		s.NextIncludingWhitespace()
		b.atom(&ast.Class{Name: ident.Value})
		return nil
	case "*":
		b.atom(&ast.Universal{})
		return nil
	case "&":
		return p.unsupported(tok.Pos, "nesting selector %q", "&")
	case ">":
		c = ast.Child
	case "+":
		c = ast.NextSibling
	case "~":
		c = ast.SubsequentSibling
	case "|":
		c = ast.Namespace
	default:
		return newError(ErrMalformedSelector, tok.Pos, "unexpected %s", token.Quote(tok))
	}
	if !b.combinator(c) {
		return newError(ErrMalformedSelector, tok.Pos, "combinator %q without a preceding selector", tok.Value)
	}
	return nil
}

// parsePseudoClass reads the name following a colon. A pseudo-class with
// no selector before it applies to the universal selector.
func (p *parser) parsePseudoClass(s *stream.Stream, b *selectorBuilder, colon *token.Colon) error {
	var pc *ast.PseudoClass
	switch tok := s.PeekIncludingWhitespace().(type) {
	case *token.Ident:
		s.NextIncludingWhitespace()
		pc = &ast.PseudoClass{Name: tok.Value}
	case *token.Function:
		s.NextIncludingWhitespace()
		pc = &ast.PseudoClass{Name: tok.Value, Function: true, Args: functionArgs(s)}
	case *token.Colon:
		s.NextIncludingWhitespace()
		switch s.PeekIncludingWhitespace().(type) {
		case *token.Ident:
			s.NextIncludingWhitespace()
		case *token.Function:
			s.NextIncludingWhitespace()
			functionArgs(s)
		}
		return p.unsupported(colon.Pos, "pseudo-element %q", "::")
	default:
		return p.unsupported(colon.Pos, "colon followed by %s", token.Quote(tok))
	}

	atom, ok := b.pop()
	if !ok {
		atom = &ast.Universal{}
	}
	pc.Atom = atom
	b.atom(pc)
	return nil
}

// unsupported reports syntax the rule tree cannot represent, or records it
// and returns nil when such syntax is skipped.
func (p *parser) unsupported(pos token.Pos, format string, args ...any) error {
	err := newError(ErrUnsupportedSelectorSyntax, pos, format, args...)
	if p.policy == FailOnUnsupported {
		return err
	}
	p.logger.Warn("skipping unsupported selector syntax", "pos", pos.String(), "error", err.Message)
	p.errors = append(p.errors, err)
	return nil
}

// functionArgs consumes the function block just read and returns its
// trimmed source text.
func functionArgs(s *stream.Stream) string {
	var args string
	_ = s.ParseNestedBlock(func(s *stream.Stream) error {
		args = strings.TrimSpace(s.ConsumeRest())
		return nil
	})
	return args
}

// parseAttributeSpec parses the inside of an attribute selector:
//
//	[ns|]name [op (ident|string) [i|s]]
func parseAttributeSpec(s *stream.Stream, pos token.Pos) (ast.AttributeSpec, error) {
	var spec ast.AttributeSpec

	// Read the name and optional namespace prefix.
	switch tok := s.Next().(type) {
	case *token.Ident:
		spec.Name = tok.Value
		if isDelim(s.PeekIncludingWhitespace(), "|") {
			s.NextIncludingWhitespace()
			name, ok := s.NextIncludingWhitespace().(*token.Ident)
			if !ok {
				return spec, newError(ErrMalformedSelector, tok.Pos, "missing attribute name after %q", tok.Value+"|")
			}
			spec.Namespace, spec.Name = tok.Value, name.Value
		}
	case *token.Delim:
		if tok.Value == "*" {
			if !isDelim(s.NextIncludingWhitespace(), "|") {
				return spec, newError(ErrMalformedSelector, tok.Pos, "expected %q after %q in attribute selector", "|", "*")
			}
			spec.Namespace = "*"
		} else if tok.Value != "|" {
			return spec, newError(ErrMalformedSelector, tok.Pos, "unexpected %s in attribute selector", token.Quote(tok))
		}
		name, ok := s.NextIncludingWhitespace().(*token.Ident)
		if !ok {
			return spec, newError(ErrMalformedSelector, tok.Pos, "missing attribute name")
		}
		spec.Name = name.Value
	case *token.EOF:
		return spec, newError(ErrMalformedSelector, pos, "empty attribute selector")
	default:
		return spec, newError(ErrMalformedSelector, tok.Position(), "unexpected %s in attribute selector", token.Quote(tok))
	}

	// Read the operator.
	tok := s.Next()
	switch tok := tok.(type) {
	case *token.EOF:
		return spec, nil
	case *token.Delim:
		if tok.Value != "=" {
			return spec, newError(ErrMalformedSelector, tok.Pos, "unexpected %s in attribute selector", token.Quote(tok))
		}
		spec.Operator = ast.Equals
	case *token.IncludeMatch:
		spec.Operator = ast.Includes
	case *token.DashMatch:
		spec.Operator = ast.DashMatch
	case *token.PrefixMatch:
		spec.Operator = ast.Prefix
	case *token.SuffixMatch:
		spec.Operator = ast.Suffix
	case *token.SubstringMatch:
		spec.Operator = ast.Substring
	default:
		return spec, newError(ErrMalformedSelector, tok.Position(), "unexpected %s in attribute selector", token.Quote(tok))
	}

	// Read the value.
	value, err := s.ExpectIdentOrString()
	if err != nil {
		return spec, wrapError(ErrMalformedSelector, err)
	}
	spec.Value = value

	// Read the optional modifier.
	switch tok := s.Next().(type) {
	case *token.EOF:
		return spec, nil
	case *token.Ident:
		switch strings.ToLower(tok.Value) {
		case "i":
			spec.CaseInsensitive = true
		case "s":
		default:
			return spec, newError(ErrMalformedSelector, tok.Pos, "unknown attribute modifier %q", tok.Value)
		}
	default:
		return spec, newError(ErrMalformedSelector, tok.Position(), "unexpected %s in attribute selector", token.Quote(tok))
	}

	if tok := s.Next(); !isKind[*token.EOF](tok) {
		return spec, newError(ErrMalformedSelector, tok.Position(), "unexpected %s in attribute selector", token.Quote(tok))
	}
	return spec, nil
}

func isDelim(tok token.Token, value string) bool {
	d, ok := tok.(*token.Delim)
	return ok && d.Value == value
}

func isKind[T token.Token](tok token.Token) bool {
	_, ok := tok.(T)
	return ok
}
