package parser

import (
	"strings"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// ParseDeclarations parses "name: value" pairs separated by semicolons
// until the end of the stream, usually the interior of a {}-block.
func ParseDeclarations(s *stream.Stream, opts ...Option) (ast.Declarations, error) {
	p := newParser(opts)
	decls, err := p.parseDeclarations(s)
	if err != nil {
		p.errors = append(p.errors, err)
	}
	return decls, p.errors.Err()
}

func (p *parser) parseDeclarations(s *stream.Stream) (ast.Declarations, error) {
	var decls ast.Declarations
	for {
		switch tok := s.Next().(type) {
		case *token.EOF:
			return decls, nil

		case *token.Semicolon:
			continue

		case *token.Ident:
			if err := s.ExpectColon(); err != nil {
				return nil, wrapError(ErrMalformedDeclaration, err)
			}

			// The value is the source text up to the next semicolon of
			// this block. Nested blocks are skipped whole.
			start := s.Position()
			end := start
			for {
				tok := s.NextIncludingWhitespace()
				if isKind[*token.Semicolon](tok) || isKind[*token.EOF](tok) {
					break
				}
				end = s.Position()
			}
			value := strings.TrimSpace(s.Slice(start, end))
			if value == "" {
				return nil, newError(ErrMalformedDeclaration, tok.Pos, "empty value for %q", tok.Value)
			}
			decls = append(decls, ast.Declaration{Key: tok.Value, Value: value})

		case *token.AtKeyword:
			return nil, newError(ErrMalformedDeclaration, tok.Pos, "at-rule %s inside a declaration block", token.Quote(tok))

		default:
			return nil, newError(ErrMalformedDeclaration, tok.Position(), "expected property name, got %s", token.Quote(tok))
		}
	}
}
