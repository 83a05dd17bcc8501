// Package parser builds a rule tree from a token stream.
//
// A stylesheet is read as a sequence of rules. A rule is either an at-rule,
// dispatched on its keyword, or a selector list followed by a block of
// declarations. Conditional group at-rules (@media, @supports, @container)
// contain rules of their own and are parsed recursively.
//
// Faults inside one rule are recorded and parsing continues with the next
// rule. Faults that leave the structure of the stylesheet unknown abort the
// parse; the rules read so far are still returned.
package parser

import (
	"errors"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// parser represents the state of a single parse.
type parser struct {
	config
	errors ErrorList
	depth  int
	sheet  *ast.StyleSheet

	// group is the innermost group at-rule being parsed, if any.
	group *ast.RuleNode
}

func newParser(opts []Option) *parser {
	return &parser{config: newConfig(opts), sheet: &ast.StyleSheet{}}
}

// Parse parses a stylesheet. The returned stylesheet holds every rule read
// before the parse ended. The error is an ErrorList, or nil if the parse
// was clean.
func Parse(s *stream.Stream, opts ...Option) (*ast.StyleSheet, error) {
	p := newParser(opts)
	rules, err := p.parseRules(s)
	p.sheet.Rules = rules
	if err != nil {
		p.logger.Warn("parse aborted", "error", err)
		p.errors = append(p.errors, err)
	}
	return p.sheet, p.errors.Err()
}

// ParseString scans and parses a stylesheet.
func ParseString(src string, opts ...Option) (*ast.StyleSheet, error) {
	return Parse(stream.NewString(src), opts...)
}

// parseRules reads rules until the end of the current scope.
func (p *parser) parseRules(s *stream.Stream) (ast.Rules, error) {
	var rules ast.Rules
	for {
		start := s.Position()
		switch tok := s.Next().(type) {
		case *token.EOF:
			return rules, nil
		case *token.Semicolon, *token.CDO, *token.CDC:
			continue
		case *token.AtKeyword:
			node, err := p.parseAtRule(s, tok)
			if node != nil {
				rules = append(rules, node)
			}
			if err != nil {
				return rules, err
			}
		case *token.LBrace:
			return rules, newError(ErrUnexpectedBlock, tok.Pos, "{}-block without a selector")
		default:
			s.Reset(start)
			nodes, err := p.parseQualifiedRule(s)
			rules = append(rules, nodes...)
			if err != nil {
				return rules, err
			}
		}
	}
}

// parseQualifiedRule reads a selector list and its declaration block. It
// returns one node per selector, each with its own copy of the declarations.
func (p *parser) parseQualifiedRule(s *stream.Stream) (ast.Rules, error) {
	start := s.Position()
	pos := s.Peek().Position()

	list, err := p.parseSelectorList(s)
	if err != nil {
		if err := p.recover(err); err != nil {
			return nil, err
		}
		s.Reset(start)
		_, _ = s.SkipUntilCurlyBlock()
		return nil, nil
	}

	var decls ast.Declarations
	err = s.ParseNestedBlock(func(s *stream.Stream) (err error) {
		decls, err = p.parseDeclarations(s)
		return err
	})
	if errors.Is(err, stream.ErrNoBlock) {
		return nil, newError(stream.ErrDelimiterMismatch, s.Peek().Position(), `expected "{" after selector %q`, list.String())
	} else if err != nil {
		if err := p.recover(err); err != nil {
			return nil, err
		}
		decls = nil
	}

	nodes := make(ast.Rules, len(list))
	for i, sel := range list {
		nodes[i] = &ast.RuleNode{Selector: sel, Declarations: decls.Clone()}
	}
	p.logger.Debug("rule", "pos", pos.String(), "selectors", len(list), "declarations", len(decls))
	return nodes, nil
}

// recover records a fault and returns nil, or returns the fault as fatal
// in strict mode.
func (p *parser) recover(err error) error {
	e := wrapError(nil, err)
	if p.strict {
		return e
	}
	p.logger.Warn("skipping rule", "pos", e.Pos.String(), "error", e.Message)
	p.errors = append(p.errors, e)
	return nil
}

// parseBlock parses the block whose opening token was just read, one level
// deeper than the current scope.
func (p *parser) parseBlock(s *stream.Stream, pos token.Pos, fn func(*stream.Stream) error) error {
	if p.depth >= p.maxDepth {
		return newError(ErrNestingTooDeep, pos, "blocks nested more than %d levels", p.maxDepth)
	}
	p.depth++
	defer func() { p.depth-- }()
	return s.ParseNestedBlock(fn)
}
