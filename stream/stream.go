// Package stream adapts a scanned token list into the stream the rule
// parser consumes: lookahead, bounded backtracking, raw source slicing and
// scoped parsing of {}-, []-, ()- and function blocks.
//
// A block-opening token returned by Next is a marker for the whole block.
// The caller either enters it with ParseNestedBlock or ignores it, in which
// case the next read skips past the matching closing token.
package stream

import (
	"errors"
	"fmt"

	"github.com/Discord-CSS-Datamining/discord-css-differ/scanner"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

var (
	// ErrDelimiterMismatch is reported when an expected block is missing.
	ErrDelimiterMismatch = errors.New("delimiter mismatch")

	// ErrTokenMismatch is reported when an expected token is missing.
	ErrTokenMismatch = errors.New("token mismatch")

	// ErrNoBlock is reported when ParseNestedBlock is called without a
	// block-opening token having just been read.
	ErrNoBlock = errors.New("no block to enter")
)

// MismatchError reports an Expect call that found a different token.
type MismatchError struct {
	Kind     error // ErrDelimiterMismatch or ErrTokenMismatch
	Expected string
	Got      token.Token
}

// Error returns the formatted string error message.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, token.Quote(e.Got))
}

// Unwrap returns the mismatch kind.
func (e *MismatchError) Unwrap() error {
	return e.Kind
}

// Pos returns the position of the unexpected token.
func (e *MismatchError) Pos() token.Pos {
	return e.Got.Position()
}

// Cursor is an opaque stream position.
type Cursor struct {
	pos   int
	block int
}

// Stream reads tokens from a single scope of a stylesheet.
type Stream struct {
	src    string
	tokens []token.Token
	match  []int // index of the closing token for each opener

	pos   int // index of the next token
	end   int // index of the scope's closing token or the final EOF
	block int // opener returned by the last read, or -1
}

// New returns a stream over tokens scanned from src. The token list must
// end with an EOF token, as returned by scanner.ScanAll.
func New(src string, tokens []token.Token) *Stream {
	if n := len(tokens); n == 0 {
		tokens = []token.Token{&token.EOF{Pos: token.Pos{Offset: len(src)}}}
	} else if _, ok := tokens[n-1].(*token.EOF); !ok {
		tokens = append(tokens[:n:n], &token.EOF{Pos: token.Pos{Offset: len(src)}})
	}
	return &Stream{
		src:    src,
		tokens: tokens,
		match:  matchBlocks(tokens),
		end:    len(tokens) - 1,
		block:  -1,
	}
}

// NewString scans src and returns a stream over its tokens.
func NewString(src string) *Stream {
	return New(src, scanner.NewString(src).ScanAll())
}

// matchBlocks pairs every opening token with its closing token. A closing
// token that does not match the innermost open block is an ordinary token
// inside that block. Unclosed blocks end at the final EOF.
func matchBlocks(tokens []token.Token) []int {
	eof := len(tokens) - 1
	match := make([]int, len(tokens))
	var stack []int
	for i, tok := range tokens {
		match[i] = -1
		if isOpener(tok) {
			stack = append(stack, i)
			continue
		}
		if len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1]
		if closes(tokens[top], tok) {
			match[top] = i
			stack = stack[:len(stack)-1]
		}
	}
	for _, i := range stack {
		match[i] = eof
	}
	return match
}

func isOpener(tok token.Token) bool {
	switch tok.(type) {
	case *token.LBrace, *token.LBrack, *token.LParen, *token.Function:
		return true
	}
	return false
}

func closes(open, tok token.Token) bool {
	switch open.(type) {
	case *token.LBrace:
		_, ok := tok.(*token.RBrace)
		return ok
	case *token.LBrack:
		_, ok := tok.(*token.RBrack)
		return ok
	case *token.LParen, *token.Function:
		_, ok := tok.(*token.RParen)
		return ok
	}
	return false
}

// Source returns the full source text.
func (s *Stream) Source() string {
	return s.src
}

// Next returns the next non-whitespace token, or EOF at the end of the scope.
func (s *Stream) Next() token.Token {
	return s.next(true)
}

// NextIncludingWhitespace returns the next token, or EOF at the end of the scope.
func (s *Stream) NextIncludingWhitespace() token.Token {
	return s.next(false)
}

// Peek returns the next non-whitespace token without consuming it.
func (s *Stream) Peek() token.Token {
	c := s.Position()
	tok := s.Next()
	s.Reset(c)
	return tok
}

// PeekIncludingWhitespace returns the next token without consuming it.
func (s *Stream) PeekIncludingWhitespace() token.Token {
	c := s.Position()
	tok := s.NextIncludingWhitespace()
	s.Reset(c)
	return tok
}

func (s *Stream) next(skipWhitespace bool) token.Token {
	s.pos = s.index(s.Position())
	s.block = -1

	for s.pos < s.end {
		i := s.pos
		tok := s.tokens[i]
		s.pos++

		if _, ok := tok.(*token.Whitespace); ok && skipWhitespace {
			continue
		}
		if isOpener(tok) {
			s.block = i
		}
		return tok
	}
	return &token.EOF{Pos: s.tokens[s.end].Position()}
}

// Exhausted returns true if only whitespace remains in the scope.
func (s *Stream) Exhausted() bool {
	_, ok := s.Peek().(*token.EOF)
	return ok
}

// Position returns the current cursor.
func (s *Stream) Position() Cursor {
	return Cursor{pos: s.pos, block: s.block}
}

// Reset rewinds or advances the stream to a cursor taken from it.
func (s *Stream) Reset(c Cursor) {
	s.pos, s.block = c.pos, c.block
}

// index returns the token index a cursor will read from next.
func (s *Stream) index(c Cursor) int {
	if c.block < 0 {
		return c.pos
	}
	if i := s.match[c.block] + 1; i < s.end {
		return i
	}
	return s.end
}

// offset returns the byte offset a cursor will read from next.
func (s *Stream) offset(c Cursor) int {
	return s.tokens[s.index(c)].Position().Offset
}

// SliceFrom returns the source text from c to the current position.
func (s *Stream) SliceFrom(c Cursor) string {
	return s.Slice(c, s.Position())
}

// Slice returns the source text between two cursors.
func (s *Stream) Slice(from, to Cursor) string {
	i, j := s.offset(from), s.offset(to)
	if j < i {
		return ""
	}
	return s.src[i:j]
}

// ConsumeRest consumes the remainder of the scope and returns its source text.
func (s *Stream) ConsumeRest() string {
	c := s.Position()
	s.pos, s.block = s.end, -1
	return s.SliceFrom(c)
}

// ParseNestedBlock parses the interior of the block whose opening token was
// just returned. fn receives a stream scoped to the block; afterwards the
// stream is positioned after the closing token whether or not fn failed.
func (s *Stream) ParseNestedBlock(fn func(*Stream) error) error {
	if s.block < 0 {
		return ErrNoBlock
	}
	open := s.block
	closer := s.match[open]
	if closer > s.end {
		closer = s.end
	}

	child := &Stream{
		src:    s.src,
		tokens: s.tokens,
		match:  s.match,
		pos:    open + 1,
		end:    closer,
		block:  -1,
	}
	err := fn(child)

	s.block = -1
	if closer < s.end {
		s.pos = closer + 1
	} else {
		s.pos = s.end
	}
	return err
}

// ExpectCurlyBlock consumes a {-block opening token.
func (s *Stream) ExpectCurlyBlock() error {
	if tok := s.Next(); !isKind[*token.LBrace](tok) {
		return &MismatchError{Kind: ErrDelimiterMismatch, Expected: `"{"`, Got: tok}
	}
	return nil
}

// ExpectSquareBlock consumes a [-block opening token.
func (s *Stream) ExpectSquareBlock() error {
	if tok := s.Next(); !isKind[*token.LBrack](tok) {
		return &MismatchError{Kind: ErrDelimiterMismatch, Expected: `"["`, Got: tok}
	}
	return nil
}

// ExpectParenBlock consumes a (-block opening token.
func (s *Stream) ExpectParenBlock() error {
	if tok := s.Next(); !isKind[*token.LParen](tok) {
		return &MismatchError{Kind: ErrDelimiterMismatch, Expected: `"("`, Got: tok}
	}
	return nil
}

// ExpectIdent consumes an identifier and returns its value.
func (s *Stream) ExpectIdent() (string, error) {
	tok := s.Next()
	if ident, ok := tok.(*token.Ident); ok {
		return ident.Value, nil
	}
	return "", &MismatchError{Kind: ErrTokenMismatch, Expected: "identifier", Got: tok}
}

// ExpectIdentOrString consumes an identifier or a quoted string and returns its value.
func (s *Stream) ExpectIdentOrString() (string, error) {
	switch tok := s.Next().(type) {
	case *token.Ident:
		return tok.Value, nil
	case *token.String:
		return tok.Value, nil
	default:
		return "", &MismatchError{Kind: ErrTokenMismatch, Expected: "identifier or string", Got: tok}
	}
}

// ExpectColon consumes a colon.
func (s *Stream) ExpectColon() error {
	if tok := s.Next(); !isKind[*token.Colon](tok) {
		return &MismatchError{Kind: ErrTokenMismatch, Expected: "colon", Got: tok}
	}
	return nil
}

// ExpectSemicolon consumes a semicolon.
func (s *Stream) ExpectSemicolon() error {
	if tok := s.Next(); !isKind[*token.Semicolon](tok) {
		return &MismatchError{Kind: ErrTokenMismatch, Expected: "semicolon", Got: tok}
	}
	return nil
}

// SkipUntilCurlyBlock consumes tokens up to and including the next
// {-block opening token of this scope, which is left ready to enter.
// It returns the source text skipped before the block.
func (s *Stream) SkipUntilCurlyBlock() (string, error) {
	start := s.Position()
	for {
		end := s.Position()
		switch tok := s.Next().(type) {
		case *token.LBrace:
			return s.Slice(start, end), nil
		case *token.EOF:
			return s.Slice(start, end), &MismatchError{Kind: ErrDelimiterMismatch, Expected: `"{"`, Got: tok}
		}
	}
}

// SkipStatement consumes tokens up to and including the next semicolon of
// this scope, or to the end of the scope, and returns the source text
// before the semicolon.
func (s *Stream) SkipStatement() string {
	start := s.Position()
	for {
		end := s.Position()
		switch s.Next().(type) {
		case *token.Semicolon, *token.EOF:
			return s.Slice(start, end)
		}
	}
}

func isKind[T token.Token](tok token.Token) bool {
	_, ok := tok.(T)
	return ok
}
