package stream_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// texts reads the remaining tokens of s as strings.
func texts(s *stream.Stream, whitespace bool) []string {
	var a []string
	for {
		var tok token.Token
		if whitespace {
			tok = s.NextIncludingWhitespace()
		} else {
			tok = s.Next()
		}
		if _, ok := tok.(*token.EOF); ok {
			return a
		}
		a = append(a, tok.String())
	}
}

// Ensure a block that is not entered is skipped as a whole.
func TestStream_SkipsUnenteredBlocks(t *testing.T) {
	s := stream.NewString(`a { b: c; } d (e [f]) g`)
	assert.Equal(t, []string{"a", "{", "d", "(", "g"}, texts(s, false))
}

// Ensure whitespace is only returned when asked for.
func TestStream_Whitespace(t *testing.T) {
	s := stream.NewString(`a  b`)
	assert.Equal(t, []string{"a", "  ", "b"}, texts(s, true))
}

// Ensure nested blocks are scoped and the closing token is always consumed.
func TestStream_ParseNestedBlock(t *testing.T) {
	s := stream.NewString(`x { a { b } c } y`)
	assert.Equal(t, "x", s.Next().String())
	require.NoError(t, s.ExpectCurlyBlock())

	var inner []string
	err := s.ParseNestedBlock(func(s *stream.Stream) error {
		inner = append(inner, s.Next().String())
		require.NoError(t, s.ExpectCurlyBlock())
		return s.ParseNestedBlock(func(s *stream.Stream) error {
			inner = append(inner, texts(s, false)...)
			return errors.New("marker")
		})
	})
	assert.EqualError(t, err, "marker")
	assert.Equal(t, []string{"a", "b"}, inner)
	assert.Equal(t, []string{"y"}, texts(s, false))
}

// Ensure a failing block parser does not leave the stream inside the block.
func TestStream_ParseNestedBlock_Failure(t *testing.T) {
	s := stream.NewString(`{ a b c } d`)
	require.NoError(t, s.ExpectCurlyBlock())
	err := s.ParseNestedBlock(func(s *stream.Stream) error {
		s.Next()
		return errors.New("stop")
	})
	require.Error(t, err)
	assert.Equal(t, "d", s.Next().String())
}

// Ensure ParseNestedBlock requires a block opening token.
func TestStream_ParseNestedBlock_NoBlock(t *testing.T) {
	s := stream.NewString(`a`)
	s.Next()
	err := s.ParseNestedBlock(func(*stream.Stream) error { return nil })
	assert.ErrorIs(t, err, stream.ErrNoBlock)
}

// Ensure EOF is reported at the end of a scope and at the end of input.
func TestStream_Exhausted(t *testing.T) {
	s := stream.NewString(`{   } `)
	require.NoError(t, s.ExpectCurlyBlock())
	require.NoError(t, s.ParseNestedBlock(func(s *stream.Stream) error {
		assert.True(t, s.Exhausted())
		_, ok := s.NextIncludingWhitespace().(*token.Whitespace)
		assert.True(t, ok)
		_, ok = s.NextIncludingWhitespace().(*token.EOF)
		assert.True(t, ok)
		return nil
	}))
	assert.True(t, s.Exhausted())
}

// Ensure mismatched closing tokens are ordinary tokens within a block and
// unclosed blocks end at EOF.
func TestStream_UnbalancedBlocks(t *testing.T) {
	s := stream.NewString(`{ a ) b`)
	require.NoError(t, s.ExpectCurlyBlock())
	require.NoError(t, s.ParseNestedBlock(func(s *stream.Stream) error {
		assert.Equal(t, []string{"a", ")", "b"}, texts(s, false))
		return nil
	}))
	assert.True(t, s.Exhausted())
}

// Ensure source slices cover the exact text between cursors.
func TestStream_Slice(t *testing.T) {
	s := stream.NewString(`color: rgb(1, 2, 3) !important; x`)
	_, err := s.ExpectIdent()
	require.NoError(t, err)
	require.NoError(t, s.ExpectColon())

	start := s.Position()
	end := start
	for {
		if _, ok := s.NextIncludingWhitespace().(*token.Semicolon); ok {
			break
		}
		end = s.Position()
	}
	assert.Equal(t, ` rgb(1, 2, 3) !important`, s.Slice(start, end))
	assert.Equal(t, ` rgb(1, 2, 3) !important;`, s.SliceFrom(start))
	assert.Equal(t, " x", s.ConsumeRest())
	assert.True(t, s.Exhausted())
}

// Ensure Reset restores a pending block.
func TestStream_Reset(t *testing.T) {
	s := stream.NewString(`[a] b`)
	require.NoError(t, s.ExpectSquareBlock())
	c := s.Position()
	assert.Equal(t, "b", s.Next().String())
	s.Reset(c)
	require.NoError(t, s.ParseNestedBlock(func(s *stream.Stream) error {
		assert.Equal(t, []string{"a"}, texts(s, false))
		return nil
	}))
	assert.Equal(t, "b", s.Peek().String())
	assert.Equal(t, "b", s.Next().String())
}

// Ensure Expect functions report mismatches with the offending token.
func TestStream_Expect(t *testing.T) {
	var tests = []struct {
		in   string
		fn   func(*stream.Stream) error
		kind error
		err  string
	}{
		{in: `a`, fn: (*stream.Stream).ExpectColon, kind: stream.ErrTokenMismatch, err: `expected colon, got "a"`},
		{in: ``, fn: (*stream.Stream).ExpectSemicolon, kind: stream.ErrTokenMismatch, err: `expected semicolon, got EOF`},
		{in: `:`, fn: func(s *stream.Stream) error { _, err := s.ExpectIdent(); return err }, kind: stream.ErrTokenMismatch, err: `expected identifier, got ":"`},
		{in: `1`, fn: func(s *stream.Stream) error { _, err := s.ExpectIdentOrString(); return err }, kind: stream.ErrTokenMismatch, err: `expected identifier or string, got "1"`},
		{in: `a`, fn: (*stream.Stream).ExpectCurlyBlock, kind: stream.ErrDelimiterMismatch, err: `expected "{", got "a"`},
		{in: `{`, fn: (*stream.Stream).ExpectParenBlock, kind: stream.ErrDelimiterMismatch, err: `expected "(", got "{"`},
		{in: `(`, fn: (*stream.Stream).ExpectSquareBlock, kind: stream.ErrDelimiterMismatch, err: `expected "[", got "("`},
		{in: `  ;`, fn: (*stream.Stream).ExpectSemicolon},
		{in: ` (`, fn: (*stream.Stream).ExpectParenBlock},
	}

	for i, tt := range tests {
		err := tt.fn(stream.NewString(tt.in))
		if tt.kind == nil {
			assert.NoError(t, err, "%d. %q", i, tt.in)
			continue
		}
		assert.ErrorIs(t, err, tt.kind, "%d. %q", i, tt.in)
		assert.EqualError(t, err, tt.err, "%d. %q", i, tt.in)

		var mismatch *stream.MismatchError
		assert.True(t, errors.As(err, &mismatch), "%d. %q", i, tt.in)
	}
}

// Ensure skipping is bounded by the current scope.
func TestStream_Skip(t *testing.T) {
	s := stream.NewString(`screen and (min-width: 10px) { a {} } rest`)
	prelude, err := s.SkipUntilCurlyBlock()
	require.NoError(t, err)
	assert.Equal(t, `screen and (min-width: 10px)`, prelude)
	assert.Equal(t, "rest", s.Next().String())

	s = stream.NewString(`{ no block here }`)
	require.NoError(t, s.ExpectCurlyBlock())
	require.NoError(t, s.ParseNestedBlock(func(s *stream.Stream) error {
		_, err := s.SkipUntilCurlyBlock()
		assert.ErrorIs(t, err, stream.ErrDelimiterMismatch)
		return nil
	}))

	s = stream.NewString(`url("a.css") screen; b`)
	assert.Equal(t, `url("a.css") screen`, s.SkipStatement())
	assert.Equal(t, "b", s.Next().String())
	assert.Equal(t, "", s.SkipStatement())
}
