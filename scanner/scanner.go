package scanner

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// eof is returned by read once the source is exhausted.
const eof rune = -1

// lookahead is the number of code points that can be pushed back.
const lookahead = 4

// Scanner splits CSS source into tokens following the CSS Syntax Level 3
// tokenization rules.
//
// Input must be UTF-8. @charset directives are not honored.
type Scanner struct {
	// Errors lists the recoverable faults met so far.
	Errors []*Error

	src  string
	off  int // byte offset of the next code point to decode
	line int
	char int

	// Recently read code points and their positions, kept as a ring so
	// that up to lookahead-1 of them can be unread.
	ring    [lookahead]rune
	ringPos [lookahead]token.Pos
	head    int // index of the current code point
	pending int // unread code points waiting after head
}

// New reads all of r and returns a Scanner over it.
func New(r io.Reader) (*Scanner, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	return NewString(string(b)), nil
}

// NewString returns a Scanner over src.
func NewString(src string) *Scanner {
	return &Scanner{src: src}
}

// Source returns the text being scanned.
func (s *Scanner) Source() string {
	return s.src
}

// ScanAll scans the remaining input. The returned slice always ends
// with an EOF token whose offset is the length of the source.
func (s *Scanner) ScanAll() []token.Token {
	var a []token.Token
	for {
		tok := s.Scan()
		a = append(a, tok)
		if _, ok := tok.(*token.EOF); ok {
			return a
		}
	}
}

// Scan returns the next token. Comments are skipped.
func (s *Scanner) Scan() token.Token {
	for {
		ch := s.read()
		pos := s.Pos()

		if tok := punctuation(ch, pos); tok != nil {
			return tok
		}

		switch {
		case ch == eof:
			return &token.EOF{Pos: pos}

		case isWhitespace(ch):
			return s.scanWhitespace()

		case ch == '"' || ch == '\'':
			return s.scanString()

		case ch == '#':
			return s.scanHash()

		case ch == '/':
			if s.accept('*') {
				s.scanComment()
				continue
			}

		case strings.ContainsRune("$*^~|", ch):
			if s.accept('=') {
				return matchToken(ch, pos)
			}
			if ch == '|' && s.accept('|') {
				return &token.Column{Pos: pos}
			}

		case ch == '-':
			if s.startsNumber(ch) {
				s.unread(1)
				return s.scanNumeric(pos)
			}
			if s.acceptAll("->") {
				return &token.CDC{Pos: pos}
			}
			if s.peekIdent() {
				return s.scanIdent()
			}

		case ch == '+' || ch == '.':
			if s.startsNumber(ch) {
				s.unread(1)
				return s.scanNumeric(pos)
			}

		case ch == '<':
			if s.acceptAll("!--") {
				return &token.CDO{Pos: pos}
			}

		case ch == '@':
			s.read()
			if s.peekIdent() {
				return &token.AtKeyword{Value: s.scanName(), Pos: pos}
			}
			s.unread(1)

		case ch == '\\':
			if s.peekEscape() {
				return s.scanIdent()
			}
			s.Errors = append(s.Errors, &Error{Message: "unescaped \\", Pos: pos})

		case isDigit(ch):
			s.unread(1)
			return s.scanNumeric(pos)

		case ch == 'u' || ch == 'U':
			ch1, ch2 := s.read(), s.read()
			if ch1 == '+' && (isHexDigit(ch2) || ch2 == '?') {
				s.unread(1)
				return s.scanUnicodeRange(pos)
			}
			s.unread(2)
			return s.scanIdent()

		case isNameStart(ch):
			return s.scanIdent()
		}

		return &token.Delim{Value: string(ch), Pos: pos}
	}
}

// punctuation returns the single code point token for ch, or nil.
func punctuation(ch rune, pos token.Pos) token.Token {
	switch ch {
	case ',':
		return &token.Comma{Pos: pos}
	case ':':
		return &token.Colon{Pos: pos}
	case ';':
		return &token.Semicolon{Pos: pos}
	case '(':
		return &token.LParen{Pos: pos}
	case ')':
		return &token.RParen{Pos: pos}
	case '[':
		return &token.LBrack{Pos: pos}
	case ']':
		return &token.RBrack{Pos: pos}
	case '{':
		return &token.LBrace{Pos: pos}
	case '}':
		return &token.RBrace{Pos: pos}
	}
	return nil
}

// matchToken returns the attribute operator token that ch starts when
// followed by "=".
func matchToken(ch rune, pos token.Pos) token.Token {
	switch ch {
	case '$':
		return &token.SuffixMatch{Pos: pos}
	case '*':
		return &token.SubstringMatch{Pos: pos}
	case '^':
		return &token.PrefixMatch{Pos: pos}
	case '~':
		return &token.IncludeMatch{Pos: pos}
	default:
		return &token.DashMatch{Pos: pos}
	}
}

// startsNumber reports whether the sign or full stop ch, just read, begins
// a number. Nothing further is consumed.
func (s *Scanner) startsNumber(ch rune) bool {
	ch1, ch2 := s.read(), s.read()
	s.unread(2)
	return isDigit(ch1) || (ch != '.' && ch1 == '.' && isDigit(ch2))
}

// scanWhitespace returns the current code point and every whitespace code
// point after it as one token.
func (s *Scanner) scanWhitespace() token.Token {
	pos := s.Pos()
	var sb strings.Builder
	sb.WriteRune(s.curr())
	for ch := s.read(); isWhitespace(ch); ch = s.read() {
		sb.WriteRune(ch)
	}
	s.unread(1)
	return &token.Whitespace{Value: sb.String(), Pos: pos}
}

// scanString reads a string opened by the current quote. End of input
// closes the string silently; an unescaped newline makes it a bad string.
func (s *Scanner) scanString() token.Token {
	pos, ending := s.Pos(), s.curr()
	var sb strings.Builder
	for {
		switch ch := s.read(); {
		case ch == eof || ch == ending:
			return &token.String{Value: sb.String(), Ending: ending, Pos: pos}
		case ch == '\n':
			s.unread(1)
			s.Errors = append(s.Errors, &Error{Message: "unterminated string", Pos: pos})
			return &token.BadString{Pos: pos}
		case ch != '\\':
			sb.WriteRune(ch)
		case s.peekEscape():
			sb.WriteRune(s.scanEscape())
		default:
			// Escaped newline: the string continues on the next line.
			s.read()
		}
	}
}

// scanNumeric reads a number, percentage or dimension starting at the next
// code point.
func (s *Scanner) scanNumeric(pos token.Pos) token.Token {
	num, typ, repr := s.scanNumber()

	if s.read(); s.peekIdent() {
		unit := s.scanName()
		return &token.Dimension{Type: typ, Value: repr + unit, Number: num, Unit: unit, Pos: pos}
	}
	s.unread(1)

	if s.accept('%') {
		return &token.Percentage{Type: typ, Value: repr + "%", Number: num, Pos: pos}
	}
	return &token.Number{Type: typ, Value: repr, Number: num, Pos: pos}
}

// scanNumber reads an optionally signed number with optional fraction and
// exponent. typ is "number" when either is present, "integer" otherwise.
func (s *Scanner) scanNumber() (num float64, typ, repr string) {
	var sb strings.Builder
	typ = "integer"

	if ch := s.read(); ch == '+' || ch == '-' {
		sb.WriteRune(ch)
	} else {
		s.unread(1)
	}
	sb.WriteString(s.scanDigits())

	if s.accept('.') {
		if s.peekDigit() {
			typ = "number"
			sb.WriteByte('.')
			sb.WriteString(s.scanDigits())
		} else {
			s.unread(1)
		}
	}

	if e := s.read(); e == 'e' || e == 'E' {
		n := 1
		sign := s.read()
		if sign == '+' || sign == '-' {
			n++
		} else {
			s.unread(1)
		}
		if s.peekDigit() {
			typ = "number"
			sb.WriteRune(e)
			if n == 2 {
				sb.WriteRune(sign)
			}
			sb.WriteString(s.scanDigits())
		} else {
			s.unread(n)
		}
	} else {
		s.unread(1)
	}

	repr = sb.String()
	num, _ = strconv.ParseFloat(repr, 64)
	return num, typ, repr
}

func (s *Scanner) scanDigits() string {
	return s.scanWhile(-1, isDigit)
}

// scanWhile reads at most limit code points (no limit when negative) that
// satisfy fn.
func (s *Scanner) scanWhile(limit int, fn func(rune) bool) string {
	var sb strings.Builder
	for i := 0; limit < 0 || i < limit; i++ {
		ch := s.read()
		if !fn(ch) {
			s.unread(1)
			break
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// scanComment skips to just past the next "*/", or to end of input.
func (s *Scanner) scanComment() {
	for ch := s.read(); ch != eof; ch = s.read() {
		if ch == '*' && s.accept('/') {
			return
		}
	}
	s.unread(1)
}

// scanHash reads a hash token after '#', typed "id" when the name is also
// a valid identifier. A '#' without a name is a delimiter.
func (s *Scanner) scanHash() token.Token {
	pos := s.Pos()

	if ch := s.read(); !isName(ch) && !s.peekEscape() {
		s.unread(1)
		return &token.Delim{Value: "#", Pos: pos}
	}

	typ := "unrestricted"
	if s.peekIdent() {
		typ = "id"
	}
	return &token.Hash{Value: s.scanName(), Type: typ, Pos: pos}
}

// scanName reads name code points and escapes, starting with the current
// code point.
func (s *Scanner) scanName() string {
	var sb strings.Builder
	s.unread(1)
	for {
		if ch := s.read(); isName(ch) {
			sb.WriteRune(ch)
		} else if s.peekEscape() {
			sb.WriteRune(s.scanEscape())
		} else {
			s.unread(1)
			return sb.String()
		}
	}
}

// scanIdent reads an identifier, function or url token.
func (s *Scanner) scanIdent() token.Token {
	pos := s.Pos()
	v := s.scanName()

	if !s.accept('(') {
		return &token.Ident{Value: v, Pos: pos}
	}
	if strings.EqualFold(v, "url") {
		return s.scanURL(pos)
	}
	return &token.Function{Value: v, Pos: pos}
}

// scanURL reads the rest of a url token after "url(".
func (s *Scanner) scanURL(pos token.Pos) token.Token {
	s.skipWhitespace()

	switch ch := s.read(); ch {
	case eof:
		return &token.URL{Pos: pos}
	case '"', '\'':
		return s.scanQuotedURL(pos)
	}
	s.unread(1)

	var sb strings.Builder
	for {
		switch ch := s.read(); {
		case ch == ')' || ch == eof:
			return &token.URL{Value: sb.String(), Pos: pos}
		case isWhitespace(ch):
			s.scanWhitespace()
			if ch := s.read(); ch == ')' || ch == eof {
				return &token.URL{Value: sb.String(), Pos: pos}
			}
			return s.badURL(pos)
		case ch == '"' || ch == '\'' || ch == '(' || isNonPrintable(ch):
			s.Errors = append(s.Errors, &Error{Message: fmt.Sprintf("invalid url code point: %c (%U)", ch, ch), Pos: pos})
			return s.badURL(pos)
		case ch != '\\':
			sb.WriteRune(ch)
		case s.peekEscape():
			sb.WriteRune(s.scanEscape())
		default:
			s.Errors = append(s.Errors, &Error{Message: "unescaped \\ in url", Pos: s.Pos()})
			return s.badURL(pos)
		}
	}
}

// scanQuotedURL reads a url whose value is the string opened by the current
// quote.
func (s *Scanner) scanQuotedURL(pos token.Pos) token.Token {
	str, ok := s.scanString().(*token.String)
	if !ok {
		return s.badURL(pos)
	}

	s.skipWhitespace()
	if ch := s.read(); ch != ')' && ch != eof {
		return s.badURL(pos)
	}
	return &token.URL{Value: str.Value, Pos: pos}
}

// badURL skips the remains of a malformed url, up to and including ')'.
func (s *Scanner) badURL(pos token.Pos) token.Token {
	for {
		ch := s.read()
		if ch == ')' {
			break
		} else if ch == eof {
			s.unread(1)
			break
		} else if s.peekEscape() {
			s.scanEscape()
		}
	}
	return &token.BadURL{Pos: pos}
}

func (s *Scanner) skipWhitespace() {
	if ch := s.read(); isWhitespace(ch) {
		s.scanWhitespace()
	} else {
		s.unread(1)
	}
}

// scanUnicodeRange reads a unicode-range token after "u+". Trailing '?'
// wildcards span the range from 0 to F in their positions.
func (s *Scanner) scanUnicodeRange(pos token.Pos) token.Token {
	digits := s.scanWhile(6, isHexDigit)
	masked := digits + s.scanWhile(6-len(digits), func(ch rune) bool { return ch == '?' })
	if len(masked) > len(digits) {
		return &token.UnicodeRange{
			Start: parseHex(strings.ReplaceAll(masked, "?", "0")),
			End:   parseHex(strings.ReplaceAll(masked, "?", "F")),
			Pos:   pos,
		}
	}

	start := parseHex(digits)
	end := start
	if ch1, ch2 := s.read(), s.read(); ch1 == '-' && isHexDigit(ch2) {
		s.unread(1)
		end = parseHex(s.scanWhile(6, isHexDigit))
	} else {
		s.unread(2)
	}
	return &token.UnicodeRange{Start: start, End: end, Pos: pos}
}

func parseHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 0)
	return int(v)
}

// scanEscape reads the code point escaped by the backslash just read. A
// hex escape is up to six digits plus one optional whitespace code point.
func (s *Scanner) scanEscape() rune {
	ch := s.read()
	switch {
	case ch == eof:
		s.unread(1)
		return utf8.RuneError
	case !isHexDigit(ch):
		return ch
	}

	hex := string(ch) + s.scanWhile(5, isHexDigit)
	if len(hex) < 6 && !isWhitespace(s.read()) {
		s.unread(1)
	}
	v := parseHex(hex)
	if v == 0 || v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
		return utf8.RuneError
	}
	return rune(v)
}

// peekEscape reports whether the current code point starts a valid escape.
func (s *Scanner) peekEscape() bool {
	if s.curr() != '\\' {
		return false
	}
	next := s.read()
	s.unread(1)
	return next != '\n'
}

// peekIdent reports whether the current code point starts an identifier.
func (s *Scanner) peekIdent() bool {
	ch := s.curr()
	if ch != '-' {
		return isNameStart(ch) || (ch == '\\' && s.peekEscape())
	}

	ch1, ch2 := s.read(), s.read()
	s.unread(2)
	return ch1 == '-' || isNameStart(ch1) || (ch1 == '\\' && ch2 != '\n')
}

func (s *Scanner) peekDigit() bool {
	ch := s.read()
	s.unread(1)
	return isDigit(ch)
}

// accept consumes the next code point if it is want.
func (s *Scanner) accept(want rune) bool {
	if s.read() == want {
		return true
	}
	s.unread(1)
	return false
}

// acceptAll consumes lit if the next code points spell it, and nothing
// otherwise. lit must be shorter than the lookahead.
func (s *Scanner) acceptAll(lit string) bool {
	var n int
	for _, want := range lit {
		n++
		if s.read() != want {
			s.unread(n)
			return false
		}
	}
	return true
}

// read returns the next code point, taking unread ones first.
func (s *Scanner) read() rune {
	if s.pending > 0 {
		s.pending--
		s.head = (s.head + 1) % lookahead
		return s.ring[s.head]
	}

	pos := token.Pos{Line: s.line, Char: s.char, Offset: s.off}
	ch := s.decode()

	s.head = (s.head + 1) % lookahead
	s.ring[s.head], s.ringPos[s.head] = ch, pos
	return ch
}

// decode reads a code point from the source, folding CR, CRLF and FF into
// LF and NUL into U+FFFD, and advances the line and char counters.
func (s *Scanner) decode() rune {
	if s.off >= len(s.src) {
		return eof
	}
	ch, size := utf8.DecodeRuneInString(s.src[s.off:])
	s.off += size

	switch ch {
	case '\r':
		if s.off < len(s.src) && s.src[s.off] == '\n' {
			s.off++
		}
		ch = '\n'
	case '\f':
		ch = '\n'
	case 0:
		ch = utf8.RuneError
	}

	if ch == '\n' {
		s.line, s.char = s.line+1, 0
	} else {
		s.char++
	}
	return ch
}

// unread steps back n code points.
func (s *Scanner) unread(n int) {
	s.pending += n
	s.head = ((s.head-n)%lookahead + lookahead) % lookahead
}

func (s *Scanner) curr() rune {
	return s.ring[s.head]
}

// Pos returns the position of the current code point.
func (s *Scanner) Pos() token.Pos {
	return s.ringPos[s.head]
}

func isWhitespace(ch rune) bool { return ch == ' ' || ch == '\t' || ch == '\n' }
func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// isNameStart covers letters, '_' and everything outside ASCII.
func isNameStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isName(ch rune) bool {
	return isNameStart(ch) || isDigit(ch) || ch == '-'
}

func isNonPrintable(ch rune) bool {
	return (ch >= 0 && ch <= 0x08) || ch == 0x0B || (ch >= 0x0E && ch <= 0x1F) || ch == 0x7F
}

// Error is a recoverable scan fault.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Message
}
