package css

import (
	"io"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
	"github.com/Discord-CSS-Datamining/discord-css-differ/scanner"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
)

// Parse reads a stylesheet from r and parses it into a rule tree.
//
// The returned stylesheet is never nil unless r cannot be read. Tokenizer
// faults, such as an unterminated string, are reported before parser
// faults in the same error list.
func Parse(r io.Reader, opts ...parser.Option) (*ast.StyleSheet, error) {
	s, err := scanner.New(r)
	if err != nil {
		return nil, err
	}
	return parse(s, opts)
}

// ParseString parses a stylesheet held in memory.
func ParseString(src string, opts ...parser.Option) (*ast.StyleSheet, error) {
	return parse(scanner.NewString(src), opts)
}

func parse(s *scanner.Scanner, opts []parser.Option) (*ast.StyleSheet, error) {
	tokens := s.ScanAll()
	ss, err := parser.Parse(stream.New(s.Source(), tokens), opts...)

	if len(s.Errors) == 0 {
		return ss, err
	}
	var errs parser.ErrorList
	for _, e := range s.Errors {
		errs = append(errs, e)
	}
	if list, ok := err.(parser.ErrorList); ok {
		errs = append(errs, list...)
	}
	return ss, errs
}
