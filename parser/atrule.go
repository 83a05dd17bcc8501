package parser

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// atRuleKind describes how the body of an at-rule is read.
type atRuleKind int

const (
	groupRule     atRuleKind = iota // prelude then nested rules
	containerRule                   // [name] (condition) then nested rules
	keyframesRule                   // name then opaque block
	blockRule                       // opaque block
	statementRule                   // prelude up to ";"
	customRule                      // statement, only with custom at-rules enabled
)

var atRules = map[string]atRuleKind{
	"media":             groupRule,
	"supports":          groupRule,
	"container":         containerRule,
	"keyframes":         keyframesRule,
	"-webkit-keyframes": keyframesRule,
	"-moz-keyframes":    keyframesRule,
	"-o-keyframes":      keyframesRule,
	"-ms-keyframes":     keyframesRule,
	"font-face":         blockRule,
	"import":            statementRule,
	"value":             customRule,
	"use":               customRule,
}

// parseAtRule reads the at-rule whose keyword was just read. Group rules
// return a node; the others are recorded as opaque blocks.
func (p *parser) parseAtRule(s *stream.Stream, kw *token.AtKeyword) (*ast.RuleNode, error) {
	name := strings.ToLower(kw.Value)
	kind, ok := atRules[name]
	if !ok || (kind == customRule && !p.customAtRules) {
		return nil, p.unsupportedAtRule(kw)
	}

	switch kind {
	case groupRule:
		prelude, err := s.SkipUntilCurlyBlock()
		if err != nil {
			return nil, wrapError(nil, err)
		}
		node := &ast.RuleNode{AtRule: &ast.AtRule{Name: name, Prelude: strings.TrimSpace(prelude)}}
		return node, p.parseGroupBody(s, kw, node)

	case containerRule:
		return p.parseContainer(s, kw)

	case keyframesRule:
		start := s.Position()
		animation, err := s.ExpectIdentOrString()
		if err != nil {
			return nil, wrapError(nil, err)
		}
		prelude := strings.TrimSpace(s.SliceFrom(start))
		if err := s.ExpectCurlyBlock(); err != nil {
			return nil, wrapError(nil, err)
		}
		p.opaque(kw, animation, prelude, blockBody(s))
		return nil, nil

	case blockRule:
		prelude, err := s.SkipUntilCurlyBlock()
		if err != nil {
			return nil, wrapError(nil, err)
		}
		p.opaque(kw, "", strings.TrimSpace(prelude), blockBody(s))
		return nil, nil

	default:
		p.opaque(kw, "", strings.TrimSpace(s.SkipStatement()), "")
		return nil, nil
	}
}

// parseContainer reads "@container [name] (condition) { rules }". A
// condition that is not a single declaration, such as a range query, is
// kept only in the prelude.
func (p *parser) parseContainer(s *stream.Stream, kw *token.AtKeyword) (*ast.RuleNode, error) {
	at := &ast.AtRule{Name: "container"}
	start := s.Position()
	if ident, ok := s.Peek().(*token.Ident); ok {
		s.Next()
		at.ContainerName = ident.Value
	}

	if err := s.ExpectParenBlock(); err != nil {
		return nil, wrapError(nil, err)
	}
	_ = s.ParseNestedBlock(func(s *stream.Stream) error {
		decls, err := p.parseDeclarations(s)
		if err != nil {
			p.logger.Debug("container condition kept as text", "pos", kw.Pos.String(), "error", err)
			return nil
		}
		at.Condition = decls
		return nil
	})
	at.Prelude = strings.TrimSpace(s.SliceFrom(start))

	if err := s.ExpectCurlyBlock(); err != nil {
		return nil, wrapError(nil, err)
	}
	node := &ast.RuleNode{AtRule: at}
	return node, p.parseGroupBody(s, kw, node)
}

// parseGroupBody parses the nested rules of a group at-rule into node.
func (p *parser) parseGroupBody(s *stream.Stream, kw *token.AtKeyword, node *ast.RuleNode) error {
	outer := p.group
	p.group = node
	defer func() { p.group = outer }()

	err := p.parseBlock(s, kw.Pos, func(s *stream.Stream) (err error) {
		node.Children, err = p.parseRules(s)
		return err
	})
	p.logger.Debug("at-rule", "pos", kw.Pos.String(), "name", node.AtRule.Name, "rules", len(node.Children))
	return err
}

// opaque records an at-rule whose content is kept as text, on the
// enclosing group at-rule or on the stylesheet at the top level.
func (p *parser) opaque(kw *token.AtKeyword, name, prelude, body string) {
	b := &ast.OpaqueBlock{
		Keyword: kw.Value,
		Name:    name,
		Prelude: prelude,
		Body:    body,
		Pos:     kw.Pos,
	}
	if p.group != nil {
		p.group.Opaque = append(p.group.Opaque, b)
	} else {
		p.sheet.Opaque = append(p.sheet.Opaque, b)
	}
	p.logger.Debug("opaque at-rule", "pos", kw.Pos.String(), "keyword", kw.Value)
}

// blockBody consumes the block just read and returns its source text.
func blockBody(s *stream.Stream) string {
	var body string
	_ = s.ParseNestedBlock(func(s *stream.Stream) error {
		body = s.ConsumeRest()
		return nil
	})
	return body
}

// unsupportedAtRule returns an error naming the closest supported keyword.
func (p *parser) unsupportedAtRule(kw *token.AtKeyword) error {
	err := newError(ErrUnsupportedAtRule, kw.Pos, "@%s", kw.Value)
	if match := closestAtRule(strings.ToLower(kw.Value), p.customAtRules); match != "" {
		err.Message += ", did you mean @" + match + "?"
	}
	return err
}

// closestAtRule finds the supported keyword closest to name.
func closestAtRule(name string, custom bool) string {
	var candidates []string
	for keyword, kind := range atRules {
		if kind == customRule && !custom {
			continue
		}
		candidates = append(candidates, keyword)
	}
	sort.Strings(candidates)

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return ranks[0].Target
}
