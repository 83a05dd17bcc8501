package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

// Node represents a node in the stylesheet rule tree.
type Node interface {
	node()
	String() string
}

func (_ *StyleSheet) node()   {}
func (_ Rules) node()         {}
func (_ *RuleNode) node()     {}
func (_ *AtRule) node()       {}
func (_ *OpaqueBlock) node()  {}
func (_ Declarations) node()  {}
func (_ *Declaration) node()  {}
func (_ SelectorList) node()  {}
func (_ Selector) node()      {}
func (_ *Universal) node()    {}
func (_ *Type) node()         {}
func (_ *Class) node()        {}
func (_ *ID) node()           {}
func (_ *Attribute) node()    {}
func (_ *PseudoClass) node()  {}
func (_ AttributeSpec) node() {}

// StyleSheet represents a parsed stylesheet.
type StyleSheet struct {
	Rules Rules

	// Opaque holds at-rules whose bodies are captured but not parsed,
	// such as @keyframes and @font-face, in source order.
	Opaque []*OpaqueBlock
}

func (s *StyleSheet) String() string {
	var buf bytes.Buffer
	for _, r := range s.Rules {
		buf.WriteString(r.String())
		buf.WriteString("\n")
	}
	return buf.String()
}

// Rules represents an ordered list of rule nodes.
type Rules []*RuleNode

func (a Rules) String() string {
	var buf bytes.Buffer
	for i, r := range a {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(r.String())
	}
	return buf.String()
}

// Clone returns a deep copy of the rules.
func (a Rules) Clone() Rules {
	if a == nil {
		return nil
	}
	other := make(Rules, len(a))
	for i, r := range a {
		other[i] = r.Clone()
	}
	return other
}

// RuleNode is a single selector with its declarations, or a conditional
// group at-rule (@media, @supports, @container) with its nested rules.
//
// Only nodes with an AtRule have Children or Opaque blocks. A selector
// block never does.
type RuleNode struct {
	Selector     Selector
	Declarations Declarations
	Children     Rules
	AtRule       *AtRule

	// Opaque holds the opaque at-rules nested directly in a group at-rule.
	Opaque []*OpaqueBlock
}

func (r *RuleNode) String() string {
	var buf bytes.Buffer
	if r.AtRule != nil {
		buf.WriteString(r.AtRule.String())
	} else {
		buf.WriteString(r.Selector.String())
	}
	buf.WriteString(" {")
	if len(r.Declarations) > 0 {
		buf.WriteString(" ")
		buf.WriteString(r.Declarations.String())
	}
	if len(r.Children) > 0 {
		buf.WriteString(" ")
		buf.WriteString(r.Children.String())
	}
	for _, b := range r.Opaque {
		buf.WriteString(" ")
		buf.WriteString(b.String())
	}
	buf.WriteString(" }")
	return buf.String()
}

// Clone returns a deep copy of the node.
func (r *RuleNode) Clone() *RuleNode {
	if r == nil {
		return nil
	}
	other := &RuleNode{
		Selector:     r.Selector.Clone(),
		Declarations: r.Declarations.Clone(),
		Children:     r.Children.Clone(),
	}
	if r.AtRule != nil {
		at := *r.AtRule
		at.Condition = r.AtRule.Condition.Clone()
		other.AtRule = &at
	}
	for _, b := range r.Opaque {
		c := *b
		other.Opaque = append(other.Opaque, &c)
	}
	return other
}

// AtRule describes the conditional group rule that produced a RuleNode.
type AtRule struct {
	// Name is the at-keyword without the "@", lower-cased.
	Name string

	// Prelude is the raw text between the keyword and the block.
	Prelude string

	// ContainerName is the optional name of a @container rule.
	ContainerName string

	// Condition is the parenthesized @container condition.
	Condition Declarations
}

func (r *AtRule) String() string {
	if r.Prelude == "" {
		return "@" + r.Name
	}
	return "@" + r.Name + " " + r.Prelude
}

// OpaqueBlock is an at-rule captured as raw text.
type OpaqueBlock struct {
	// Keyword is the at-keyword as written, without the "@".
	Keyword string

	// Name is the @keyframes animation name, if any.
	Name string

	// Prelude is the raw text between the keyword and the block or semicolon.
	Prelude string

	// Body is the raw text inside the block. Empty for statements.
	Body string

	Pos token.Pos
}

func (b *OpaqueBlock) String() string {
	var buf bytes.Buffer
	buf.WriteString("@" + b.Keyword)
	if b.Prelude != "" {
		buf.WriteString(" " + b.Prelude)
	}
	if b.Body == "" && b.Name == "" && !isBlockKeyword(b.Keyword) {
		buf.WriteString(";")
		return buf.String()
	}
	buf.WriteString(" {" + b.Body + "}")
	return buf.String()
}

func isBlockKeyword(keyword string) bool {
	keyword = strings.ToLower(keyword)
	return keyword == "font-face" || strings.HasSuffix(keyword, "keyframes")
}

// Declarations represents an ordered list of declarations.
type Declarations []Declaration

func (a Declarations) String() string {
	var buf bytes.Buffer
	for i := range a {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(a[i].String())
	}
	return buf.String()
}

// Clone returns a copy of the list.
func (a Declarations) Clone() Declarations {
	if a == nil {
		return nil
	}
	return append(Declarations(nil), a...)
}

// Declaration represents a key/value pair. Value is the raw source text
// after the colon, including any !important flag.
type Declaration struct {
	Key   string
	Value string
}

func (d *Declaration) String() string {
	return d.Key + ": " + d.Value + ";"
}

// SelectorList represents comma-separated selectors in source order.
type SelectorList []Selector

func (a SelectorList) String() string {
	s := make([]string, len(a))
	for i, sel := range a {
		s[i] = sel.String()
	}
	return strings.Join(s, ", ")
}

// Selector represents a compound selector sequence: atoms joined by combinators.
type Selector []Expression

func (a Selector) String() string {
	var buf bytes.Buffer
	for _, e := range a {
		if e.Atom != nil {
			buf.WriteString(e.Atom.String())
			continue
		}
		switch e.Combinator {
		case Descendant:
			buf.WriteString(" ")
		case Namespace, Column:
			buf.WriteString(e.Combinator.String())
		default:
			buf.WriteString(" " + e.Combinator.String() + " ")
		}
	}
	return buf.String()
}

// Clone returns a copy of the sequence. Atoms are immutable and shared.
func (a Selector) Clone() Selector {
	if a == nil {
		return nil
	}
	return append(Selector(nil), a...)
}

// Expression is one entry of a compound selector sequence. Exactly one of
// Atom and Combinator is set.
type Expression struct {
	Atom       Atom
	Combinator Combinator
}

// AtomExpr returns an expression holding an atom.
func AtomExpr(a Atom) Expression {
	return Expression{Atom: a}
}

// CombinatorExpr returns an expression holding a combinator.
func CombinatorExpr(c Combinator) Expression {
	return Expression{Combinator: c}
}

// IsCombinator returns true if the expression holds a combinator.
func (e Expression) IsCombinator() bool {
	return e.Atom == nil
}

// Combinator joins two atoms of a selector sequence.
type Combinator int

const (
	Descendant        Combinator = iota + 1 // whitespace
	Child                                   // >
	NextSibling                             // +
	SubsequentSibling                       // ~
	Namespace                               // |
	Column                                  // ||, reserved
)

var combinators = [...]string{
	Descendant:        " ",
	Child:             ">",
	NextSibling:       "+",
	SubsequentSibling: "~",
	Namespace:         "|",
	Column:            "||",
}

// String returns the combinator's source form.
func (c Combinator) String() string {
	if c > 0 && int(c) < len(combinators) {
		return combinators[c]
	}
	return ""
}

// Atom represents a simple selector.
type Atom interface {
	Node
	atom()
}

func (_ *Universal) atom()   {}
func (_ *Type) atom()        {}
func (_ *Class) atom()       {}
func (_ *ID) atom()          {}
func (_ *Attribute) atom()   {}
func (_ *PseudoClass) atom() {}

// Universal represents "*".
type Universal struct{}

func (a *Universal) String() string { return "*" }

// Type represents an element type selector such as "div".
type Type struct {
	Name string
}

func (a *Type) String() string { return a.Name }

// Class represents ".name".
type Class struct {
	Name string
}

func (a *Class) String() string { return "." + a.Name }

// ID represents "#name".
type ID struct {
	Name string
}

func (a *ID) String() string { return "#" + a.Name }

// Attribute refines an atom with an attribute selector.
type Attribute struct {
	Atom Atom
	Spec AttributeSpec
}

func (a *Attribute) String() string {
	if _, ok := a.Atom.(*Universal); ok {
		return a.Spec.String()
	}
	return a.Atom.String() + a.Spec.String()
}

// PseudoClass refines an atom with a pseudo-class such as ":hover" or ":not(.a)".
type PseudoClass struct {
	Atom Atom
	Name string

	// Function is set for the functional form, as in ":not(.a)" or ":not()".
	Function bool

	// Args is the raw argument text of a functional pseudo-class.
	Args string
}

// IsFunction returns true for functional pseudo-classes.
func (a *PseudoClass) IsFunction() bool {
	return a.Function
}

func (a *PseudoClass) String() string {
	var prefix string
	if _, ok := a.Atom.(*Universal); !ok {
		prefix = a.Atom.String()
	}
	if a.IsFunction() {
		return prefix + ":" + a.Name + "(" + a.Args + ")"
	}
	return prefix + ":" + a.Name
}

// AttributeSpec is the content of an attribute selector,
// "[ns|name op value i]".
type AttributeSpec struct {
	// Namespace is the namespace prefix; "*" matches any namespace.
	Namespace string

	Name     string
	Operator AttributeOperator

	// Value is set when Operator is not NoOperator.
	Value string

	// CaseInsensitive is set by the "i" modifier.
	CaseInsensitive bool
}

func (s AttributeSpec) String() string {
	var buf bytes.Buffer
	buf.WriteString("[")
	if s.Namespace != "" {
		buf.WriteString(s.Namespace + "|")
	}
	buf.WriteString(s.Name)
	if s.Operator != NoOperator {
		buf.WriteString(s.Operator.String())
		buf.WriteString(strconv.Quote(s.Value))
		if s.CaseInsensitive {
			buf.WriteString(" i")
		}
	}
	buf.WriteString("]")
	return buf.String()
}

// AttributeOperator is the matcher of an attribute selector.
type AttributeOperator int

const (
	NoOperator AttributeOperator = iota
	Equals                       // =
	Includes                     // ~=
	DashMatch                    // |=
	Prefix                       // ^=
	Suffix                       // $=
	Substring                    // *=
)

var operators = [...]string{
	NoOperator: "",
	Equals:     "=",
	Includes:   "~=",
	DashMatch:  "|=",
	Prefix:     "^=",
	Suffix:     "$=",
	Substring:  "*=",
}

// String returns the operator's source form.
func (op AttributeOperator) String() string {
	if op >= 0 && int(op) < len(operators) {
		return operators[op]
	}
	return ""
}

// Walk visits every rule in depth-first order. fn receives the rule and
// its nesting depth; returning false skips the rule's children.
func Walk(rules Rules, fn func(r *RuleNode, depth int) bool) {
	walk(rules, 0, fn)
}

func walk(rules Rules, depth int, fn func(*RuleNode, int) bool) {
	for _, r := range rules {
		if fn(r, depth) {
			walk(r.Children, depth+1, fn)
		}
	}
}
