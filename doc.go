/*
Package css extracts the rule structure of a stylesheet: which selectors
exist, which declarations each one carries and which conditional at-rules
they are nested in. It is meant for tracking how a large generated
stylesheet changes between releases, not for rendering pages.


Basics

Parsing occurs in two steps. First the scanner breaks up the source text into
tokens such as identifiers, whitespace, strings and block delimiters. The
tokens are then fed to the parser, which reads them through a stream that
can look ahead, rewind and enter {}, [], () and function blocks as scoped
sub-streams.


Rule Tree

A parsed StyleSheet is a list of RuleNodes. A selector list such as
".a, .b { color: red }" becomes one node per selector, each with its own copy
of the declarations. A selector is a sequence of atoms (type, class, id,
universal, attribute and pseudo-class selectors) joined by combinators.

Declaration values are kept as the raw source text between the colon and the
semicolon. Values are never interpreted.

The conditional group rules @media, @supports and @container become nodes
with children. Their conditions are kept as raw text, except that a
@container condition of the form "(name: value)" is also read as a
declaration.

Other at-rules are either captured as opaque text (@keyframes, @font-face,
@import and the @value and @use directives) or rejected. Opaque text found
inside a group at-rule stays on that group's node; the rest is kept on the
stylesheet.


Errors

A fault inside one rule, such as a declaration without a colon, is recorded
and the rule is skipped or left without declarations. A fault that leaves the
structure of the stylesheet unknown, such as an unsupported at-rule, ends the
parse. In both cases the rules read so far are returned along with a
parser.ErrorList.
*/
package css
