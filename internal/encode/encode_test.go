package encode_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	css "github.com/Discord-CSS-Datamining/discord-css-differ"
	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/encode"
	"github.com/Discord-CSS-Datamining/discord-css-differ/parser"
)

func mustParse(t *testing.T, src string) *ast.StyleSheet {
	t.Helper()
	ss, err := css.ParseString(src)
	require.NoError(t, err)
	return ss
}

// Ensure a decoded tree equals the tree that was encoded.
func TestCBOR_RoundTrip(t *testing.T) {
	src, err := os.ReadFile("../../testdata/sample.css")
	require.NoError(t, err)

	for _, in := range []string{
		string(src),
		`svg|a[ns|x~="y" i] + b ~ *:not(.c) {}`,
		`@container (a: b) { #id > * { k: v !important } }`,
		`@media print { @font-face { src: url(a.woff) } .a:not() {} @import "b.css"; }`,
		``,
	} {
		ss := mustParse(t, in)
		data, err := encode.MarshalCBOR(ss)
		require.NoError(t, err)

		got, err := encode.UnmarshalCBOR(data)
		require.NoError(t, err)
		if diff := cmp.Diff(ss, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%q: decoded tree mismatch (-want +got):\n%s", in, diff)
		}
	}
}

// Ensure the deepest tree the parser accepts, and long compound
// selectors, decode again.
func TestCBOR_Deep(t *testing.T) {
	n := parser.MaxDepthLimit
	src := strings.Repeat("@media a {", n) + ".x[y]" + strings.Repeat(":hover", 3000) + " {}" + strings.Repeat("}", n)

	ss, err := css.ParseString(src, parser.WithMaxDepth(n))
	require.NoError(t, err)

	data, err := encode.MarshalCBOR(ss)
	require.NoError(t, err)
	got, err := encode.UnmarshalCBOR(data)
	require.NoError(t, err)
	if diff := cmp.Diff(ss, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("decoded tree mismatch (-want +got):\n%s", diff)
	}
}

// Ensure encoding is deterministic and sensitive to content.
func TestFingerprint(t *testing.T) {
	a1, err := encode.Fingerprint(mustParse(t, `.a { x: y } .b { z: w }`))
	require.NoError(t, err)
	a2, err := encode.Fingerprint(mustParse(t, `.a{x:y}.b{z:w}`))
	require.NoError(t, err)
	b, err := encode.Fingerprint(mustParse(t, `.b { z: w } .a { x: y }`))
	require.NoError(t, err)

	assert.Len(t, a1, 64)
	assert.Equal(t, a1, a2, "whitespace must not change the tree")
	assert.NotEqual(t, a1, b, "rule order is significant")

	empty, err := encode.Fingerprint(nil)
	require.NoError(t, err)
	assert.Len(t, empty, 64)
}

// Ensure source keys depend only on the bytes.
func TestSourceKey(t *testing.T) {
	assert.Equal(t, encode.SourceKey([]byte(".a{}")), encode.SourceKey([]byte(".a{}")))
	assert.NotEqual(t, encode.SourceKey([]byte(".a{}")), encode.SourceKey([]byte(".a {}")))
}

// Ensure malformed or foreign payloads are rejected.
func TestUnmarshalCBOR_Errors(t *testing.T) {
	_, err := encode.UnmarshalCBOR([]byte{0xff, 0x00})
	assert.Error(t, err)

	data, err := cbor.Marshal(map[string]any{"Version": 99})
	require.NoError(t, err)
	_, err = encode.UnmarshalCBOR(data)
	assert.True(t, errors.Is(err, encode.ErrVersion), "got %v", err)

	data, err = cbor.Marshal(map[string]any{
		"Version": encode.Version,
		"Rules": []any{map[string]any{
			"Selector": []any{map[string]any{"Atoms": []any{map[string]any{"Type": "bogus"}}}},
		}},
	})
	require.NoError(t, err)
	_, err = encode.UnmarshalCBOR(data)
	assert.EqualError(t, err, `unknown atom type "bogus"`)
}

// Ensure the JSON form carries selectors, declarations and opaque blocks.
func TestJSON(t *testing.T) {
	ss := mustParse(t, `.a, .b > c { x: "1" } @media print { d { y: z } } @keyframes k { to {} }`)

	v, err := fastjson.ParseBytes(encode.JSON(ss))
	require.NoError(t, err)

	rules := v.GetArray("rules")
	require.Len(t, rules, 3)
	assert.Equal(t, ".a", string(rules[0].GetStringBytes("selector")))
	assert.Equal(t, ".b > c", string(rules[1].GetStringBytes("selector")))
	assert.Equal(t, `"1"`, string(rules[1].GetStringBytes("declarations", "0", "value")))
	assert.Equal(t, "media", string(rules[2].GetStringBytes("atRule", "name")))
	assert.Equal(t, "print", string(rules[2].GetStringBytes("atRule", "prelude")))
	assert.Equal(t, "d", string(rules[2].GetStringBytes("children", "0", "selector")))
	assert.Empty(t, rules[2].GetArray("declarations"))

	opaque := v.GetArray("opaque")
	require.Len(t, opaque, 1)
	assert.Equal(t, "keyframes", string(opaque[0].GetStringBytes("keyword")))
	assert.Equal(t, "k", string(opaque[0].GetStringBytes("name")))
	assert.Equal(t, 1, opaque[0].GetInt("line"))
}

// Ensure opaque blocks nested in a group at-rule stay with it.
func TestJSON_NestedOpaque(t *testing.T) {
	ss := mustParse(t, "@media print {\n  @font-face { src: x }\n}")

	v, err := fastjson.ParseBytes(encode.JSON(ss))
	require.NoError(t, err)
	assert.Empty(t, v.GetArray("opaque"))

	nested := v.GetArray("rules", "0", "opaque")
	require.Len(t, nested, 1)
	assert.Equal(t, "font-face", string(nested[0].GetStringBytes("keyword")))
	assert.Equal(t, 2, nested[0].GetInt("line"))
}

// Ensure a nil stylesheet renders as an empty document.
func TestJSON_Nil(t *testing.T) {
	assert.Equal(t, `{"rules":[],"opaque":[]}`, string(encode.JSON(nil)))
}
