package encode

import (
	"github.com/valyala/fastjson"

	"github.com/Discord-CSS-Datamining/discord-css-differ/ast"
)

var arenas fastjson.ArenaPool

// AppendJSON appends the JSON form of ss to dst and returns the result.
//
// Selectors are written in their canonical text form. Positions of opaque
// blocks are one-based, matching diagnostics.
func AppendJSON(dst []byte, ss *ast.StyleSheet) []byte {
	a := arenas.Get()
	defer arenas.Put(a)

	if ss == nil {
		ss = &ast.StyleSheet{}
	}
	root := a.NewObject()
	root.Set("rules", jsonRules(a, ss.Rules))
	root.Set("opaque", jsonOpaque(a, ss.Opaque))

	return root.MarshalTo(dst)
}

func jsonOpaque(a *fastjson.Arena, blocks []*ast.OpaqueBlock) *fastjson.Value {
	arr := a.NewArray()
	for i, b := range blocks {
		o := a.NewObject()
		o.Set("keyword", a.NewString(b.Keyword))
		if b.Name != "" {
			o.Set("name", a.NewString(b.Name))
		}
		o.Set("prelude", a.NewString(b.Prelude))
		o.Set("body", a.NewString(b.Body))
		o.Set("line", a.NewNumberInt(b.Pos.Line+1))
		o.Set("char", a.NewNumberInt(b.Pos.Char+1))
		arr.SetArrayItem(i, o)
	}
	return arr
}

// JSON returns the JSON form of ss.
func JSON(ss *ast.StyleSheet) []byte {
	return AppendJSON(nil, ss)
}

func jsonRules(a *fastjson.Arena, rules ast.Rules) *fastjson.Value {
	arr := a.NewArray()
	var n int
	for _, r := range rules {
		if r == nil {
			continue
		}
		o := a.NewObject()
		if r.AtRule != nil {
			at := a.NewObject()
			at.Set("name", a.NewString(r.AtRule.Name))
			at.Set("prelude", a.NewString(r.AtRule.Prelude))
			if r.AtRule.ContainerName != "" {
				at.Set("containerName", a.NewString(r.AtRule.ContainerName))
			}
			if r.AtRule.Condition != nil {
				at.Set("condition", jsonDecls(a, r.AtRule.Condition))
			}
			o.Set("atRule", at)
			if len(r.Opaque) > 0 {
				o.Set("opaque", jsonOpaque(a, r.Opaque))
			}
		} else {
			o.Set("selector", a.NewString(r.Selector.String()))
		}
		o.Set("declarations", jsonDecls(a, r.Declarations))
		o.Set("children", jsonRules(a, r.Children))
		arr.SetArrayItem(n, o)
		n++
	}
	return arr
}

func jsonDecls(a *fastjson.Arena, decls ast.Declarations) *fastjson.Value {
	arr := a.NewArray()
	for i, d := range decls {
		o := a.NewObject()
		o.Set("key", a.NewString(d.Key))
		o.Set("value", a.NewString(d.Value))
		arr.SetArrayItem(i, o)
	}
	return arr
}
