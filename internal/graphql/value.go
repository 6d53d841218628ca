package graphql

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// parseLiteral returns literal as a GraphQL value when it is exactly one
// value, and as a string value holding the raw text otherwise.
func parseLiteral(literal string) *ast.Value {
	if v := singleValue(literal); v != nil {
		return v
	}
	return &ast.Value{Kind: ast.StringValue, Raw: literal}
}

func singleValue(literal string) *ast.Value {
	doc, err := parser.ParseQuery(&ast.Source{Input: "{x(v:" + literal + ")}"})
	if err != nil || doc == nil {
		return nil
	}
	if len(doc.Operations) != 1 || len(doc.Fragments) != 0 {
		return nil
	}
	set := doc.Operations[0].SelectionSet
	if len(set) != 1 {
		return nil
	}
	field, ok := set[0].(*ast.Field)
	if !ok || len(field.Arguments) != 1 || len(field.SelectionSet) != 0 || len(field.Directives) != 0 {
		return nil
	}
	return field.Arguments[0].Value
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
