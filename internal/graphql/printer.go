package graphql

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// print renders the document without insignificant whitespace, keeping
// operations and fragments in source order.
func (d *document) print() string {
	type definition struct {
		start int
		text  string
	}

	var defs []definition
	for _, op := range d.doc.Operations {
		defs = append(defs, definition{start: startOf(op.Position), text: d.printOperation(op)})
	}
	for _, frag := range d.doc.Fragments {
		defs = append(defs, definition{start: startOf(frag.Position), text: printFragment(frag)})
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].start < defs[j].start })

	parts := make([]string, len(defs))
	for i, def := range defs {
		parts[i] = def.text
	}
	return strings.Join(parts, " ")
}

func startOf(pos *ast.Position) int {
	if pos == nil {
		return 0
	}
	return pos.Start
}

// shorthand reports whether op was written as a bare selection set.
func (d *document) shorthand(op *ast.OperationDefinition) bool {
	if op.Position == nil {
		return false
	}
	runes := []rune(d.source)
	if op.Position.Start < 0 || op.Position.Start >= len(runes) {
		return false
	}
	return runes[op.Position.Start] == '{'
}

func (d *document) printOperation(op *ast.OperationDefinition) string {
	var b strings.Builder
	if d.shorthand(op) && op.Name == "" && len(op.VariableDefinitions) == 0 && len(op.Directives) == 0 {
		writeSelectionSet(&b, op.SelectionSet)
		return b.String()
	}

	b.WriteString(string(op.Operation))
	if op.Name != "" {
		b.WriteString(" " + op.Name)
	}
	if len(op.VariableDefinitions) > 0 {
		vars := make([]string, len(op.VariableDefinitions))
		for i, def := range op.VariableDefinitions {
			vars[i] = printVariableDefinition(def)
		}
		b.WriteString(" (" + strings.Join(vars, ", ") + ")")
	}
	writeDirectives(&b, op.Directives)
	writeSelectionSet(&b, op.SelectionSet)
	return b.String()
}

func printVariableDefinition(def *ast.VariableDefinition) string {
	var b strings.Builder
	b.WriteString("$" + def.Variable + ":")
	if def.Type != nil {
		b.WriteString(def.Type.String())
	}
	if def.DefaultValue != nil {
		b.WriteString("=" + printValue(def.DefaultValue))
	}
	writeDirectives(&b, def.Directives)
	return b.String()
}

func printFragment(frag *ast.FragmentDefinition) string {
	var b strings.Builder
	b.WriteString("fragment " + frag.Name + " on " + frag.TypeCondition)
	writeDirectives(&b, frag.Directives)
	b.WriteByte(' ')
	writeSelectionSet(&b, frag.SelectionSet)
	return b.String()
}

func writeSelectionSet(b *strings.Builder, set ast.SelectionSet) {
	if len(set) == 0 {
		return
	}
	b.WriteByte('{')
	for i, sel := range set {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch s := sel.(type) {
		case *ast.Field:
			if s.Alias != "" && s.Alias != s.Name {
				b.WriteString(s.Alias + ":")
			}
			b.WriteString(s.Name)
			writeArguments(b, s.Arguments)
			writeDirectives(b, s.Directives)
			writeSelectionSet(b, s.SelectionSet)
		case *ast.InlineFragment:
			b.WriteString("...")
			if s.TypeCondition != "" {
				b.WriteString("on " + s.TypeCondition)
			}
			writeDirectives(b, s.Directives)
			writeSelectionSet(b, s.SelectionSet)
		case *ast.FragmentSpread:
			b.WriteString("..." + s.Name)
			writeDirectives(b, s.Directives)
		}
	}
	b.WriteByte('}')
}

func writeArguments(b *strings.Builder, args ast.ArgumentList) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(arg.Name + ":" + printValue(arg.Value))
	}
	b.WriteByte(')')
}

func writeDirectives(b *strings.Builder, dirs ast.DirectiveList) {
	for _, dir := range dirs {
		b.WriteString(" @" + dir.Name)
		writeArguments(b, dir.Arguments)
	}
}

func printValue(v *ast.Value) string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case ast.Variable:
		return "$" + v.Raw
	case ast.StringValue, ast.BlockValue:
		return quote(v.Raw)
	case ast.ListValue:
		items := make([]string, len(v.Children))
		for i, child := range v.Children {
			items[i] = printValue(child.Value)
		}
		return "[" + strings.Join(items, ",") + "]"
	case ast.ObjectValue:
		fields := make([]string, len(v.Children))
		for i, child := range v.Children {
			fields[i] = child.Name + ":" + printValue(child.Value)
		}
		return "{" + strings.Join(fields, ",") + "}"
	}
	return v.Raw
}
