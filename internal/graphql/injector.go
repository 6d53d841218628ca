// Package graphql addresses, extracts and rewrites the inline argument values
// of a GraphQL document so that scanners can inject payloads into them.
//
// An argument address is a dotted path: the operation name when the operation
// is named, then the field names leading to the argument, then the argument
// name. Inline fragments contribute their type condition and fragment
// definitions are addressed from the fragment name.
package graphql

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type document struct {
	source string
	doc    *ast.QueryDocument
}

func parse(q string) (*document, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: q})
	if err != nil {
		return nil, fmt.Errorf("parse graphql document: %w", err)
	}
	return &document{source: q, doc: doc}, nil
}

type visitFunc func(key string, arg *ast.Argument, op *ast.OperationDefinition)

func (d *document) walk(fn visitFunc) {
	for _, op := range d.doc.Operations {
		walkSelections(op.SelectionSet, op.Name, op, fn)
	}
	for _, frag := range d.doc.Fragments {
		walkSelections(frag.SelectionSet, frag.Name, nil, fn)
	}
}

func walkSelections(set ast.SelectionSet, prefix string, op *ast.OperationDefinition, fn visitFunc) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			path := joinKey(prefix, s.Name)
			for _, arg := range s.Arguments {
				fn(joinKey(path, arg.Name), arg, op)
			}
			walkSelections(s.SelectionSet, path, op, fn)
		case *ast.InlineFragment:
			walkSelections(s.SelectionSet, joinKey(prefix, s.TypeCondition), op, fn)
		}
	}
}

func joinKey(prefix, segment string) string {
	switch {
	case prefix == "":
		return segment
	case segment == "":
		return prefix
	}
	return prefix + "." + segment
}

// Extract returns every inline argument of q keyed by its address. String
// values are returned without quotes; everything else in compact literal form.
func Extract(q string) (map[string]string, error) {
	d, err := parse(q)
	if err != nil {
		return nil, err
	}

	args := make(map[string]string)
	d.walk(func(key string, arg *ast.Argument, _ *ast.OperationDefinition) {
		args[key] = extractValue(arg.Value)
	})
	return args, nil
}

func extractValue(v *ast.Value) string {
	if v == nil {
		return ""
	}
	if v.Kind == ast.StringValue || v.Kind == ast.BlockValue {
		return v.Raw
	}
	return printValue(v)
}

// Inject replaces the value of the argument at address with literal and
// returns the compact form of the rewritten document. literal is used as-is
// when it is a single GraphQL value and is quoted as a string otherwise. A
// replaced variable reference also drops that variable's declaration. An
// address that matches nothing returns q unchanged.
func Inject(q, address, literal string) (string, error) {
	d, err := parse(q)
	if err != nil {
		return "", err
	}

	type replacedVar struct {
		op   *ast.OperationDefinition
		name string
	}

	value := parseLiteral(literal)
	matched := false
	var replaced []replacedVar
	d.walk(func(key string, arg *ast.Argument, op *ast.OperationDefinition) {
		if key != address {
			return
		}
		matched = true
		old := arg.Value
		arg.Value = value
		if old != nil && old.Kind == ast.Variable && op != nil {
			replaced = append(replaced, replacedVar{op: op, name: old.Raw})
		}
	})
	if !matched {
		return q, nil
	}

	for _, r := range replaced {
		if !d.usesVariable(r.op, r.name) {
			removeVariable(r.op, r.name)
		}
	}
	return d.print(), nil
}

// usesVariable reports whether $name is still referenced by op, counting
// any fragment op spreads.
func (d *document) usesVariable(op *ast.OperationDefinition, name string) bool {
	seen := make(map[string]bool)
	var inSet func(set ast.SelectionSet) bool
	inSet = func(set ast.SelectionSet) bool {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				if argsUse(s.Arguments, name) || directivesUse(s.Directives, name) || inSet(s.SelectionSet) {
					return true
				}
			case *ast.InlineFragment:
				if directivesUse(s.Directives, name) || inSet(s.SelectionSet) {
					return true
				}
			case *ast.FragmentSpread:
				if directivesUse(s.Directives, name) {
					return true
				}
				if seen[s.Name] {
					continue
				}
				seen[s.Name] = true
				if frag := d.doc.Fragments.ForName(s.Name); frag != nil && inSet(frag.SelectionSet) {
					return true
				}
			}
		}
		return false
	}
	return directivesUse(op.Directives, name) || inSet(op.SelectionSet)
}

func argsUse(args ast.ArgumentList, name string) bool {
	for _, arg := range args {
		if valueUses(arg.Value, name) {
			return true
		}
	}
	return false
}

func directivesUse(dirs ast.DirectiveList, name string) bool {
	for _, dir := range dirs {
		if argsUse(dir.Arguments, name) {
			return true
		}
	}
	return false
}

func valueUses(v *ast.Value, name string) bool {
	if v == nil {
		return false
	}
	if v.Kind == ast.Variable {
		return v.Raw == name
	}
	for _, child := range v.Children {
		if valueUses(child.Value, name) {
			return true
		}
	}
	return false
}

func removeVariable(op *ast.OperationDefinition, name string) {
	for i, def := range op.VariableDefinitions {
		if def.Variable == name {
			op.VariableDefinitions = append(op.VariableDefinitions[:i:i], op.VariableDefinitions[i+1:]...)
			return
		}
	}
}

// NodeName returns a signature of the document's operations that ignores
// argument values: a bitmap marking operations that declare variables,
// followed by each operation's keyword, name and field tree.
func NodeName(q string) (string, error) {
	d, err := parse(q)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte('(')
	for _, op := range d.doc.Operations {
		if len(op.VariableDefinitions) > 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	b.WriteByte(')')

	for i, op := range d.doc.Operations {
		b.WriteByte(' ')
		if i > 0 || op.Operation != ast.Query || op.Name != "" || len(op.VariableDefinitions) > 0 {
			b.WriteString(string(op.Operation))
			if op.Name != "" {
				b.WriteString(" " + op.Name)
			}
		}
		writeFieldTree(&b, op.SelectionSet)
	}
	return b.String(), nil
}

func writeFieldTree(b *strings.Builder, set ast.SelectionSet) {
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
			b.WriteString(s.Name)
			writeFieldTree(b, s.SelectionSet)
		case *ast.InlineFragment:
			b.WriteString("...")
			if s.TypeCondition != "" {
				b.WriteString("on " + s.TypeCondition)
			}
			writeFieldTree(b, s.SelectionSet)
		case *ast.FragmentSpread:
			b.WriteString("..." + s.Name)
		}
	}
	b.WriteByte('}')
}
