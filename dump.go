package clreflect

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// textWriter indents nested scopes and keeps the first write error.
type textWriter struct {
	w      io.Writer
	indent int
	err    error
}

// line starts a new indented line.
func (tw *textWriter) line(format string, args ...interface{}) {
	tw.printf("%s", strings.Repeat("\t", tw.indent))
	tw.printf(format, args...)
}

func (tw *textWriter) printf(format string, args ...interface{}) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) open(format string, args ...interface{}) {
	tw.line(format, args...)
	tw.printf("\n")
	tw.line("{\n")
	tw.indent++
}

func (tw *textWriter) close(end string) {
	tw.indent--
	tw.line(end)
}

// WriteText writes the database as C++-like declarations, starting from
// the global namespace.
func (db *Database) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}
	tw.namespace(db.GlobalNamespace)
	return tw.err
}

func each[T any](tw *textWriter, s []T, fn func(T)) {
	for _, v := range s {
		fn(v)
		tw.printf("\n")
	}
}

func (tw *textWriter) namespace(ns *Namespace) {
	named := ns.Name.Text != ""
	if named {
		tw.open("namespace %s", ns.Name.Text)
	}
	each(tw, ns.Namespaces, tw.namespace)
	each(tw, ns.Classes, tw.class)
	each(tw, ns.Enums, tw.enum)
	each(tw, ns.Functions, tw.function)
	each(tw, ns.Templates, tw.template)
	if named {
		tw.close("}")
	}
}

func (tw *textWriter) class(c *Class) {
	tw.line("class %s", c.Name.Text)
	if c.BaseClass != nil {
		tw.printf(" : public %s", c.BaseClass.Common().Name.Text)
	}
	tw.printf("\n")
	tw.line("{\n")
	tw.indent++

	fields := append([]*Field(nil), c.Fields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Role.Value < fields[j].Role.Value })

	each(tw, c.Classes, tw.class)
	each(tw, fields, tw.field)
	each(tw, c.Enums, tw.enum)
	each(tw, c.Methods, tw.function)
	each(tw, c.Templates, tw.template)
	tw.close("};")
}

func (tw *textWriter) enum(e *Enum) {
	tw.open("enum %s", e.Name.Text)
	constants := append([]*EnumConstant(nil), e.Constants...)
	sort.SliceStable(constants, func(i, j int) bool { return constants[i].Value < constants[j].Value })
	each(tw, constants, func(c *EnumConstant) {
		tw.line("%s = %d,", c.Name.Text, c.Value)
	})
	tw.close("};")
}

func (tw *textWriter) template(t *Template) {
	tw.open("template %s", t.Name.Text)
	each(tw, t.Instances, func(tt *TemplateType) {
		tw.line("class %s", tt.Name.Text)
	})
	tw.close("};")
}

func fieldDecl(f *Field, withName bool) string {
	var sb strings.Builder
	if f.IsConst {
		sb.WriteString("const ")
	}
	if f.Type != nil {
		sb.WriteString(f.Type.Common().Name.Text)
	} else {
		sb.WriteString("<<UNRESOLVED TYPE>>")
	}
	sb.WriteString(f.Modifier.Suffix())
	if withName {
		sb.WriteString(" ")
		sb.WriteString(f.Name.Text)
	}
	return sb.String()
}

func (tw *textWriter) field(f *Field) {
	tw.line("%s;", fieldDecl(f, true))
}

func (tw *textWriter) function(fn *Function) {
	ret := "void"
	if fn.ReturnParameter != nil {
		ret = fieldDecl(fn.ReturnParameter, false)
	}
	params := append([]*Field(nil), fn.Parameters...)
	sort.SliceStable(params, func(i, j int) bool { return params[i].Role.Value < params[j].Role.Value })
	decls := make([]string, len(params))
	for i, p := range params {
		decls[i] = fieldDecl(p, true)
	}
	tw.line("%s %s(%s);", ret, fn.Name.Text, strings.Join(decls, ", "))
}
