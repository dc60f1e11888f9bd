// Package textdb reads and writes the tab separated text form of a
// build-side database, one table per primitive kind.
package textdb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Version is the text format version written and accepted.
const Version = 1

const (
	title        = "clReflect Database"
	versionLabel = "Format Version: "
	ruler        = "-------------------------------------------------------------------------"
)

// ErrNotTextDatabase is returned by Read for input without the text header.
var ErrNotTextDatabase = errors.New("not a text reflection database")

// Table titles, in the order Write emits them.
const (
	tableNames           = "Names"
	tableTypes           = "Types"
	tableEnumConstants   = "Enum Constants"
	tableEnums           = "Enums"
	tableFields          = "Fields"
	tableFunctions       = "Functions"
	tableClasses         = "Classes"
	tableTemplates       = "Templates"
	tableTemplateTypes   = "Template Types"
	tableNamespaces      = "Namespaces"
	tableFlagAttributes  = "Flag Attributes"
	tableIntAttributes   = "Int Attributes"
	tableFloatAttributes = "Float Attributes"
	tableNameAttributes  = "Name Attributes"
	tableTextAttributes  = "Text Attributes"
)

func hex(v uint32) string { return strconv.FormatUint(uint64(v), 16) }

// namedRuler overwrites the start of the ruler with a table title.
func namedRuler(text string) string {
	r := "---- " + text + " "
	if len(r) < len(ruler) {
		r += ruler[len(r):]
	}
	return r
}

type writer struct {
	bw *bufio.Writer
}

func (w *writer) line(cols ...string) {
	w.bw.WriteString(strings.Join(cols, "\t"))
	w.bw.WriteByte('\n')
}

func (w *writer) header(name, headers string) {
	w.line(namedRuler(name))
	w.line(headers)
	w.line(ruler)
}

func (w *writer) footer() {
	w.line(ruler)
	w.bw.WriteString("\n\n")
}

func prim(p cldb.Primitive) []string {
	return []string{hex(p.Name.Hash), hex(p.Parent.Hash)}
}

func table[T cldb.Entity](w *writer, name, headers string, s *cldb.Store[T], cols func(T) []string) {
	w.header(name, headers)
	for _, p := range s.All() {
		w.line(append(prim(p.Common()), cols(p)...)...)
	}
	w.footer()
}

func modifier(m types.Modifier) string {
	switch m {
	case types.ModifierPointer:
		return "p"
	case types.ModifierReference:
		return "r"
	}
	return "v"
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func role(r types.FieldRole) string {
	if r.Kind == types.RoleParameter {
		return "i"
	}
	return "o"
}

// Write writes db in text form. Text attribute values may not contain
// line breaks.
func Write(out io.Writer, db *cldb.Database) error {
	for _, a := range db.TextAttributes.All() {
		if strings.ContainsAny(a.Value, "\r\n") {
			return fmt.Errorf("text attribute %s holds a line break", a.Name)
		}
	}

	w := &writer{bw: bufio.NewWriter(out)}
	w.bw.WriteString("\n" + title + "\n")
	w.bw.WriteString(versionLabel + strconv.Itoa(Version) + "\n\n\n")

	w.header(tableNames, "Hash\t\tName")
	for _, n := range db.Names() {
		w.line(hex(n.Hash), n.Text)
	}
	w.footer()

	size := func(t cldb.Type) []string { return []string{hex(t.Size)} }

	table(w, tableTypes, "Name\t\tParent\t\tSize", &db.Types, size)
	table(w, tableEnumConstants, "Name\t\tParent\t\tValue", &db.EnumConstants, func(c cldb.EnumConstant) []string {
		return []string{strconv.Itoa(int(c.Value))}
	})
	table(w, tableEnums, "Name\t\tParent\t\tSize", &db.Enums, func(e cldb.Enum) []string { return size(e.Type) })
	table(w, tableFields, "Name\t\tParent\t\tType\t\tMod\tCst\tRole\tOffs\tUID", &db.Fields, func(f cldb.Field) []string {
		return []string{
			hex(f.Type.Hash), modifier(f.Modifier), flag(f.IsConst),
			role(f.Role), strconv.Itoa(int(f.Role.Value)), hex(f.ParentUniqueID),
		}
	})
	table(w, tableFunctions, "Name\t\tParent\t\tUID", &db.Functions, func(f cldb.Function) []string {
		return []string{hex(f.UniqueID)}
	})
	table(w, tableClasses, "Name\t\tParent\t\tSize\t\tBase", &db.Classes, func(c cldb.Class) []string {
		return []string{hex(c.Size), hex(c.BaseClass.Hash)}
	})
	table(w, tableTemplates, "Name\t\tParent", &db.Templates, func(cldb.Template) []string { return nil })
	table(w, tableTemplateTypes, "Name\t\tParent\t\tSize\t\tArgument type and pointer pairs", &db.TemplateTypes, func(tt cldb.TemplateType) []string {
		cols := []string{hex(tt.Size)}
		for i, arg := range tt.ParameterTypes {
			if !arg.IsEmpty() {
				cols = append(cols, hex(arg.Hash), flag(tt.ParameterPtrs[i]))
			}
		}
		return cols
	})
	table(w, tableNamespaces, "Name\t\tParent", &db.Namespaces, func(cldb.Namespace) []string { return nil })

	table(w, tableFlagAttributes, "Name\t\tParent", &db.FlagAttributes, func(cldb.FlagAttribute) []string { return nil })
	table(w, tableIntAttributes, "Name\t\tParent\t\tValue", &db.IntAttributes, func(a cldb.IntAttribute) []string {
		return []string{strconv.Itoa(int(a.Value))}
	})
	table(w, tableFloatAttributes, "Name\t\tParent\t\tValue", &db.FloatAttributes, func(a cldb.FloatAttribute) []string {
		return []string{strconv.FormatFloat(float64(a.Value), 'g', -1, 32)}
	})
	table(w, tableNameAttributes, "Name\t\tParent\t\tValue", &db.NameAttributes, func(a cldb.NameAttribute) []string {
		return []string{hex(a.Value.Hash)}
	})
	table(w, tableTextAttributes, "Name\t\tParent\t\tValue", &db.TextAttributes, func(a cldb.TextAttribute) []string {
		return []string{a.Value}
	})

	return w.bw.Flush()
}

// WriteFile writes db to the named file.
func WriteFile(name string, db *cldb.Database) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := Write(f, db); err != nil {
		f.Close()
		return fmt.Errorf("failed to write text database %s: %w", name, err)
	}
	return f.Close()
}
