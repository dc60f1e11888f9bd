package textdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
	"github.com/Celtoys/clReflect-sub006/types"
)

// headerLines is how far into the input the title and version may appear.
const headerLines = 7

func readHeader(sc *bufio.Scanner) error {
	seen := false
	for i := 0; i < headerLines && sc.Scan(); i++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, title) {
			seen = true
			continue
		}
		if seen && strings.HasPrefix(line, versionLabel) {
			v := strings.TrimSpace(line[len(versionLabel):])
			if n, err := strconv.Atoi(v); err != nil || n != Version {
				return fmt.Errorf("%w: format version %q", ErrNotTextDatabase, v)
			}
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return ErrNotTextDatabase
}

// IsTextDatabase reports whether r starts with a supported text header.
func IsTextDatabase(r io.Reader) bool {
	return readHeader(bufio.NewScanner(r)) == nil
}

// IsTextDatabaseFile is IsTextDatabase for the named file.
func IsTextDatabaseFile(name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	return IsTextDatabase(f)
}

func tableTitle(line string) (string, bool) {
	if !strings.HasPrefix(line, "---- ") {
		return "", false
	}
	t := strings.TrimRight(line[5:], "- ")
	return t, t != ""
}

// Read parses a text database. Tables may come in any order; unknown tables
// are skipped.
func Read(r io.Reader) (*cldb.Database, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	if err := readHeader(sc); err != nil {
		return nil, err
	}

	tables := make(map[string][]string)
	current := ""
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if current == "" {
			if t, ok := tableTitle(line); ok {
				// column titles, then a ruler
				for i := 0; i < 2 && sc.Scan(); i++ {
				}
				current = t
			}
			continue
		}
		if strings.HasPrefix(line, "----") {
			current = ""
			continue
		}
		tables[current] = append(tables[current], line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text database: %w", err)
	}

	p := &parser{db: cldb.New()}
	if err := p.names(tables[tableNames]); err != nil {
		return nil, err
	}
	for _, t := range []struct {
		name  string
		parse func(r *row)
	}{
		{tableNamespaces, p.namespace},
		{tableTypes, p.typ},
		{tableEnumConstants, p.enumConstant},
		{tableEnums, p.enum},
		{tableFields, p.field},
		{tableFunctions, p.function},
		{tableTemplates, p.template},
		{tableTemplateTypes, p.templateType},
		{tableClasses, p.class},
		{tableFlagAttributes, p.flagAttribute},
		{tableIntAttributes, p.intAttribute},
		{tableFloatAttributes, p.floatAttribute},
		{tableNameAttributes, p.nameAttribute},
	} {
		if err := p.table(t.name, tables[t.name], t.parse); err != nil {
			return nil, err
		}
	}
	if err := p.textAttributes(tables[tableTextAttributes]); err != nil {
		return nil, err
	}
	return p.db, nil
}

// ReadFile reads the named text database.
func ReadFile(name string) (*cldb.Database, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	db, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return db, nil
}

type parser struct {
	db *cldb.Database
}

// row walks the columns of one table line, keeping the first error.
type row struct {
	db   *cldb.Database
	cols []string
	i    int
	err  error
}

func (r *row) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *row) next() string {
	if r.i >= len(r.cols) {
		r.fail("missing column %d", r.i+1)
		return ""
	}
	c := r.cols[r.i]
	r.i++
	return c
}

func (r *row) more() bool { return r.i < len(r.cols) }

func (r *row) hex() uint32 {
	c := r.next()
	v, err := strconv.ParseUint(c, 16, 32)
	if err != nil && r.err == nil {
		r.fail("bad hex value %q", c)
	}
	return uint32(v)
}

func (r *row) decimal() int32 {
	c := r.next()
	v, err := strconv.ParseInt(c, 10, 32)
	if err != nil && r.err == nil {
		r.fail("bad integer %q", c)
	}
	return int32(v)
}

func (r *row) boolean() bool { return r.next() != "0" }

// name resolves a hash column against the names table. Zero is the no-name.
func (r *row) name() cldb.Name {
	h := r.hex()
	if h == namehash.NoName {
		return cldb.Name{}
	}
	n := r.db.GetNameByHash(h)
	if n.IsEmpty() && r.err == nil {
		r.fail("unknown name hash %x", h)
	}
	return n
}

func (r *row) prim(kind types.Kind) cldb.Primitive {
	p := cldb.Primitive{Kind: kind, Name: r.name(), Parent: r.name()}
	if p.Name.IsEmpty() {
		r.fail("unnamed %s", kind)
	}
	return p
}

func splitTabs(line string) []string {
	return strings.FieldsFunc(line, func(c rune) bool { return c == '\t' })
}

func (p *parser) table(name string, lines []string, parse func(r *row)) error {
	for i, line := range lines {
		r := &row{db: p.db, cols: splitTabs(line)}
		parse(r)
		if r.err != nil {
			return fmt.Errorf("%s table, row %d: %w", name, i+1, r.err)
		}
	}
	return nil
}

func (p *parser) names(lines []string) error {
	for i, line := range lines {
		cols := strings.SplitN(line, "\t", 2)
		if len(cols) != 2 {
			return fmt.Errorf("%s table, row %d: want hash and text", tableNames, i+1)
		}
		h, err := strconv.ParseUint(cols[0], 16, 32)
		if err != nil {
			return fmt.Errorf("%s table, row %d: bad hash %q", tableNames, i+1, cols[0])
		}
		if got := namehash.String(cols[1]); got != uint32(h) {
			return fmt.Errorf("%s table, row %d: %q hashes to %x, not %x", tableNames, i+1, cols[1], got, h)
		}
		p.db.GetName(cols[1])
	}
	return nil
}

func (p *parser) add(r *row, e cldb.Entity) {
	if r.err == nil {
		p.db.AddPrimitive(e)
	}
}

func (p *parser) namespace(r *row) {
	p.add(r, cldb.Namespace{Primitive: r.prim(types.KindNamespace)})
}

func (p *parser) typ(r *row) {
	prim := r.prim(types.KindType)
	p.add(r, cldb.Type{Primitive: prim, Size: r.hex()})
}

func (p *parser) enumConstant(r *row) {
	prim := r.prim(types.KindEnumConstant)
	p.add(r, cldb.EnumConstant{Primitive: prim, Value: r.decimal()})
}

func (p *parser) enum(r *row) {
	prim := r.prim(types.KindEnum)
	p.add(r, cldb.Enum{Type: cldb.Type{Primitive: prim, Size: r.hex()}})
}

func (p *parser) field(r *row) {
	f := cldb.Field{Primitive: r.prim(types.KindField), Type: r.name()}
	switch m := r.next(); m {
	case "v":
		f.Modifier = types.ModifierValue
	case "p":
		f.Modifier = types.ModifierPointer
	case "r":
		f.Modifier = types.ModifierReference
	default:
		r.fail("bad modifier %q", m)
	}
	f.IsConst = r.boolean()
	switch tag := r.next(); tag {
	case "o":
		f.Role = types.ClassMember(r.decimal())
	case "i":
		f.Role = types.Parameter(r.decimal())
	default:
		r.fail("bad field role %q", tag)
	}
	f.ParentUniqueID = r.hex()
	p.add(r, f)
}

func (p *parser) function(r *row) {
	prim := r.prim(types.KindFunction)
	p.add(r, cldb.Function{Primitive: prim, UniqueID: r.hex()})
}

func (p *parser) template(r *row) {
	p.add(r, cldb.Template{Primitive: r.prim(types.KindTemplate)})
}

func (p *parser) templateType(r *row) {
	prim := r.prim(types.KindTemplateType)
	tt := cldb.TemplateType{Type: cldb.Type{Primitive: prim, Size: r.hex()}}
	for i := 0; i < cldb.MaxTemplateArgs && r.more(); i++ {
		tt.ParameterTypes[i] = r.name()
		tt.ParameterPtrs[i] = r.boolean()
	}
	p.add(r, tt)
}

func (p *parser) class(r *row) {
	prim := r.prim(types.KindClass)
	size := r.hex()
	p.add(r, cldb.Class{Type: cldb.Type{Primitive: prim, Size: size}, BaseClass: r.name()})
}

func (p *parser) flagAttribute(r *row) {
	p.add(r, cldb.FlagAttribute{Primitive: r.prim(types.KindFlagAttribute)})
}

func (p *parser) intAttribute(r *row) {
	prim := r.prim(types.KindIntAttribute)
	p.add(r, cldb.IntAttribute{Primitive: prim, Value: r.decimal()})
}

func (p *parser) floatAttribute(r *row) {
	prim := r.prim(types.KindFloatAttribute)
	c := r.next()
	v, err := strconv.ParseFloat(c, 32)
	if err != nil {
		r.fail("bad float %q", c)
	}
	p.add(r, cldb.FloatAttribute{Primitive: prim, Value: float32(v)})
}

func (p *parser) nameAttribute(r *row) {
	prim := r.prim(types.KindNameAttribute)
	p.add(r, cldb.NameAttribute{Primitive: prim, Value: r.name()})
}

// textAttributes keeps everything after the parent column as the value.
func (p *parser) textAttributes(lines []string) error {
	for i, line := range lines {
		cols := strings.SplitN(line, "\t", 3)
		value := ""
		if len(cols) == 3 {
			value = cols[2]
		}
		r := &row{db: p.db, cols: cols[:min(len(cols), 2)]}
		prim := r.prim(types.KindTextAttribute)
		p.add(r, cldb.TextAttribute{Primitive: prim, Value: value})
		if r.err != nil {
			return fmt.Errorf("%s table, row %d: %w", tableTextAttributes, i+1, r.err)
		}
	}
	return nil
}
