// Package dwarfscan builds a translation unit database from DWARF debug
// information: namespaces, base types, classes with their fields, methods
// and base class, enums, template instances and free functions.
package dwarfscan

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/blacktop/go-dwarf"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Param is one function parameter.
type Param struct {
	Name string
	Type dwarf.Type
}

// Scanner accumulates DWARF entities into a build-side database. Types
// repeated across compile units are added once.
type Scanner struct {
	db     *cldb.Database
	log    *log.Logger
	scoped map[dwarf.Type]string
}

// NewScanner returns a scanner filling a fresh database with the C++ base
// types registered. A nil logger discards warnings.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	db := cldb.New()
	db.AddBaseTypePrimitives()
	return &Scanner{db: db, log: logger, scoped: make(map[dwarf.Type]string)}
}

// Database returns the database built so far.
func (s *Scanner) Database() *cldb.Database { return s.db }

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

// baseName is the unscoped name DWARF gives a type.
func baseName(t dwarf.Type) string {
	switch t := t.(type) {
	case *dwarf.StructType:
		return t.StructName
	case *dwarf.EnumType:
		return t.EnumName
	}
	return t.Common().Name
}

// Register records the fully scoped name of a named type so references to
// it resolve to that name.
func (s *Scanner) Register(scope string, t dwarf.Type) string {
	name := join(scope, baseName(t))
	s.scoped[t] = name
	return name
}

// typeName strips qualifiers and one level of indirection from t and
// returns the name of what is left.
func (s *Scanner) typeName(t dwarf.Type) (name string, mod types.Modifier, isConst bool) {
unwrap:
	for t != nil {
		switch v := t.(type) {
		case *dwarf.QualType:
			if v.Qual == "const" {
				isConst = true
			}
			t = v.Type
			continue
		case *dwarf.TypedefType:
			t = v.Type
			continue
		case *dwarf.PtrType:
			if mod == types.ModifierValue {
				mod = types.ModifierPointer
				t = v.Type
				continue
			}
		}
		break unwrap
	}
	if t == nil {
		return "void", mod, isConst
	}
	if n, ok := s.scoped[t]; ok {
		return n, mod, isConst
	}
	return baseName(t), mod, isConst
}

// AddNamespace adds the namespace name inside scope and returns its full name.
func (s *Scanner) AddNamespace(scope, name string) string {
	full := join(scope, name)
	if _, ok := s.db.Namespaces.FindFirst(full); !ok {
		s.db.AddPrimitive(s.db.NewNamespace(full, scope))
	}
	return full
}

// AddBaseType adds a fundamental type that AddBaseTypePrimitives does not
// already know about.
func (s *Scanner) AddBaseType(t dwarf.Type) {
	name := t.Common().Name
	if name == "" {
		return
	}
	if _, ok := s.db.Types.FindFirst(name); ok {
		return
	}
	s.db.AddPrimitive(s.db.NewType(name, "", uint32(t.Size())))
}

// AddEnum adds e inside scope. Its constants share the enclosing scope.
func (s *Scanner) AddEnum(scope string, e *dwarf.EnumType) {
	if e.EnumName == "" {
		return
	}
	name := s.Register(scope, e)
	if _, ok := s.db.Enums.FindFirst(name); ok {
		return
	}
	s.db.AddPrimitive(s.db.NewEnum(name, scope))
	for _, v := range e.Val {
		s.db.AddPrimitive(s.db.NewEnumConstant(join(scope, v.Name), name, int32(v.Val)))
	}
}

// AddStruct adds a class for st inside scope with its data members. base
// is the first base class, or nil.
func (s *Scanner) AddStruct(scope string, st *dwarf.StructType, base dwarf.Type) string {
	if st.StructName == "" || st.Incomplete {
		return ""
	}
	name := s.Register(scope, st)
	if _, ok := s.db.Classes.FindFirst(name); ok {
		return name
	}
	baseClass := ""
	if base != nil {
		baseClass, _, _ = s.typeName(base)
	}
	s.db.AddPrimitive(s.db.NewClass(name, scope, baseClass, uint32(st.Size())))
	for _, f := range st.Field {
		if f.Name == "" {
			continue
		}
		typ, mod, isConst := s.typeName(f.Type)
		s.db.AddPrimitive(s.db.NewField(f.Name, name, typ, mod, isConst, int32(f.ByteOffset)))
	}
	return name
}

// AddTemplateType adds a template instance such as "Vec<int>" together
// with the template it instantiates.
func (s *Scanner) AddTemplateType(scope string, st *dwarf.StructType, args []dwarf.Type) string {
	i := strings.IndexByte(st.StructName, '<')
	if i <= 0 || st.Incomplete {
		return ""
	}
	name := s.Register(scope, st)
	if _, ok := s.db.TemplateTypes.FindFirst(name); ok {
		return name
	}
	template := join(scope, st.StructName[:i])
	if _, ok := s.db.Templates.FindFirst(template); !ok {
		s.db.AddPrimitive(s.db.NewTemplate(template, scope))
	}

	var names []string
	var ptrs []bool
	for _, a := range args {
		n, mod, _ := s.typeName(a)
		names = append(names, n)
		ptrs = append(ptrs, mod == types.ModifierPointer)
	}
	s.db.AddPrimitive(s.db.NewTemplateType(name, template, uint32(st.Size()), names, ptrs))
	return name
}

// AddFunction adds the function name inside scope along with its
// parameters. ret is nil for functions returning void and addr is zero
// for functions without code in this binary.
func (s *Scanner) AddFunction(scope, name string, ret dwarf.Type, params []Param, addr uint64) {
	full := join(scope, name)

	var retField *cldb.Field
	if ret != nil {
		typ, mod, isConst := s.typeName(ret)
		f := s.db.NewParameter("return", full, typ, mod, isConst, -1, 0)
		retField = &f
	}
	fields := make([]cldb.Field, len(params))
	for i, p := range params {
		pname := p.Name
		if pname == "" {
			pname = fmt.Sprintf("arg%d", i)
		}
		typ, mod, isConst := s.typeName(p.Type)
		fields[i] = s.db.NewParameter(pname, full, typ, mod, isConst, int32(i), 0)
	}

	uid := cldb.CalculateFunctionUniqueID(retField, fields)
	fn := s.db.NewFunction(full, scope, uid)
	fn.Address = addr
	if s.db.Functions.Contains(fn) {
		return
	}
	s.db.AddPrimitive(fn)
	if retField != nil {
		retField.ParentUniqueID = uid
		s.db.AddPrimitive(*retField)
	}
	for _, f := range fields {
		f.ParentUniqueID = uid
		s.db.AddPrimitive(f)
	}
}
