// Package export flattens a build-side database into the runtime image:
// one array per primitive kind, every reference resolved, every child
// list sorted by name hash.
package export

import (
	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Ref addresses one record of an exported database by kind and index.
// The zero Ref is null.
type Ref struct {
	Kind  types.Kind
	Index int
}

// IsNil reports whether r refers to nothing.
func (r Ref) IsNil() bool { return r.Kind == types.KindNone }

// Primitive holds the fields every record shares. ParentName is the scope
// recorded at build time and Parent is what it resolved to.
type Primitive struct {
	Kind       types.Kind
	Name       cldb.Name
	ParentName cldb.Name
	Parent     Ref
}

type Type struct {
	Primitive
	Size uint32
}

type EnumConstant struct {
	Primitive
	Value int32
}

type Enum struct {
	Primitive
	Size           uint32
	Constants      []Ref
	Attributes     []Ref
	FlagAttributes uint32
}

type Field struct {
	Primitive
	TypeName       cldb.Name
	Type           Ref
	Modifier       types.Modifier
	IsConst        bool
	Role           types.FieldRole
	ParentUniqueID uint32
	Attributes     []Ref
	FlagAttributes uint32
}

// IsFunctionParameter reports whether the field belongs to a function.
func (f *Field) IsFunctionParameter() bool { return f.ParentUniqueID != 0 }

type Function struct {
	Primitive
	UniqueID        uint32
	ReturnParameter Ref
	Parameters      []Ref
	Attributes      []Ref
	FlagAttributes  uint32
}

type Template struct {
	Primitive
	Instances []Ref
}

type TemplateType struct {
	Primitive
	Size           uint32
	ParameterNames [cldb.MaxTemplateArgs]cldb.Name
	ParameterTypes [cldb.MaxTemplateArgs]Ref
	ParameterPtrs  [cldb.MaxTemplateArgs]bool
}

type Class struct {
	Primitive
	Size        uint32
	BaseName    cldb.Name
	BaseClass   Ref
	Constructor Ref
	Destructor  Ref
	Enums       []Ref
	Classes     []Ref
	Methods     []Ref
	Fields      []Ref
	Attributes  []Ref
	Templates   []Ref

	FlagAttributes uint32
}

type Namespace struct {
	Primitive
	Namespaces []Ref
	Types      []Ref
	Enums      []Ref
	Classes    []Ref
	Functions  []Ref
	Templates  []Ref
}

type FlagAttribute struct {
	Primitive
}

type IntAttribute struct {
	Primitive
	Value int32
}

type FloatAttribute struct {
	Primitive
	Value float32
}

type NameAttribute struct {
	Primitive
	Value cldb.Name
}

type TextAttribute struct {
	Primitive
	Value string
}

// Database is the exported form of a cldb.Database. Every kind array is
// ordered by name hash.
type Database struct {
	Names []cldb.Name

	Types           []Type
	EnumConstants   []EnumConstant
	Enums           []Enum
	Fields          []Field
	Functions       []Function
	Classes         []Class
	TemplateTypes   []TemplateType
	Templates       []Template
	Namespaces      []Namespace
	FlagAttributes  []FlagAttribute
	IntAttributes   []IntAttribute
	FloatAttributes []FloatAttribute
	NameAttributes  []NameAttribute
	TextAttributes  []TextAttribute

	// TypePrimitives lists every record usable as a type, ordered by hash.
	TypePrimitives []Ref

	GlobalNamespace Namespace
}

// Prim returns the shared fields of the record r refers to, or nil.
func (db *Database) Prim(r Ref) *Primitive {
	switch r.Kind {
	case types.KindType:
		return &db.Types[r.Index].Primitive
	case types.KindEnumConstant:
		return &db.EnumConstants[r.Index].Primitive
	case types.KindEnum:
		return &db.Enums[r.Index].Primitive
	case types.KindField:
		return &db.Fields[r.Index].Primitive
	case types.KindFunction:
		return &db.Functions[r.Index].Primitive
	case types.KindClass:
		return &db.Classes[r.Index].Primitive
	case types.KindTemplateType:
		return &db.TemplateTypes[r.Index].Primitive
	case types.KindTemplate:
		return &db.Templates[r.Index].Primitive
	case types.KindNamespace:
		return &db.Namespaces[r.Index].Primitive
	case types.KindFlagAttribute:
		return &db.FlagAttributes[r.Index].Primitive
	case types.KindIntAttribute:
		return &db.IntAttributes[r.Index].Primitive
	case types.KindFloatAttribute:
		return &db.FloatAttributes[r.Index].Primitive
	case types.KindNameAttribute:
		return &db.NameAttributes[r.Index].Primitive
	case types.KindTextAttribute:
		return &db.TextAttributes[r.Index].Primitive
	}
	return nil
}

// Count returns the number of records of kind k.
func (db *Database) Count(k types.Kind) int {
	switch k {
	case types.KindType:
		return len(db.Types)
	case types.KindEnumConstant:
		return len(db.EnumConstants)
	case types.KindEnum:
		return len(db.Enums)
	case types.KindField:
		return len(db.Fields)
	case types.KindFunction:
		return len(db.Functions)
	case types.KindClass:
		return len(db.Classes)
	case types.KindTemplateType:
		return len(db.TemplateTypes)
	case types.KindTemplate:
		return len(db.Templates)
	case types.KindNamespace:
		return len(db.Namespaces)
	case types.KindFlagAttribute:
		return len(db.FlagAttributes)
	case types.KindIntAttribute:
		return len(db.IntAttributes)
	case types.KindFloatAttribute:
		return len(db.FloatAttributes)
	case types.KindNameAttribute:
		return len(db.NameAttributes)
	case types.KindTextAttribute:
		return len(db.TextAttributes)
	}
	return 0
}

// recordKinds is the order kind arrays are laid out in.
var recordKinds = []types.Kind{
	types.KindType,
	types.KindEnumConstant,
	types.KindEnum,
	types.KindField,
	types.KindFunction,
	types.KindClass,
	types.KindTemplateType,
	types.KindTemplate,
	types.KindNamespace,
	types.KindFlagAttribute,
	types.KindIntAttribute,
	types.KindFloatAttribute,
	types.KindNameAttribute,
	types.KindTextAttribute,
}

var attributeKinds = recordKinds[9:]
