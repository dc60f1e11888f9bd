package clreflect

import (
	"github.com/Celtoys/clReflect-sub006/types"
)

// Name is a hashed identifier along with its text.
type Name struct {
	Hash uint32
	Text string
}

// Primitive holds what every reflected entity shares. Parent is nil for
// primitives in the global scope.
type Primitive struct {
	Kind   types.Kind
	Name   Name
	Parent Entity
}

// Common returns the shared primitive fields.
func (p *Primitive) Common() *Primitive { return p }

// Entity is implemented by every loaded primitive.
type Entity interface {
	Common() *Primitive
}

// Type is a plain type with a size. Enums, classes and template instances
// are types too.
type Type struct {
	Primitive
	Size uint32
}

// TypeInfo returns the type fields of any type-like primitive.
func (t *Type) TypeInfo() *Type { return t }

// TypeEntity is implemented by *Type, *Enum, *Class and *TemplateType.
type TypeEntity interface {
	Entity
	TypeInfo() *Type
}

type EnumConstant struct {
	Primitive
	Value int32
}

type Enum struct {
	Type
	Constants      []*EnumConstant
	Attributes     []Attribute
	FlagAttributes uint32
}

type Field struct {
	Primitive
	Type           TypeEntity
	Modifier       types.Modifier
	IsConst        bool
	Role           types.FieldRole
	ParentUniqueID uint32
	Attributes     []Attribute
	FlagAttributes uint32
}

type Function struct {
	Primitive
	UniqueID        uint32
	ReturnParameter *Field
	Parameters      []*Field
	Attributes      []Attribute
	FlagAttributes  uint32
}

type Template struct {
	Primitive
	Instances []*TemplateType
}

type TemplateType struct {
	Type
	ParameterTypes [2]TypeEntity
	ParameterPtrs  [2]bool
}

type Class struct {
	Type
	BaseClass   TypeEntity
	Constructor *Function
	Destructor  *Function
	Enums       []*Enum
	Classes     []*Class
	Methods     []*Function
	Fields      []*Field
	Attributes  []Attribute
	Templates   []*Template

	// FlagAttributes has types.FlagTransient and types.FlagNullStr set
	// for the matching flag attributes.
	FlagAttributes uint32
}

type Namespace struct {
	Primitive
	Namespaces []*Namespace
	Types      []*Type
	Enums      []*Enum
	Classes    []*Class
	Functions  []*Function
	Templates  []*Template
}

// Attribute is implemented by every attribute kind.
type Attribute interface {
	Entity
	attribute()
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
	Value Name
}

type TextAttribute struct {
	Primitive
	Value string
}

func (*FlagAttribute) attribute()  {}
func (*IntAttribute) attribute()   {}
func (*FloatAttribute) attribute() {}
func (*NameAttribute) attribute()  {}
func (*TextAttribute) attribute()  {}
