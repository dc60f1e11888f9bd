// Package cldb is the mutable, build-side reflection database a scanner fills
// for one translation unit and the merger accumulates into.
package cldb

import (
	"fmt"

	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Name is a hashed identifier along with its text.
type Name struct {
	Hash uint32
	Text string
}

// IsEmpty reports whether n is the no-name.
func (n Name) IsEmpty() bool { return n.Hash == namehash.NoName }

func (n Name) String() string {
	if n.IsEmpty() {
		return "<noname>"
	}
	return n.Text
}

// Primitive holds what every reflected entity shares. Parent is the name of
// the enclosing scope and is empty for the global scope.
type Primitive struct {
	Kind   types.Kind
	Name   Name
	Parent Name
}

// Common returns the shared primitive fields.
func (p Primitive) Common() Primitive { return p }

func (p Primitive) String() string {
	return fmt.Sprintf("%s %s", p.Kind, p.Name)
}

// Entity is implemented by every primitive kind.
type Entity interface {
	Common() Primitive
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
	Type
}

type Field struct {
	Primitive
	Type           Name
	Modifier       types.Modifier
	IsConst        bool
	Role           types.FieldRole
	ParentUniqueID uint32
}

// IsFunctionParameter reports whether the field belongs to a function.
func (f Field) IsFunctionParameter() bool { return f.ParentUniqueID != 0 }

type Function struct {
	Primitive
	UniqueID uint32
	// Address is only known to tooling that scrapes symbol maps. It never
	// reaches an exported database.
	Address uint64
}

type Template struct {
	Primitive
}

// MaxTemplateArgs is the number of template arguments recorded per instance.
const MaxTemplateArgs = 2

type TemplateType struct {
	Type
	ParameterTypes [MaxTemplateArgs]Name
	ParameterPtrs  [MaxTemplateArgs]bool
}

type Class struct {
	Type
	BaseClass Name
}

type Namespace struct {
	Primitive
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

// Equal compares two primitives of the same kind field by field. Function
// addresses are ignored.
func Equal[T Entity](a, b T) bool {
	switch fa := any(a).(type) {
	case Function:
		fb := any(b).(Function)
		fa.Address, fb.Address = 0, 0
		return fa == fb
	}
	return any(a) == any(b)
}
