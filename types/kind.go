package types

import "strconv"

// Kind is the discriminator shared by every reflected primitive.
// Values are persisted, so new kinds go at the end.
type Kind uint32

const (
	KindNone Kind = iota // attribute base
	KindFlagAttribute
	KindIntAttribute
	KindFloatAttribute
	KindNameAttribute
	KindTextAttribute
	KindType
	KindEnumConstant
	KindEnum
	KindField
	KindFunction
	KindTemplateType
	KindTemplate
	KindClass
	KindNamespace
)

var kindStrings = []IntName{
	{uint32(KindNone), "Attribute"},
	{uint32(KindFlagAttribute), "FlagAttribute"},
	{uint32(KindIntAttribute), "IntAttribute"},
	{uint32(KindFloatAttribute), "FloatAttribute"},
	{uint32(KindNameAttribute), "NameAttribute"},
	{uint32(KindTextAttribute), "TextAttribute"},
	{uint32(KindType), "Type"},
	{uint32(KindEnumConstant), "EnumConstant"},
	{uint32(KindEnum), "Enum"},
	{uint32(KindField), "Field"},
	{uint32(KindFunction), "Function"},
	{uint32(KindTemplateType), "TemplateType"},
	{uint32(KindTemplate), "Template"},
	{uint32(KindClass), "Class"},
	{uint32(KindNamespace), "Namespace"},
}

func (k Kind) String() string   { return StringName(uint32(k), kindStrings, false) }
func (k Kind) GoString() string { return StringName(uint32(k), kindStrings, true) }

// IsAttribute reports whether k is one of the attribute kinds.
func (k Kind) IsAttribute() bool {
	return k <= KindTextAttribute
}

// IsType reports whether primitives of kind k can be the target of a type reference.
func (k Kind) IsType() bool {
	switch k {
	case KindType, KindEnum, KindClass, KindTemplateType:
		return true
	}
	return false
}

// Modifier describes how a field refers to its type.
type Modifier uint8

const (
	ModifierValue Modifier = iota
	ModifierPointer
	ModifierReference
)

func (m Modifier) String() string {
	switch m {
	case ModifierValue:
		return "value"
	case ModifierPointer:
		return "pointer"
	case ModifierReference:
		return "reference"
	}
	return "Modifier(" + strconv.Itoa(int(m)) + ")"
}

// Suffix is the C++ declarator suffix for the modifier.
func (m Modifier) Suffix() string {
	switch m {
	case ModifierPointer:
		return "*"
	case ModifierReference:
		return "&"
	}
	return ""
}

// RoleKind tags what a FieldRole value means.
type RoleKind uint8

const (
	RoleClassMember RoleKind = iota
	RoleParameter
)

// FieldRole holds either a byte offset inside a class or a positional index
// inside a function parameter list.
type FieldRole struct {
	Kind  RoleKind
	Value int32
}

// ClassMember returns the role of a data member at the given byte offset.
func ClassMember(offset int32) FieldRole {
	return FieldRole{Kind: RoleClassMember, Value: offset}
}

// Parameter returns the role of a function parameter at the given position.
func Parameter(index int32) FieldRole {
	return FieldRole{Kind: RoleParameter, Value: index}
}

// Offset returns the byte offset of a class member.
func (r FieldRole) Offset() (int32, bool) {
	return r.Value, r.Kind == RoleClassMember
}

// Index returns the position of a function parameter.
func (r FieldRole) Index() (int32, bool) {
	return r.Value, r.Kind == RoleParameter
}

func (r FieldRole) String() string {
	if r.Kind == RoleParameter {
		return "param #" + strconv.Itoa(int(r.Value))
	}
	return "offset " + strconv.Itoa(int(r.Value))
}

// Bits set in the FlagAttributes of enums, fields, functions and classes
// when the matching flag attribute is present.
const (
	FlagTransient uint32 = 0x01 // "transient"
	FlagNullStr   uint32 = 0x02 // "nullstr"
)
