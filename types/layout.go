package types

// Record layouts inside the exported data blob. All integers are little
// endian and every pointer slot is 8 bytes wide. A zero pointer is null.

const PtrSize = 8

// CArray is a {data pointer, count} pair.
const (
	CArrayData  = 0
	CArrayCount = 8
	CArraySize  = 16
)

// Name, as stored in the names array.
const (
	NameHash = 0
	NameText = 8
	NameSize = 16
)

// Fields shared by every primitive record.
const (
	PrimKind     = 0
	PrimNameHash = 4
	PrimNameText = 8
	PrimParent   = 16
	PrimSize     = 24
)

const (
	TypeByteSize = 24 // size field of Type, Enum, Class and TemplateType
	TypeSize     = 32

	EnumConstantValue = 24
	EnumConstantSize  = 32

	EnumFlagAttributes = 28
	EnumConstants      = 32
	EnumAttributes     = 48
	EnumSize           = 64

	FieldType           = 24
	FieldModifier       = 32
	FieldIsConst        = 33
	FieldRoleKind       = 34
	FieldRoleValue      = 36
	FieldParentUniqueID = 40
	FieldFlagAttributes = 44
	FieldAttributes     = 48
	FieldSize           = 64

	FunctionUniqueID        = 24
	FunctionFlagAttributes  = 28
	FunctionReturnParameter = 32
	FunctionParameters      = 40
	FunctionAttributes      = 56
	FunctionSize            = 72

	TemplateInstances = 24
	TemplateSize      = 40

	TemplateTypeParameterTypes = 32 // two consecutive pointers
	TemplateTypeParameterPtrs  = 48 // two consecutive bytes
	TemplateTypeSize           = 56

	ClassFlagAttributes = 28
	ClassBaseClass      = 32
	ClassConstructor    = 40
	ClassDestructor     = 48
	ClassEnums          = 56
	ClassClasses        = 72
	ClassMethods        = 88
	ClassFields         = 104
	ClassAttributes     = 120
	ClassTemplates      = 136
	ClassSize           = 152

	NamespaceNamespaces = 24
	NamespaceTypes      = 40
	NamespaceEnums      = 56
	NamespaceClasses    = 72
	NamespaceFunctions  = 88
	NamespaceTemplates  = 104
	NamespaceSize       = 120

	FlagAttributeSize = 24

	IntAttributeValue = 24
	IntAttributeSize  = 32

	FloatAttributeValue = 24
	FloatAttributeSize  = 32

	NameAttributeValueHash = 24
	NameAttributeValueText = 32
	NameAttributeSize      = 40

	TextAttributeValue = 24
	TextAttributeSize  = 32
)

// The database header sits at offset 0 of the blob, so no pointer ever
// targets offset 0.
const (
	DBNameTextData      = 0
	DBNames             = 8
	DBTypes             = 24
	DBEnumConstants     = 40
	DBEnums             = 56
	DBFields            = 72
	DBFunctions         = 88
	DBClasses           = 104
	DBTemplateTypes     = 120
	DBTemplates         = 136
	DBNamespaces        = 152
	DBTextAttributeData = 168
	DBFlagAttributes    = 176
	DBIntAttributes     = 192
	DBFloatAttributes   = 208
	DBNameAttributes    = 224
	DBTextAttributes    = 240
	DBTypePrimitives    = 256
	DBGlobalNamespace   = 272
	DBSize              = DBGlobalNamespace + NamespaceSize
)

// RecordSize returns the stride of a primitive record of kind k.
func RecordSize(k Kind) int {
	switch k {
	case KindNone, KindFlagAttribute:
		return FlagAttributeSize
	case KindIntAttribute:
		return IntAttributeSize
	case KindFloatAttribute:
		return FloatAttributeSize
	case KindNameAttribute:
		return NameAttributeSize
	case KindTextAttribute:
		return TextAttributeSize
	case KindType:
		return TypeSize
	case KindEnumConstant:
		return EnumConstantSize
	case KindEnum:
		return EnumSize
	case KindField:
		return FieldSize
	case KindFunction:
		return FunctionSize
	case KindTemplateType:
		return TemplateTypeSize
	case KindTemplate:
		return TemplateSize
	case KindClass:
		return ClassSize
	case KindNamespace:
		return NamespaceSize
	}
	return 0
}
