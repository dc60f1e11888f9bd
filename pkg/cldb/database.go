package cldb

import (
	"fmt"
	"sort"

	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Database accumulates the primitives of one translation unit, or of many
// once merged. It is not safe for concurrent use.
type Database struct {
	names map[uint32]Name

	Types           Store[Type]
	EnumConstants   Store[EnumConstant]
	Enums           Store[Enum]
	Fields          Store[Field]
	Functions       Store[Function]
	Classes         Store[Class]
	Templates       Store[Template]
	TemplateTypes   Store[TemplateType]
	Namespaces      Store[Namespace]
	FlagAttributes  Store[FlagAttribute]
	IntAttributes   Store[IntAttribute]
	FloatAttributes Store[FloatAttribute]
	NameAttributes  Store[NameAttribute]
	TextAttributes  Store[TextAttribute]
}

// New returns an empty database.
func New() *Database {
	return &Database{names: make(map[uint32]Name)}
}

// GetName returns the registered name for text, registering it first if
// needed. The empty string maps to the no-name. Two different strings
// hashing to the same value is a fatal error.
func (db *Database) GetName(text string) Name {
	if text == "" {
		return Name{}
	}
	h := namehash.String(text)
	if n, ok := db.names[h]; ok {
		if n.Text != text {
			panic(fmt.Sprintf("hash collision between %q and %q (%#x)", n.Text, text, h))
		}
		return n
	}
	if db.names == nil {
		db.names = make(map[uint32]Name)
	}
	n := Name{Hash: h, Text: text}
	db.names[h] = n
	return n
}

// GetNameByHash returns the name registered for hash or the no-name.
func (db *Database) GetNameByHash(hash uint32) Name {
	if n, ok := db.names[hash]; ok {
		return n
	}
	return Name{}
}

// Names returns every registered name ordered by hash.
func (db *Database) Names() []Name {
	names := make([]Name, 0, len(db.names))
	for _, n := range db.names {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Hash < names[j].Hash })
	return names
}

// AddPrimitive stores p with the other primitives of its kind.
// Unnamed primitives are rejected.
func (db *Database) AddPrimitive(p Entity) {
	if p.Common().Name.IsEmpty() {
		panic(fmt.Sprintf("unnamed %s primitive added to database", p.Common().Kind))
	}
	switch v := p.(type) {
	case Type:
		db.Types.Add(v)
	case EnumConstant:
		db.EnumConstants.Add(v)
	case Enum:
		db.Enums.Add(v)
	case Field:
		db.Fields.Add(v)
	case Function:
		db.Functions.Add(v)
	case Class:
		db.Classes.Add(v)
	case Template:
		db.Templates.Add(v)
	case TemplateType:
		db.TemplateTypes.Add(v)
	case Namespace:
		db.Namespaces.Add(v)
	case FlagAttribute:
		db.FlagAttributes.Add(v)
	case IntAttribute:
		db.IntAttributes.Add(v)
	case FloatAttribute:
		db.FloatAttributes.Add(v)
	case NameAttribute:
		db.NameAttributes.Add(v)
	case TextAttribute:
		db.TextAttributes.Add(v)
	default:
		panic(fmt.Sprintf("unsupported primitive type %T", p))
	}
}

// Len returns the number of primitives of all kinds.
func (db *Database) Len() int {
	return db.Types.Len() + db.EnumConstants.Len() + db.Enums.Len() + db.Fields.Len() +
		db.Functions.Len() + db.Classes.Len() + db.Templates.Len() + db.TemplateTypes.Len() +
		db.Namespaces.Len() + db.FlagAttributes.Len() + db.IntAttributes.Len() +
		db.FloatAttributes.Len() + db.NameAttributes.Len() + db.TextAttributes.Len()
}

// AddBaseTypePrimitives registers the C++ fundamental types.
func (db *Database) AddBaseTypePrimitives() {
	for _, bt := range []struct {
		name string
		size uint32
	}{
		{"void", 0},
		{"bool", 1},
		{"char", 1},
		{"unsigned char", 1},
		{"short", 2},
		{"unsigned short", 2},
		{"int", 4},
		{"unsigned int", 4},
		{"long", 8},
		{"unsigned long", 8},
		{"float", 4},
		{"double", 8},
	} {
		db.AddPrimitive(db.NewType(bt.name, "", bt.size))
	}
}

func (db *Database) primitive(kind types.Kind, name, parent string) Primitive {
	return Primitive{Kind: kind, Name: db.GetName(name), Parent: db.GetName(parent)}
}

func (db *Database) NewType(name, parent string, size uint32) Type {
	return Type{Primitive: db.primitive(types.KindType, name, parent), Size: size}
}

func (db *Database) NewEnumConstant(name, parent string, value int32) EnumConstant {
	return EnumConstant{Primitive: db.primitive(types.KindEnumConstant, name, parent), Value: value}
}

// NewEnum returns an enum; enums are always int sized.
func (db *Database) NewEnum(name, parent string) Enum {
	return Enum{Type{Primitive: db.primitive(types.KindEnum, name, parent), Size: 4}}
}

// NewField returns a class data member at the given byte offset.
func (db *Database) NewField(name, parent, typ string, mod types.Modifier, isConst bool, offset int32) Field {
	return Field{
		Primitive: db.primitive(types.KindField, name, parent),
		Type:      db.GetName(typ),
		Modifier:  mod,
		IsConst:   isConst,
		Role:      types.ClassMember(offset),
	}
}

// NewParameter returns a parameter of the function identified by
// parent and uniqueID. A parameter named "return" is the return value.
func (db *Database) NewParameter(name, parent, typ string, mod types.Modifier, isConst bool, index int32, uniqueID uint32) Field {
	return Field{
		Primitive:      db.primitive(types.KindField, name, parent),
		Type:           db.GetName(typ),
		Modifier:       mod,
		IsConst:        isConst,
		Role:           types.Parameter(index),
		ParentUniqueID: uniqueID,
	}
}

func (db *Database) NewFunction(name, parent string, uniqueID uint32) Function {
	return Function{Primitive: db.primitive(types.KindFunction, name, parent), UniqueID: uniqueID}
}

func (db *Database) NewClass(name, parent, base string, size uint32) Class {
	return Class{
		Type:      Type{Primitive: db.primitive(types.KindClass, name, parent), Size: size},
		BaseClass: db.GetName(base),
	}
}

func (db *Database) NewNamespace(name, parent string) Namespace {
	return Namespace{db.primitive(types.KindNamespace, name, parent)}
}

func (db *Database) NewTemplate(name, parent string) Template {
	return Template{db.primitive(types.KindTemplate, name, parent)}
}

// NewTemplateType returns an instance of the template named parent.
// Empty argument names are left unset.
func (db *Database) NewTemplateType(name, parent string, size uint32, args []string, ptrs []bool) TemplateType {
	tt := TemplateType{Type: Type{Primitive: db.primitive(types.KindTemplateType, name, parent), Size: size}}
	for i := 0; i < len(args) && i < MaxTemplateArgs; i++ {
		tt.ParameterTypes[i] = db.GetName(args[i])
		if i < len(ptrs) {
			tt.ParameterPtrs[i] = ptrs[i]
		}
	}
	return tt
}

func (db *Database) NewFlagAttribute(name, parent string) FlagAttribute {
	return FlagAttribute{db.primitive(types.KindFlagAttribute, name, parent)}
}

func (db *Database) NewIntAttribute(name, parent string, value int32) IntAttribute {
	return IntAttribute{Primitive: db.primitive(types.KindIntAttribute, name, parent), Value: value}
}

func (db *Database) NewFloatAttribute(name, parent string, value float32) FloatAttribute {
	return FloatAttribute{Primitive: db.primitive(types.KindFloatAttribute, name, parent), Value: value}
}

func (db *Database) NewNameAttribute(name, parent, value string) NameAttribute {
	return NameAttribute{Primitive: db.primitive(types.KindNameAttribute, name, parent), Value: db.GetName(value)}
}

func (db *Database) NewTextAttribute(name, parent, value string) TextAttribute {
	return TextAttribute{Primitive: db.primitive(types.KindTextAttribute, name, parent), Value: value}
}

// FieldTypeHash hashes the declared type of a field, qualifiers included.
func FieldTypeHash(f Field) uint32 {
	text := f.Type.Text + f.Modifier.Suffix()
	if f.IsConst {
		text = "const " + text
	}
	return namehash.String(text)
}

// CalculateFunctionUniqueID hashes a function signature so overloads of one
// name can be told apart. ret may be nil for functions returning void.
func CalculateFunctionUniqueID(ret *Field, params []Field) uint32 {
	var id uint32
	if ret != nil {
		id = FieldTypeHash(*ret)
	}
	for _, p := range params {
		id = namehash.Mix(id, FieldTypeHash(p))
	}
	return id
}
