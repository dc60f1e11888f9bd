package clreflect

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/Celtoys/clReflect-sub006/types"
)

var le = binary.LittleEndian

// decoder turns a rebased image into Go values. Records are created first
// and cross references filled in afterwards, so reference cycles between
// records are fine.
type decoder struct {
	db      *Database
	data    []byte
	base    uint64
	records map[uint64]Entity
}

func (d *decoder) check(off, size uint64) error {
	if off+size < off || off+size > uint64(len(d.data)) {
		return &FormatError{int64(off), "record extends past end of data", size}
	}
	return nil
}

// target returns the offset the pointer stored at off refers to, or 0.
func (d *decoder) target(off uint64) (uint64, error) {
	v := le.Uint64(d.data[off:])
	if v == 0 {
		return 0, nil
	}
	if v < d.base || v-d.base >= uint64(len(d.data)) {
		return 0, &FormatError{int64(off), "pointer outside image", v}
	}
	return v - d.base, nil
}

// array returns where the elements of the CArray at off live.
func (d *decoder) array(off uint64, stride int) (uint64, int, error) {
	n := le.Uint32(d.data[off+types.CArrayCount:])
	if n == 0 {
		return 0, 0, nil
	}
	arr, err := d.target(off + types.CArrayData)
	if err != nil {
		return 0, 0, err
	}
	if arr == 0 {
		return 0, 0, &FormatError{int64(off), "null array data with count", n}
	}
	if err := d.check(arr, uint64(n)*uint64(stride)); err != nil {
		return 0, 0, err
	}
	return arr, int(n), nil
}

func (d *decoder) cstring(off uint64) (string, error) {
	t, err := d.target(off)
	if err != nil || t == 0 {
		return "", err
	}
	b := d.data[t:]
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		return "", &FormatError{int64(t), "unterminated string", nil}
	}
	return string(b[:i]), nil
}

func (d *decoder) name(hashOff, textOff uint64) (Name, error) {
	text, err := d.cstring(textOff)
	return Name{Hash: le.Uint32(d.data[hashOff:]), Text: text}, err
}

func (d *decoder) prim(off uint64, kind types.Kind, p *Primitive) error {
	if k := types.Kind(le.Uint32(d.data[off+types.PrimKind:])); k != kind {
		return &FormatError{int64(off), "unexpected primitive kind", k}
	}
	p.Kind = kind
	n, err := d.name(off+types.PrimNameHash, off+types.PrimNameText)
	p.Name = n
	return err
}

func (d *decoder) entity(off uint64) (Entity, error) {
	t, err := d.target(off)
	if err != nil || t == 0 {
		return nil, err
	}
	e, ok := d.records[t]
	if !ok {
		return nil, &FormatError{int64(off), "pointer to unknown record", t}
	}
	return e, nil
}

func ref[T Entity](d *decoder, off uint64) (T, error) {
	var zero T
	e, err := d.entity(off)
	if err != nil || e == nil {
		return zero, err
	}
	v, ok := any(e).(T)
	if !ok {
		return zero, &FormatError{int64(off), "reference to wrong primitive kind", e.Common().Kind}
	}
	return v, nil
}

func list[T Entity](d *decoder, off uint64) ([]T, error) {
	arr, n, err := d.array(off, types.PtrSize)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]T, n)
	for i := range out {
		slot := arr + uint64(i*types.PtrSize)
		if le.Uint64(d.data[slot:]) == 0 {
			return nil, &FormatError{int64(slot), "null entry in primitive array", nil}
		}
		if out[i], err = ref[T](d, slot); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// each calls fn with the offset of every record in the kind array
// described by the CArray at slot.
func (d *decoder) each(slot uint64, kind types.Kind, fn func(off uint64) error) error {
	stride := types.RecordSize(kind)
	arr, n, err := d.array(slot, stride)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := fn(arr + uint64(i*stride)); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) add(off uint64, e Entity) {
	d.records[off] = e
	d.db.addrs[e] = d.base + off
}

func (d *decoder) decode() error {
	db := d.db
	d.records = make(map[uint64]Entity)
	db.addrs = make(map[Entity]uint64)

	arr, n, err := d.array(types.DBNames, types.NameSize)
	if err != nil {
		return err
	}
	db.Names = make([]Name, n)
	for i := range db.Names {
		off := arr + uint64(i*types.NameSize)
		if db.Names[i], err = d.name(off+types.NameHash, off+types.NameText); err != nil {
			return err
		}
	}

	if err := d.create(); err != nil {
		return err
	}
	return d.link()
}

// create allocates every record and fills in its scalar fields.
func (d *decoder) create() error {
	db := d.db
	err := d.each(types.DBTypes, types.KindType, func(off uint64) error {
		t := &Type{Size: le.Uint32(d.data[off+types.TypeByteSize:])}
		d.add(off, t)
		db.Types = append(db.Types, t)
		return d.prim(off, types.KindType, &t.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBEnumConstants, types.KindEnumConstant, func(off uint64) error {
		c := &EnumConstant{Value: int32(le.Uint32(d.data[off+types.EnumConstantValue:]))}
		d.add(off, c)
		db.EnumConstants = append(db.EnumConstants, c)
		return d.prim(off, types.KindEnumConstant, &c.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBEnums, types.KindEnum, func(off uint64) error {
		e := &Enum{FlagAttributes: le.Uint32(d.data[off+types.EnumFlagAttributes:])}
		e.Size = le.Uint32(d.data[off+types.TypeByteSize:])
		d.add(off, e)
		db.Enums = append(db.Enums, e)
		return d.prim(off, types.KindEnum, &e.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBFields, types.KindField, func(off uint64) error {
		f := &Field{
			Modifier:       types.Modifier(d.data[off+types.FieldModifier]),
			IsConst:        d.data[off+types.FieldIsConst] != 0,
			Role:           types.FieldRole{Kind: types.RoleKind(d.data[off+types.FieldRoleKind]), Value: int32(le.Uint32(d.data[off+types.FieldRoleValue:]))},
			ParentUniqueID: le.Uint32(d.data[off+types.FieldParentUniqueID:]),
			FlagAttributes: le.Uint32(d.data[off+types.FieldFlagAttributes:]),
		}
		d.add(off, f)
		db.Fields = append(db.Fields, f)
		return d.prim(off, types.KindField, &f.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBFunctions, types.KindFunction, func(off uint64) error {
		f := &Function{
			UniqueID:       le.Uint32(d.data[off+types.FunctionUniqueID:]),
			FlagAttributes: le.Uint32(d.data[off+types.FunctionFlagAttributes:]),
		}
		d.add(off, f)
		db.Functions = append(db.Functions, f)
		return d.prim(off, types.KindFunction, &f.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBClasses, types.KindClass, func(off uint64) error {
		c := &Class{FlagAttributes: le.Uint32(d.data[off+types.ClassFlagAttributes:])}
		c.Size = le.Uint32(d.data[off+types.TypeByteSize:])
		d.add(off, c)
		db.Classes = append(db.Classes, c)
		return d.prim(off, types.KindClass, &c.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBTemplateTypes, types.KindTemplateType, func(off uint64) error {
		tt := &TemplateType{}
		tt.Size = le.Uint32(d.data[off+types.TypeByteSize:])
		for i := range tt.ParameterPtrs {
			tt.ParameterPtrs[i] = d.data[off+types.TemplateTypeParameterPtrs+uint64(i)] != 0
		}
		d.add(off, tt)
		db.TemplateTypes = append(db.TemplateTypes, tt)
		return d.prim(off, types.KindTemplateType, &tt.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBTemplates, types.KindTemplate, func(off uint64) error {
		t := &Template{}
		d.add(off, t)
		db.Templates = append(db.Templates, t)
		return d.prim(off, types.KindTemplate, &t.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBNamespaces, types.KindNamespace, func(off uint64) error {
		ns := &Namespace{}
		d.add(off, ns)
		db.Namespaces = append(db.Namespaces, ns)
		return d.prim(off, types.KindNamespace, &ns.Primitive)
	})
	if err != nil {
		return err
	}
	db.GlobalNamespace = &Namespace{}
	if err := d.prim(types.DBGlobalNamespace, types.KindNamespace, &db.GlobalNamespace.Primitive); err != nil {
		return err
	}
	return d.createAttributes()
}

func (d *decoder) createAttributes() error {
	db := d.db
	err := d.each(types.DBFlagAttributes, types.KindFlagAttribute, func(off uint64) error {
		a := &FlagAttribute{}
		d.add(off, a)
		db.FlagAttributes = append(db.FlagAttributes, a)
		return d.prim(off, types.KindFlagAttribute, &a.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBIntAttributes, types.KindIntAttribute, func(off uint64) error {
		a := &IntAttribute{Value: int32(le.Uint32(d.data[off+types.IntAttributeValue:]))}
		d.add(off, a)
		db.IntAttributes = append(db.IntAttributes, a)
		return d.prim(off, types.KindIntAttribute, &a.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBFloatAttributes, types.KindFloatAttribute, func(off uint64) error {
		a := &FloatAttribute{Value: math.Float32frombits(le.Uint32(d.data[off+types.FloatAttributeValue:]))}
		d.add(off, a)
		db.FloatAttributes = append(db.FloatAttributes, a)
		return d.prim(off, types.KindFloatAttribute, &a.Primitive)
	})
	if err != nil {
		return err
	}
	err = d.each(types.DBNameAttributes, types.KindNameAttribute, func(off uint64) error {
		a := &NameAttribute{}
		d.add(off, a)
		db.NameAttributes = append(db.NameAttributes, a)
		if err := d.prim(off, types.KindNameAttribute, &a.Primitive); err != nil {
			return err
		}
		v, err := d.name(off+types.NameAttributeValueHash, off+types.NameAttributeValueText)
		a.Value = v
		return err
	})
	if err != nil {
		return err
	}
	return d.each(types.DBTextAttributes, types.KindTextAttribute, func(off uint64) error {
		a := &TextAttribute{}
		d.add(off, a)
		db.TextAttributes = append(db.TextAttributes, a)
		if err := d.prim(off, types.KindTextAttribute, &a.Primitive); err != nil {
			return err
		}
		v, err := d.cstring(off + types.TextAttributeValue)
		a.Value = v
		return err
	})
}

// link resolves every pointer held by the records create made.
func (d *decoder) link() error {
	for off, e := range d.records {
		p := e.Common()
		parent, err := d.entity(off + types.PrimParent)
		if err != nil {
			return err
		}
		p.Parent = parent

		switch v := e.(type) {
		case *Enum:
			err = d.linkEnum(off, v)
		case *Field:
			err = d.linkField(off, v)
		case *Function:
			err = d.linkFunction(off, v)
		case *Class:
			err = d.linkClass(off, v)
		case *TemplateType:
			err = d.linkTemplateType(off, v)
		case *Template:
			v.Instances, err = list[*TemplateType](d, off+types.TemplateInstances)
		case *Namespace:
			err = d.linkNamespace(off, v)
		}
		if err != nil {
			return err
		}
	}
	if err := d.linkNamespace(types.DBGlobalNamespace, d.db.GlobalNamespace); err != nil {
		return err
	}
	tp, err := list[TypeEntity](d, types.DBTypePrimitives)
	d.db.TypePrimitives = tp
	return err
}

func (d *decoder) linkEnum(off uint64, e *Enum) (err error) {
	if e.Constants, err = list[*EnumConstant](d, off+types.EnumConstants); err != nil {
		return err
	}
	e.Attributes, err = list[Attribute](d, off+types.EnumAttributes)
	return err
}

func (d *decoder) linkField(off uint64, f *Field) (err error) {
	if f.Type, err = ref[TypeEntity](d, off+types.FieldType); err != nil {
		return err
	}
	f.Attributes, err = list[Attribute](d, off+types.FieldAttributes)
	return err
}

func (d *decoder) linkFunction(off uint64, f *Function) (err error) {
	if f.ReturnParameter, err = ref[*Field](d, off+types.FunctionReturnParameter); err != nil {
		return err
	}
	if f.Parameters, err = list[*Field](d, off+types.FunctionParameters); err != nil {
		return err
	}
	f.Attributes, err = list[Attribute](d, off+types.FunctionAttributes)
	return err
}

func (d *decoder) linkClass(off uint64, c *Class) (err error) {
	if c.BaseClass, err = ref[TypeEntity](d, off+types.ClassBaseClass); err != nil {
		return err
	}
	if c.Constructor, err = ref[*Function](d, off+types.ClassConstructor); err != nil {
		return err
	}
	if c.Destructor, err = ref[*Function](d, off+types.ClassDestructor); err != nil {
		return err
	}
	if c.Enums, err = list[*Enum](d, off+types.ClassEnums); err != nil {
		return err
	}
	if c.Classes, err = list[*Class](d, off+types.ClassClasses); err != nil {
		return err
	}
	if c.Methods, err = list[*Function](d, off+types.ClassMethods); err != nil {
		return err
	}
	if c.Fields, err = list[*Field](d, off+types.ClassFields); err != nil {
		return err
	}
	if c.Attributes, err = list[Attribute](d, off+types.ClassAttributes); err != nil {
		return err
	}
	c.Templates, err = list[*Template](d, off+types.ClassTemplates)
	return err
}

func (d *decoder) linkTemplateType(off uint64, tt *TemplateType) (err error) {
	for i := range tt.ParameterTypes {
		slot := off + types.TemplateTypeParameterTypes + uint64(i*types.PtrSize)
		if tt.ParameterTypes[i], err = ref[TypeEntity](d, slot); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) linkNamespace(off uint64, ns *Namespace) (err error) {
	if ns.Namespaces, err = list[*Namespace](d, off+types.NamespaceNamespaces); err != nil {
		return err
	}
	if ns.Types, err = list[*Type](d, off+types.NamespaceTypes); err != nil {
		return err
	}
	if ns.Enums, err = list[*Enum](d, off+types.NamespaceEnums); err != nil {
		return err
	}
	if ns.Classes, err = list[*Class](d, off+types.NamespaceClasses); err != nil {
		return err
	}
	if ns.Functions, err = list[*Function](d, off+types.NamespaceFunctions); err != nil {
		return err
	}
	ns.Templates, err = list[*Template](d, off+types.NamespaceTemplates)
	return err
}
