package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/relocate"
	"github.com/Celtoys/clReflect-sub006/types"
)

// An Image is a laid out database whose pointers are relative to the start
// of Data, ready to be written.
type Image struct {
	types.FileHeader
	Data  []byte
	Table *relocate.Table
}

type schemas struct {
	database, name, ptr *relocate.Schema
	kinds               map[types.Kind]*relocate.Schema
}

type layout struct {
	db     *Database
	start  uint64
	data   []byte
	cursor uint64

	arrays    map[types.Kind]uint64
	names     map[uint32]uint64
	nameTexts map[uint32]string
	namesOff  uint64
	typesOff  uint64
	listsEnd  uint64
	textBlobs map[string]uint64

	rel *relocate.Relocator
	sch schemas
}

// Layout lays db out as a single image and makes its pointers relative.
func (db *Database) Layout(config ...Config) (*Image, error) {
	c := getConfig(config)
	l := &layout{
		db:        db,
		start:     c.StartAddress,
		arrays:    make(map[types.Kind]uint64),
		names:     make(map[uint32]uint64),
		nameTexts: make(map[uint32]string),
		textBlobs: make(map[string]uint64),
	}

	size := l.plan()
	l.data = make([]byte, size)
	l.rel = relocate.NewRelocator(l.start, size)
	l.addSchemas()

	l.writeBlobs()
	l.writeHeader()
	l.writeNames()
	l.writeRecords()
	if l.cursor != l.listsEnd {
		return nil, fmt.Errorf("child arrays end at %#x, planned %#x", l.cursor, l.listsEnd)
	}

	if err := l.rel.MakeRelative(l.data); err != nil {
		return nil, fmt.Errorf("failed to make image pointers relative: %v", err)
	}

	img := &Image{
		FileHeader: types.NewFileHeader(),
		Data:       l.data,
		Table:      l.rel.Table(),
	}
	img.DataSize = uint32(len(img.Data))
	img.Table.Fill(&img.FileHeader)
	return img, nil
}

// eachList calls fn with every child list that gets its own pointer array.
func (db *Database) eachList(fn func(l []Ref)) {
	ns := func(n *Namespace) {
		fn(n.Namespaces)
		fn(n.Types)
		fn(n.Enums)
		fn(n.Classes)
		fn(n.Functions)
		fn(n.Templates)
	}
	for i := range db.Enums {
		fn(db.Enums[i].Constants)
		fn(db.Enums[i].Attributes)
	}
	for i := range db.Fields {
		fn(db.Fields[i].Attributes)
	}
	for i := range db.Functions {
		fn(db.Functions[i].Parameters)
		fn(db.Functions[i].Attributes)
	}
	for i := range db.Classes {
		c := &db.Classes[i]
		fn(c.Enums)
		fn(c.Classes)
		fn(c.Methods)
		fn(c.Fields)
		fn(c.Attributes)
		fn(c.Templates)
	}
	for i := range db.Templates {
		fn(db.Templates[i].Instances)
	}
	for i := range db.Namespaces {
		ns(&db.Namespaces[i])
	}
	ns(&db.GlobalNamespace)
}

// plan assigns offsets to every array and blob and returns the image size.
func (l *layout) plan() uint64 {
	db := l.db
	off := uint64(types.DBSize)

	l.namesOff = off
	off += uint64(len(db.Names) * types.NameSize)
	for _, k := range recordKinds {
		l.arrays[k] = off
		off += uint64(db.Count(k) * types.RecordSize(k))
	}
	l.typesOff = off
	off += uint64(len(db.TypePrimitives) * types.PtrSize)

	l.cursor = off
	db.eachList(func(r []Ref) { off += uint64(len(r) * types.PtrSize) })
	l.listsEnd = off

	// name text blob
	add := func(n cldb.Name) {
		if n.IsEmpty() {
			return
		}
		if _, ok := l.names[n.Hash]; ok {
			return
		}
		l.names[n.Hash] = off
		l.nameTexts[n.Hash] = n.Text
		off += uint64(len(n.Text) + 1)
	}
	for _, n := range db.Names {
		add(n)
	}
	for _, k := range recordKinds {
		for i, n := 0, db.Count(k); i < n; i++ {
			add(db.Prim(Ref{k, i}).Name)
		}
	}
	for _, a := range db.NameAttributes {
		add(a.Value)
	}

	// text attribute blob, identical strings shared
	for _, a := range db.TextAttributes {
		if _, ok := l.textBlobs[a.Value]; ok {
			continue
		}
		l.textBlobs[a.Value] = off
		off += uint64(len(a.Value) + 1)
	}
	return off
}

func (l *layout) addSchemas() {
	r := l.rel
	s := &l.sch
	s.kinds = make(map[types.Kind]*relocate.Schema)

	s.name = r.AddSchema(types.NameSize, nil).Add(types.NameText)
	s.ptr = r.AddSchema(types.PtrSize, nil).Add(0)

	prim := r.AddSchema(types.PrimSize, nil).Add(types.PrimNameText, types.PrimParent)
	s.kinds[types.KindType] = r.AddSchema(types.TypeSize, prim)
	s.kinds[types.KindEnumConstant] = r.AddSchema(types.EnumConstantSize, prim)
	s.kinds[types.KindEnum] = r.AddSchema(types.EnumSize, prim).Add(types.EnumConstants, types.EnumAttributes)
	s.kinds[types.KindField] = r.AddSchema(types.FieldSize, prim).Add(types.FieldType, types.FieldAttributes)
	s.kinds[types.KindFunction] = r.AddSchema(types.FunctionSize, prim).
		Add(types.FunctionReturnParameter, types.FunctionParameters, types.FunctionAttributes)
	s.kinds[types.KindClass] = r.AddSchema(types.ClassSize, prim).
		Add(types.ClassBaseClass, types.ClassConstructor, types.ClassDestructor).
		Add(types.ClassEnums, types.ClassClasses, types.ClassMethods, types.ClassFields, types.ClassAttributes, types.ClassTemplates)
	s.kinds[types.KindTemplateType] = r.AddSchema(types.TemplateTypeSize, prim).
		Add(types.TemplateTypeParameterTypes, types.TemplateTypeParameterTypes+types.PtrSize)
	s.kinds[types.KindTemplate] = r.AddSchema(types.TemplateSize, prim).Add(types.TemplateInstances)
	s.kinds[types.KindNamespace] = r.AddSchema(types.NamespaceSize, prim).Add(namespaceLists(0)...)
	s.kinds[types.KindFlagAttribute] = r.AddSchema(types.FlagAttributeSize, prim)
	s.kinds[types.KindIntAttribute] = r.AddSchema(types.IntAttributeSize, prim)
	s.kinds[types.KindFloatAttribute] = r.AddSchema(types.FloatAttributeSize, prim)
	s.kinds[types.KindNameAttribute] = r.AddSchema(types.NameAttributeSize, prim).Add(types.NameAttributeValueText)
	s.kinds[types.KindTextAttribute] = r.AddSchema(types.TextAttributeSize, prim).Add(types.TextAttributeValue)

	s.database = r.AddSchema(types.DBSize, nil).
		Add(types.DBNameTextData, types.DBNames, types.DBTypes, types.DBEnumConstants, types.DBEnums).
		Add(types.DBFields, types.DBFunctions, types.DBClasses, types.DBTemplateTypes, types.DBTemplates).
		Add(types.DBNamespaces, types.DBTextAttributeData, types.DBFlagAttributes, types.DBIntAttributes).
		Add(types.DBFloatAttributes, types.DBNameAttributes, types.DBTextAttributes, types.DBTypePrimitives).
		Add(namespaceLists(types.DBGlobalNamespace)...)
}

func namespaceLists(base uint32) []uint32 {
	return []uint32{
		base + types.NamespaceNamespaces,
		base + types.NamespaceTypes,
		base + types.NamespaceEnums,
		base + types.NamespaceClasses,
		base + types.NamespaceFunctions,
		base + types.NamespaceTemplates,
	}
}

func (l *layout) addr(off uint64) uint64 { return l.start + off }

func (l *layout) put8(off uint64, v uint8)   { l.data[off] = v }
func (l *layout) put32(off uint64, v uint32) { binary.LittleEndian.PutUint32(l.data[off:], v) }
func (l *layout) put64(off uint64, v uint64) { binary.LittleEndian.PutUint64(l.data[off:], v) }

func (l *layout) putBool(off uint64, v bool) {
	if v {
		l.put8(off, 1)
	}
}

func (l *layout) refAddr(r Ref) uint64 {
	if r.IsNil() {
		return 0
	}
	return l.addr(l.arrays[r.Kind] + uint64(r.Index*types.RecordSize(r.Kind)))
}

func (l *layout) putRef(off uint64, r Ref) { l.put64(off, l.refAddr(r)) }

func (l *layout) putCArray(off, data uint64, count int) {
	if count > 0 {
		l.put64(off+types.CArrayData, l.addr(data))
	}
	l.put32(off+types.CArrayCount, uint32(count))
}

func (l *layout) putName(off uint64, n cldb.Name, textOff uint64) {
	l.put32(off, n.Hash)
	if t, ok := l.names[n.Hash]; ok {
		l.put64(textOff, l.addr(t))
	}
}

// putList allocates a pointer array for refs, points the CArray at off to
// it and records its relocation.
func (l *layout) putList(off uint64, refs []Ref) {
	if len(refs) == 0 {
		return
	}
	arr := l.cursor
	for i, r := range refs {
		l.putRef(arr+uint64(i*types.PtrSize), r)
	}
	l.cursor += uint64(len(refs) * types.PtrSize)
	l.putCArray(off, arr, len(refs))
	l.rel.AddPointers(l.sch.ptr, l.addr(arr), len(refs))
}

func (l *layout) writeBlobs() {
	for h, off := range l.names {
		copy(l.data[off:], l.nameTexts[h])
	}
	for text, off := range l.textBlobs {
		copy(l.data[off:], text)
	}
}

var headerArrays = []struct {
	kind types.Kind
	slot uint64
}{
	{types.KindType, types.DBTypes},
	{types.KindEnumConstant, types.DBEnumConstants},
	{types.KindEnum, types.DBEnums},
	{types.KindField, types.DBFields},
	{types.KindFunction, types.DBFunctions},
	{types.KindClass, types.DBClasses},
	{types.KindTemplateType, types.DBTemplateTypes},
	{types.KindTemplate, types.DBTemplates},
	{types.KindNamespace, types.DBNamespaces},
	{types.KindFlagAttribute, types.DBFlagAttributes},
	{types.KindIntAttribute, types.DBIntAttributes},
	{types.KindFloatAttribute, types.DBFloatAttributes},
	{types.KindNameAttribute, types.DBNameAttributes},
	{types.KindTextAttribute, types.DBTextAttributes},
}

func (l *layout) writeHeader() {
	db := l.db
	l.rel.AddPointers(l.sch.database, l.addr(0), 1)

	if len(l.names) > 0 {
		l.put64(types.DBNameTextData, l.addr(l.listsEnd))
	}
	l.putCArray(types.DBNames, l.namesOff, len(db.Names))
	for _, ha := range headerArrays {
		n := db.Count(ha.kind)
		l.putCArray(ha.slot, l.arrays[ha.kind], n)
		l.rel.AddPointers(l.sch.kinds[ha.kind], l.addr(l.arrays[ha.kind]), n)
	}
	if len(l.textBlobs) > 0 {
		var first uint64 = math.MaxUint64
		for _, off := range l.textBlobs {
			if off < first {
				first = off
			}
		}
		l.put64(types.DBTextAttributeData, l.addr(first))
	}

	l.putCArray(types.DBTypePrimitives, l.typesOff, len(db.TypePrimitives))
	for i, r := range db.TypePrimitives {
		l.putRef(l.typesOff+uint64(i*types.PtrSize), r)
	}
	l.rel.AddPointers(l.sch.ptr, l.addr(l.typesOff), len(db.TypePrimitives))
}

func (l *layout) writeNames() {
	for i, n := range l.db.Names {
		off := l.namesOff + uint64(i*types.NameSize)
		l.putName(off+types.NameHash, n, off+types.NameText)
	}
	l.rel.AddPointers(l.sch.name, l.addr(l.namesOff), len(l.db.Names))
}

func (l *layout) putPrim(off uint64, p *Primitive) {
	l.put32(off+types.PrimKind, uint32(p.Kind))
	l.putName(off+types.PrimNameHash, p.Name, off+types.PrimNameText)
	l.putRef(off+types.PrimParent, p.Parent)
}

func (l *layout) record(k types.Kind, i int) uint64 {
	return l.arrays[k] + uint64(i*types.RecordSize(k))
}

func (l *layout) putNamespace(off uint64, ns *Namespace) {
	l.putPrim(off, &ns.Primitive)
	l.putList(off+types.NamespaceNamespaces, ns.Namespaces)
	l.putList(off+types.NamespaceTypes, ns.Types)
	l.putList(off+types.NamespaceEnums, ns.Enums)
	l.putList(off+types.NamespaceClasses, ns.Classes)
	l.putList(off+types.NamespaceFunctions, ns.Functions)
	l.putList(off+types.NamespaceTemplates, ns.Templates)
}

// writeRecords writes every kind array, allocating child pointer arrays as
// it goes.
func (l *layout) writeRecords() {
	db := l.db
	for i := range db.Types {
		off := l.record(types.KindType, i)
		l.putPrim(off, &db.Types[i].Primitive)
		l.put32(off+types.TypeByteSize, db.Types[i].Size)
	}
	for i := range db.EnumConstants {
		off := l.record(types.KindEnumConstant, i)
		l.putPrim(off, &db.EnumConstants[i].Primitive)
		l.put32(off+types.EnumConstantValue, uint32(db.EnumConstants[i].Value))
	}
	for i := range db.Enums {
		e := &db.Enums[i]
		off := l.record(types.KindEnum, i)
		l.putPrim(off, &e.Primitive)
		l.put32(off+types.TypeByteSize, e.Size)
		l.putList(off+types.EnumConstants, e.Constants)
		l.putList(off+types.EnumAttributes, e.Attributes)
		l.put32(off+types.EnumFlagAttributes, e.FlagAttributes)
	}
	for i := range db.Fields {
		f := &db.Fields[i]
		off := l.record(types.KindField, i)
		l.putPrim(off, &f.Primitive)
		l.putRef(off+types.FieldType, f.Type)
		l.put8(off+types.FieldModifier, uint8(f.Modifier))
		l.putBool(off+types.FieldIsConst, f.IsConst)
		l.put8(off+types.FieldRoleKind, uint8(f.Role.Kind))
		l.put32(off+types.FieldRoleValue, uint32(f.Role.Value))
		l.put32(off+types.FieldParentUniqueID, f.ParentUniqueID)
		l.putList(off+types.FieldAttributes, f.Attributes)
		l.put32(off+types.FieldFlagAttributes, f.FlagAttributes)
	}
	for i := range db.Functions {
		f := &db.Functions[i]
		off := l.record(types.KindFunction, i)
		l.putPrim(off, &f.Primitive)
		l.put32(off+types.FunctionUniqueID, f.UniqueID)
		l.putRef(off+types.FunctionReturnParameter, f.ReturnParameter)
		l.putList(off+types.FunctionParameters, f.Parameters)
		l.putList(off+types.FunctionAttributes, f.Attributes)
		l.put32(off+types.FunctionFlagAttributes, f.FlagAttributes)
	}
	for i := range db.Classes {
		c := &db.Classes[i]
		off := l.record(types.KindClass, i)
		l.putPrim(off, &c.Primitive)
		l.put32(off+types.TypeByteSize, c.Size)
		l.putRef(off+types.ClassBaseClass, c.BaseClass)
		l.putRef(off+types.ClassConstructor, c.Constructor)
		l.putRef(off+types.ClassDestructor, c.Destructor)
		l.putList(off+types.ClassEnums, c.Enums)
		l.putList(off+types.ClassClasses, c.Classes)
		l.putList(off+types.ClassMethods, c.Methods)
		l.putList(off+types.ClassFields, c.Fields)
		l.putList(off+types.ClassAttributes, c.Attributes)
		l.putList(off+types.ClassTemplates, c.Templates)
		l.put32(off+types.ClassFlagAttributes, c.FlagAttributes)
	}
	for i := range db.TemplateTypes {
		tt := &db.TemplateTypes[i]
		off := l.record(types.KindTemplateType, i)
		l.putPrim(off, &tt.Primitive)
		l.put32(off+types.TypeByteSize, tt.Size)
		for j := range tt.ParameterTypes {
			l.putRef(off+types.TemplateTypeParameterTypes+uint64(j*types.PtrSize), tt.ParameterTypes[j])
			l.putBool(off+types.TemplateTypeParameterPtrs+uint64(j), tt.ParameterPtrs[j])
		}
	}
	for i := range db.Templates {
		t := &db.Templates[i]
		off := l.record(types.KindTemplate, i)
		l.putPrim(off, &t.Primitive)
		l.putList(off+types.TemplateInstances, t.Instances)
	}
	for i := range db.Namespaces {
		l.putNamespace(l.record(types.KindNamespace, i), &db.Namespaces[i])
	}
	l.putNamespace(types.DBGlobalNamespace, &db.GlobalNamespace)

	for i := range db.FlagAttributes {
		l.putPrim(l.record(types.KindFlagAttribute, i), &db.FlagAttributes[i].Primitive)
	}
	for i := range db.IntAttributes {
		off := l.record(types.KindIntAttribute, i)
		l.putPrim(off, &db.IntAttributes[i].Primitive)
		l.put32(off+types.IntAttributeValue, uint32(db.IntAttributes[i].Value))
	}
	for i := range db.FloatAttributes {
		off := l.record(types.KindFloatAttribute, i)
		l.putPrim(off, &db.FloatAttributes[i].Primitive)
		l.put32(off+types.FloatAttributeValue, math.Float32bits(db.FloatAttributes[i].Value))
	}
	for i := range db.NameAttributes {
		a := &db.NameAttributes[i]
		off := l.record(types.KindNameAttribute, i)
		l.putPrim(off, &a.Primitive)
		l.putName(off+types.NameAttributeValueHash, a.Value, off+types.NameAttributeValueText)
	}
	for i := range db.TextAttributes {
		a := &db.TextAttributes[i]
		off := l.record(types.KindTextAttribute, i)
		l.putPrim(off, &a.Primitive)
		l.put64(off+types.TextAttributeValue, l.addr(l.textBlobs[a.Value]))
	}
}

// WriteTo writes the header, data and relocation tables to w.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := img.FileHeader.Write(&buf); err != nil {
		return 0, err
	}
	buf.Write(img.Data)
	if err := img.Table.Write(&buf); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}

// Write builds, lays out and writes src to w.
func Write(w io.Writer, src *cldb.Database, config ...Config) error {
	img, err := Build(src, config...).Layout(config...)
	if err != nil {
		return err
	}
	if _, err := img.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write database image: %v", err)
	}
	return nil
}

// WriteFile exports src to the named file.
func WriteFile(name string, src *cldb.Database, config ...Config) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := Write(f, src, config...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
