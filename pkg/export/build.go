package export

import (
	"io"
	"log"
	"sort"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
	"github.com/Celtoys/clReflect-sub006/types"
)

// Config controls an export.
type Config struct {
	// Logger receives warnings about references that could not be resolved.
	// Nil discards them.
	Logger *log.Logger
	// StartAddress is the virtual address the image is laid out at before
	// its pointers are made relative. Zero selects DefaultStartAddress.
	StartAddress uint64
}

// DefaultStartAddress is used when Config.StartAddress is zero.
const DefaultStartAddress uint64 = 0x10000000

func getConfig(config []Config) Config {
	var c Config
	if len(config) > 0 {
		c = config[0]
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	if c.StartAddress == 0 {
		c.StartAddress = DefaultStartAddress
	}
	return c
}

var returnHash = namehash.String("return")

type builder struct {
	db  *Database
	log *log.Logger
}

// Build exports src. Unresolvable references are logged and left null.
func Build(src *cldb.Database, config ...Config) *Database {
	c := getConfig(config)
	b := &builder{db: &Database{}, log: c.Logger}

	b.copyPrimitives(src)
	b.gatherTypePrimitives()
	b.parentAll()
	b.link()
	b.assignReturnParameters()
	b.buildGlobalNamespace()
	b.sortAll()
	b.findClassConstructors()
	b.addFlagAttributeBits()
	b.verify()

	return b.db
}

func prim(p cldb.Primitive) Primitive {
	return Primitive{Kind: p.Kind, Name: p.Name, ParentName: p.Parent}
}

func (b *builder) copyPrimitives(src *cldb.Database) {
	db := b.db
	db.Names = src.Names()

	for _, t := range src.Types.All() {
		db.Types = append(db.Types, Type{Primitive: prim(t.Primitive), Size: t.Size})
	}
	for _, c := range src.EnumConstants.All() {
		db.EnumConstants = append(db.EnumConstants, EnumConstant{Primitive: prim(c.Primitive), Value: c.Value})
	}
	for _, e := range src.Enums.All() {
		db.Enums = append(db.Enums, Enum{Primitive: prim(e.Primitive), Size: e.Size})
	}
	for _, f := range src.Fields.All() {
		db.Fields = append(db.Fields, Field{
			Primitive:      prim(f.Primitive),
			TypeName:       f.Type,
			Modifier:       f.Modifier,
			IsConst:        f.IsConst,
			Role:           f.Role,
			ParentUniqueID: f.ParentUniqueID,
		})
	}
	for _, f := range src.Functions.All() {
		db.Functions = append(db.Functions, Function{Primitive: prim(f.Primitive), UniqueID: f.UniqueID})
	}
	for _, c := range src.Classes.All() {
		db.Classes = append(db.Classes, Class{Primitive: prim(c.Primitive), Size: c.Size, BaseName: c.BaseClass})
	}
	for _, tt := range src.TemplateTypes.All() {
		db.TemplateTypes = append(db.TemplateTypes, TemplateType{
			Primitive:      prim(tt.Primitive),
			Size:           tt.Size,
			ParameterNames: tt.ParameterTypes,
			ParameterPtrs:  tt.ParameterPtrs,
		})
	}
	for _, t := range src.Templates.All() {
		db.Templates = append(db.Templates, Template{Primitive: prim(t.Primitive)})
	}
	for _, ns := range src.Namespaces.All() {
		db.Namespaces = append(db.Namespaces, Namespace{Primitive: prim(ns.Primitive)})
	}
	for _, a := range src.FlagAttributes.All() {
		db.FlagAttributes = append(db.FlagAttributes, FlagAttribute{prim(a.Primitive)})
	}
	for _, a := range src.IntAttributes.All() {
		db.IntAttributes = append(db.IntAttributes, IntAttribute{Primitive: prim(a.Primitive), Value: a.Value})
	}
	for _, a := range src.FloatAttributes.All() {
		db.FloatAttributes = append(db.FloatAttributes, FloatAttribute{Primitive: prim(a.Primitive), Value: a.Value})
	}
	for _, a := range src.NameAttributes.All() {
		db.NameAttributes = append(db.NameAttributes, NameAttribute{Primitive: prim(a.Primitive), Value: a.Value})
	}
	for _, a := range src.TextAttributes.All() {
		db.TextAttributes = append(db.TextAttributes, TextAttribute{Primitive: prim(a.Primitive), Value: a.Value})
	}

	db.GlobalNamespace.Kind = types.KindNamespace
}

func refs(kind types.Kind, n int) []Ref {
	r := make([]Ref, n)
	for i := range r {
		r[i] = Ref{Kind: kind, Index: i}
	}
	return r
}

func (b *builder) gatherTypePrimitives() {
	db := b.db
	for _, k := range []types.Kind{types.KindType, types.KindClass, types.KindEnum, types.KindTemplateType} {
		db.TypePrimitives = append(db.TypePrimitives, refs(k, db.Count(k))...)
	}
}

// parentMap buckets candidate parents by a key hash.
type parentMap struct {
	kind    types.Kind
	n       int
	entries map[uint32][]int
}

func (b *builder) parentMapByName(kind types.Kind) *parentMap {
	pm := &parentMap{kind: kind, n: b.db.Count(kind), entries: make(map[uint32][]int)}
	for i := 0; i < pm.n; i++ {
		h := b.db.Prim(Ref{kind, i}).Name.Hash
		pm.entries[h] = append(pm.entries[h], i)
	}
	return pm
}

// fieldParentMap keys fields by their scoped "parent::field" name, which is
// how attributes on fields refer to them.
func (b *builder) fieldParentMap() *parentMap {
	pm := &parentMap{kind: types.KindField, n: len(b.db.Fields), entries: make(map[uint32][]int)}
	for i, f := range b.db.Fields {
		if f.Parent.IsNil() {
			continue
		}
		h := namehash.String(b.db.Prim(f.Parent).Name.Text + "::" + f.Name.Text)
		pm.entries[h] = append(pm.entries[h], i)
	}
	return pm
}

// parent attaches each unparented child to the first candidate whose key
// equals the child's parent hash and that match accepts, appending the
// child to the list selected by list.
func (b *builder) parent(pm *parentMap, children []Ref, match func(parent int, child Ref) bool, list func(parent int) *[]Ref) {
	for _, c := range children {
		cp := b.db.Prim(c)
		if !cp.Parent.IsNil() || cp.ParentName.IsEmpty() {
			continue
		}
		for _, p := range pm.entries[cp.ParentName.Hash] {
			if p < 0 || p >= pm.n {
				continue
			}
			if match != nil && !match(p, c) {
				continue
			}
			cp.Parent = Ref{pm.kind, p}
			l := list(p)
			*l = append(*l, c)
			break
		}
	}
}

func (b *builder) parentAll() {
	db := b.db
	enums := b.parentMapByName(types.KindEnum)
	functions := b.parentMapByName(types.KindFunction)
	classes := b.parentMapByName(types.KindClass)
	namespaces := b.parentMapByName(types.KindNamespace)
	templates := b.parentMapByName(types.KindTemplate)

	all := func(k types.Kind) []Ref { return refs(k, db.Count(k)) }

	b.parent(enums, all(types.KindEnumConstant), nil, func(p int) *[]Ref { return &db.Enums[p].Constants })
	b.parent(functions, all(types.KindField), func(p int, c Ref) bool {
		return db.Functions[p].UniqueID == db.Fields[c.Index].ParentUniqueID
	}, func(p int) *[]Ref { return &db.Functions[p].Parameters })
	b.parent(classes, all(types.KindEnum), nil, func(p int) *[]Ref { return &db.Classes[p].Enums })
	b.parent(classes, all(types.KindClass), nil, func(p int) *[]Ref { return &db.Classes[p].Classes })
	b.parent(classes, all(types.KindFunction), nil, func(p int) *[]Ref { return &db.Classes[p].Methods })
	b.parent(classes, all(types.KindField), func(p int, c Ref) bool {
		return !db.Fields[c.Index].IsFunctionParameter()
	}, func(p int) *[]Ref { return &db.Classes[p].Fields })
	b.parent(classes, all(types.KindTemplate), nil, func(p int) *[]Ref { return &db.Classes[p].Templates })
	b.parent(namespaces, all(types.KindNamespace), nil, func(p int) *[]Ref { return &db.Namespaces[p].Namespaces })
	b.parent(namespaces, all(types.KindType), nil, func(p int) *[]Ref { return &db.Namespaces[p].Types })
	b.parent(namespaces, all(types.KindEnum), nil, func(p int) *[]Ref { return &db.Namespaces[p].Enums })
	b.parent(namespaces, all(types.KindClass), nil, func(p int) *[]Ref { return &db.Namespaces[p].Classes })
	b.parent(namespaces, all(types.KindFunction), nil, func(p int) *[]Ref { return &db.Namespaces[p].Functions })
	b.parent(namespaces, all(types.KindTemplate), nil, func(p int) *[]Ref { return &db.Namespaces[p].Templates })
	b.parent(templates, all(types.KindTemplateType), nil, func(p int) *[]Ref { return &db.Templates[p].Instances })

	// Attributes need resolved field parents to build the scoped field keys.
	var attributes []Ref
	for _, k := range attributeKinds {
		attributes = append(attributes, all(k)...)
	}
	fields := b.fieldParentMap()
	b.parent(enums, attributes, nil, func(p int) *[]Ref { return &db.Enums[p].Attributes })
	b.parent(fields, attributes, nil, func(p int) *[]Ref { return &db.Fields[p].Attributes })
	b.parent(functions, attributes, nil, func(p int) *[]Ref { return &db.Functions[p].Attributes })
	b.parent(classes, attributes, nil, func(p int) *[]Ref { return &db.Classes[p].Attributes })
}

func (b *builder) link() {
	db := b.db
	byHash := make(map[uint32]Ref, len(db.TypePrimitives))
	for _, r := range db.TypePrimitives {
		h := db.Prim(r).Name.Hash
		if _, ok := byHash[h]; !ok {
			byHash[h] = r
		}
	}
	for i := range db.Fields {
		db.Fields[i].Type = byHash[db.Fields[i].TypeName.Hash]
	}
	for i := range db.Classes {
		db.Classes[i].BaseClass = byHash[db.Classes[i].BaseName.Hash]
	}
	for i := range db.TemplateTypes {
		tt := &db.TemplateTypes[i]
		for j := range tt.ParameterNames {
			tt.ParameterTypes[j] = byHash[tt.ParameterNames[j].Hash]
		}
	}
}

func (b *builder) assignReturnParameters() {
	db := b.db
	for i := range db.Functions {
		f := &db.Functions[i]
		for j, p := range f.Parameters {
			if db.Fields[p.Index].Name.Hash != returnHash {
				continue
			}
			f.ReturnParameter = p
			last := len(f.Parameters) - 1
			f.Parameters[j] = f.Parameters[last]
			f.Parameters = f.Parameters[:last]
			break
		}
	}
}

func (b *builder) buildGlobalNamespace() {
	db := b.db
	g := &db.GlobalNamespace
	global := func(k types.Kind) []Ref {
		var out []Ref
		for i, n := 0, db.Count(k); i < n; i++ {
			if db.Prim(Ref{k, i}).Parent.IsNil() {
				out = append(out, Ref{k, i})
			}
		}
		return out
	}
	g.Namespaces = global(types.KindNamespace)
	g.Types = global(types.KindType)
	g.Enums = global(types.KindEnum)
	g.Classes = global(types.KindClass)
	g.Functions = global(types.KindFunction)
	g.Templates = global(types.KindTemplate)
}

func (b *builder) sortRefs(r []Ref) {
	sort.SliceStable(r, func(i, j int) bool {
		return b.db.Prim(r[i]).Name.Hash < b.db.Prim(r[j]).Name.Hash
	})
}

func (b *builder) sortNamespace(ns *Namespace) {
	b.sortRefs(ns.Namespaces)
	b.sortRefs(ns.Types)
	b.sortRefs(ns.Enums)
	b.sortRefs(ns.Classes)
	b.sortRefs(ns.Functions)
	b.sortRefs(ns.Templates)
}

func (b *builder) sortAll() {
	db := b.db
	for i := range db.Enums {
		b.sortRefs(db.Enums[i].Constants)
		b.sortRefs(db.Enums[i].Attributes)
	}
	for i := range db.Fields {
		b.sortRefs(db.Fields[i].Attributes)
	}
	for i := range db.Functions {
		b.sortRefs(db.Functions[i].Parameters)
		b.sortRefs(db.Functions[i].Attributes)
	}
	for i := range db.Classes {
		c := &db.Classes[i]
		b.sortRefs(c.Enums)
		b.sortRefs(c.Classes)
		b.sortRefs(c.Methods)
		b.sortRefs(c.Fields)
		b.sortRefs(c.Attributes)
		b.sortRefs(c.Templates)
	}
	for i := range db.Templates {
		b.sortRefs(db.Templates[i].Instances)
	}
	for i := range db.Namespaces {
		b.sortNamespace(&db.Namespaces[i])
	}
	b.sortNamespace(&db.GlobalNamespace)
	b.sortRefs(db.TypePrimitives)
}

func (b *builder) findRef(r []Ref, hash uint32) Ref {
	i := sort.Search(len(r), func(i int) bool { return b.db.Prim(r[i]).Name.Hash >= hash })
	if i < len(r) && b.db.Prim(r[i]).Name.Hash == hash {
		return r[i]
	}
	return Ref{}
}

func (b *builder) findClassConstructors() {
	db := b.db
	for i := range db.Classes {
		c := &db.Classes[i]
		if len(c.Methods) == 0 {
			continue
		}
		c.Constructor = b.findRef(c.Methods, namehash.String(c.Name.Text+"::ConstructObject"))
		c.Destructor = b.findRef(c.Methods, namehash.String(c.Name.Text+"::DestructObject"))
	}
}

var flagBits = []struct {
	hash uint32
	bit  uint32
}{
	{namehash.String("transient"), types.FlagTransient},
	{namehash.String("nullstr"), types.FlagNullStr},
}

func (b *builder) flagAttributeBits(attributes []Ref) uint32 {
	var bits uint32
	for _, f := range flagBits {
		if !b.findRef(attributes, f.hash).IsNil() {
			bits |= f.bit
		}
	}
	return bits
}

// addFlagAttributeBits summarises the common flag attributes of each
// primitive. Attribute lists must already be sorted.
func (b *builder) addFlagAttributeBits() {
	db := b.db
	for i := range db.Enums {
		db.Enums[i].FlagAttributes = b.flagAttributeBits(db.Enums[i].Attributes)
	}
	for i := range db.Fields {
		db.Fields[i].FlagAttributes = b.flagAttributeBits(db.Fields[i].Attributes)
	}
	for i := range db.Functions {
		db.Functions[i].FlagAttributes = b.flagAttributeBits(db.Functions[i].Attributes)
	}
	for i := range db.Classes {
		db.Classes[i].FlagAttributes = b.flagAttributeBits(db.Classes[i].Attributes)
	}
}

// verify reports every reference the passes could not resolve.
func (b *builder) verify() {
	db := b.db
	for _, k := range recordKinds {
		for i, n := 0, db.Count(k); i < n; i++ {
			p := db.Prim(Ref{k, i})
			if p.Parent.IsNil() && !p.ParentName.IsEmpty() {
				b.log.Printf("WARNING: Primitive '%s' couldn't find parent reference to '%s'\n", p.Name.Text, p.ParentName.Text)
			}
		}
	}
	for _, f := range db.Fields {
		if !f.Type.IsNil() || f.TypeName.IsEmpty() {
			continue
		}
		switch {
		case f.Parent.Kind == types.KindFunction:
			b.log.Printf("WARNING: Function parameter '%s' within '%s' couldn't find type reference to '%s'\n", f.Name.Text, db.Prim(f.Parent).Name.Text, f.TypeName.Text)
		case f.Parent.Kind == types.KindClass:
			b.log.Printf("WARNING: Class field '%s' within '%s' couldn't find type reference to '%s'\n", f.Name.Text, db.Prim(f.Parent).Name.Text, f.TypeName.Text)
		default:
			b.log.Printf("WARNING: Unparented field '%s' couldn't find type reference to '%s'\n", f.Name.Text, f.TypeName.Text)
		}
	}
	for _, c := range db.Classes {
		if c.BaseClass.IsNil() && !c.BaseName.IsEmpty() {
			b.log.Printf("WARNING: Type '%s' couldn't find base type reference to '%s'\n", c.Name.Text, c.BaseName.Text)
		}
	}
	for _, tt := range db.TemplateTypes {
		for j := range tt.ParameterNames {
			if tt.ParameterTypes[j].IsNil() && !tt.ParameterNames[j].IsEmpty() {
				b.log.Printf("WARNING: Template parameter within '%s' couldn't find type reference to '%s'\n", tt.Name.Text, tt.ParameterNames[j].Text)
			}
		}
	}
}
