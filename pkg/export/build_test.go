package export

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
	"github.com/Celtoys/clReflect-sub006/types"
)

// addFunction adds name(params...) with the given return type ("" is void).
func addFunction(db *cldb.Database, name, parent, ret string, params ...string) uint32 {
	var retField *cldb.Field
	if ret != "" {
		f := db.NewParameter("return", name, ret, types.ModifierValue, false, -1, 0)
		retField = &f
	}
	var fields []cldb.Field
	for i, p := range params {
		fields = append(fields, db.NewParameter(string(rune('a'+i)), name, p, types.ModifierValue, false, int32(i), 0))
	}
	uid := cldb.CalculateFunctionUniqueID(retField, fields)
	db.AddPrimitive(db.NewFunction(name, parent, uid))
	if retField != nil {
		retField.ParentUniqueID = uid
		db.AddPrimitive(*retField)
	}
	for _, f := range fields {
		f.ParentUniqueID = uid
		db.AddPrimitive(f)
	}
	return uid
}

func find(db *Database, kind types.Kind, name string) Ref {
	h := namehash.String(name)
	for i, n := 0, db.Count(kind); i < n; i++ {
		if db.Prim(Ref{kind, i}).Name.Hash == h {
			return Ref{kind, i}
		}
	}
	return Ref{}
}

func TestOverloads(t *testing.T) {
	src := cldb.New()
	src.AddBaseTypePrimitives()
	one := addFunction(src, "F", "", "", "int")
	two := addFunction(src, "F", "", "", "int", "int")
	if one == two {
		t.Fatal("overloads share a unique id")
	}
	if n := len(src.Functions.EqualRange(namehash.String("F"))); n != 2 {
		t.Fatalf("function store holds %d F, want 2", n)
	}

	db := Build(src)
	if len(db.Functions) != 2 {
		t.Fatalf("exported %d functions, want 2", len(db.Functions))
	}
	for _, f := range db.Functions {
		want := map[uint32]int{one: 1, two: 2}[f.UniqueID]
		if len(f.Parameters) != want {
			t.Errorf("F %#x has %d parameters, want %d", f.UniqueID, len(f.Parameters), want)
		}
		for _, p := range f.Parameters {
			if got := db.Fields[p.Index].ParentUniqueID; got != f.UniqueID {
				t.Errorf("F %#x holds a parameter of %#x", f.UniqueID, got)
			}
		}
		if !f.ReturnParameter.IsNil() {
			t.Errorf("void F %#x has a return parameter", f.UniqueID)
		}
	}
	if len(db.GlobalNamespace.Functions) != 2 {
		t.Errorf("global namespace holds %d functions, want 2", len(db.GlobalNamespace.Functions))
	}
}

func sample() *cldb.Database {
	src := cldb.New()
	src.AddBaseTypePrimitives()
	src.AddPrimitive(src.NewNamespace("NS", ""))
	src.AddPrimitive(src.NewNamespace("NS::Inner", "NS"))
	src.AddPrimitive(src.NewClass("NS::Base", "NS", "", 4))
	src.AddPrimitive(src.NewClass("NS::Foo", "NS", "NS::Base", 16))
	src.AddPrimitive(src.NewClass("NS::Foo::Nested", "NS::Foo", "", 1))
	src.AddPrimitive(src.NewField("count", "NS::Foo", "int", types.ModifierValue, false, 4))
	src.AddPrimitive(src.NewField("owner", "NS::Foo", "NS::Base", types.ModifierPointer, true, 8))
	src.AddPrimitive(src.NewEnum("NS::Foo::Mode", "NS::Foo"))
	src.AddPrimitive(src.NewEnumConstant("NS::Foo::On", "NS::Foo::Mode", 1))
	src.AddPrimitive(src.NewEnumConstant("NS::Foo::Off", "NS::Foo::Mode", 0))
	addFunction(src, "NS::Foo::Get", "NS::Foo", "int", "float", "char")
	addFunction(src, "NS::Foo::ConstructObject", "NS::Foo", "", "NS::Foo")
	addFunction(src, "NS::Foo::DestructObject", "NS::Foo", "", "NS::Foo")
	addFunction(src, "NS::Free", "NS", "double")
	src.AddPrimitive(src.NewTemplate("NS::Vec", "NS"))
	src.AddPrimitive(src.NewTemplateType("NS::Vec<int *>", "NS::Vec", 24, []string{"int"}, []bool{true}))
	src.AddPrimitive(src.NewType("NS::Handle", "NS", 8))
	src.AddPrimitive(src.NewFlagAttribute("serialise", "NS::Foo"))
	src.AddPrimitive(src.NewIntAttribute("version", "NS::Foo::count", 2))
	src.AddPrimitive(src.NewFloatAttribute("scale", "NS::Foo::Get", 0.5))
	src.AddPrimitive(src.NewNameAttribute("group", "NS::Foo::Mode", "NS::Base"))
	src.AddPrimitive(src.NewTextAttribute("doc", "NS::Foo", "a foo"))
	return src
}

func TestBuild(t *testing.T) {
	var buf bytes.Buffer
	db := Build(sample(), Config{Logger: log.New(&buf, "export: ", 0)})
	if buf.Len() != 0 {
		t.Errorf("unexpected warnings:\n%s", buf.String())
	}

	ns := find(db, types.KindNamespace, "NS")
	foo := find(db, types.KindClass, "NS::Foo")
	base := find(db, types.KindClass, "NS::Base")
	get := find(db, types.KindFunction, "NS::Foo::Get")
	if ns.IsNil() || foo.IsNil() || base.IsNil() || get.IsNil() {
		t.Fatal("sample primitives are missing")
	}
	c := &db.Classes[foo.Index]
	if c.Parent != ns || c.BaseClass != base {
		t.Errorf("NS::Foo parent = %v base = %v, want %v and %v", c.Parent, c.BaseClass, ns, base)
	}
	if len(c.Fields) != 2 || len(c.Methods) != 3 || len(c.Enums) != 1 || len(c.Classes) != 1 {
		t.Errorf("NS::Foo children: %d fields %d methods %d enums %d classes", len(c.Fields), len(c.Methods), len(c.Enums), len(c.Classes))
	}
	if db.Prim(c.Constructor).Name.Text != "NS::Foo::ConstructObject" || db.Prim(c.Destructor).Name.Text != "NS::Foo::DestructObject" {
		t.Errorf("NS::Foo constructor %v destructor %v", c.Constructor, c.Destructor)
	}
	if len(c.Attributes) != 2 {
		t.Errorf("NS::Foo has %d attributes, want 2", len(c.Attributes))
	}

	f := &db.Functions[get.Index]
	if f.ReturnParameter.IsNil() || db.Fields[f.ReturnParameter.Index].Type != find(db, types.KindType, "int") {
		t.Errorf("NS::Foo::Get return parameter = %v", f.ReturnParameter)
	}
	if len(f.Parameters) != 2 {
		t.Errorf("NS::Foo::Get has %d parameters, want 2", len(f.Parameters))
	}
	if len(f.Attributes) != 1 || f.Attributes[0].Kind != types.KindFloatAttribute {
		t.Errorf("NS::Foo::Get attributes = %v", f.Attributes)
	}

	count := find(db, types.KindField, "count")
	if attrs := db.Fields[count.Index].Attributes; len(attrs) != 1 || attrs[0].Kind != types.KindIntAttribute {
		t.Errorf("field count attributes = %v", attrs)
	}

	vec := find(db, types.KindTemplate, "NS::Vec")
	inst := find(db, types.KindTemplateType, "NS::Vec<int *>")
	if diff := cmp.Diff([]Ref{inst}, db.Templates[vec.Index].Instances); diff != "" {
		t.Errorf("NS::Vec instances mismatch (-want +got):\n%s", diff)
	}
	tt := &db.TemplateTypes[inst.Index]
	if tt.ParameterTypes[0] != find(db, types.KindType, "int") || !tt.ParameterTypes[1].IsNil() || !tt.ParameterPtrs[0] {
		t.Errorf("NS::Vec<int *> parameters = %v %v", tt.ParameterTypes, tt.ParameterPtrs)
	}

	g := &db.GlobalNamespace
	if diff := cmp.Diff([]Ref{ns}, g.Namespaces); diff != "" {
		t.Errorf("global namespaces mismatch (-want +got):\n%s", diff)
	}
	if len(g.Types) != 12 {
		t.Errorf("global namespace holds %d types, want the 12 base types", len(g.Types))
	}
	if n := len(db.Namespaces[ns.Index].Types); n != 1 {
		t.Errorf("NS holds %d types, want NS::Handle", n)
	}
}

// Every container's child list is exactly the set of primitives naming it
// as parent.
func TestParentPartition(t *testing.T) {
	db := Build(sample())

	children := map[Ref][]Ref{}
	for _, k := range recordKinds {
		for i, n := 0, db.Count(k); i < n; i++ {
			r := Ref{k, i}
			p := db.Prim(r)
			if p.Parent.IsNil() {
				continue
			}
			if p.Parent.Index >= db.Count(p.Parent.Kind) {
				t.Fatalf("%v parent %v is out of range", r, p.Parent)
			}
			// attributes name fields by their scoped parent::field name
			if p.Parent.Kind != types.KindField && db.Prim(p.Parent).Name != p.ParentName {
				t.Errorf("%s resolved to parent %s, want %s", p.Name, db.Prim(p.Parent).Name, p.ParentName)
			}
			children[p.Parent] = append(children[p.Parent], r)
		}
	}

	count := func(lists ...[]Ref) int {
		n := 0
		for _, l := range lists {
			n += len(l)
		}
		return n
	}
	for i, c := range db.Classes {
		got := count(c.Enums, c.Classes, c.Methods, c.Fields, c.Attributes, c.Templates)
		if want := len(children[Ref{types.KindClass, i}]); got != want {
			t.Errorf("class %s lists %d children, %d name it as parent", c.Name, got, want)
		}
	}
	for i, ns := range db.Namespaces {
		got := count(ns.Namespaces, ns.Types, ns.Enums, ns.Classes, ns.Functions, ns.Templates)
		if want := len(children[Ref{types.KindNamespace, i}]); got != want {
			t.Errorf("namespace %s lists %d children, %d name it as parent", ns.Name, got, want)
		}
	}
	for i, f := range db.Functions {
		got := count(f.Parameters, f.Attributes)
		if !f.ReturnParameter.IsNil() {
			got++
		}
		if want := len(children[Ref{types.KindFunction, i}]); got != want {
			t.Errorf("function %s lists %d children, %d name it as parent", f.Name, got, want)
		}
	}
	for i, e := range db.Enums {
		if got, want := count(e.Constants, e.Attributes), len(children[Ref{types.KindEnum, i}]); got != want {
			t.Errorf("enum %s lists %d children, %d name it as parent", e.Name, got, want)
		}
	}
}

func TestSorted(t *testing.T) {
	db := Build(sample())
	sorted := func(name string, r []Ref) {
		for i := 1; i < len(r); i++ {
			if db.Prim(r[i-1]).Name.Hash > db.Prim(r[i]).Name.Hash {
				t.Errorf("%s is not sorted by name hash", name)
				return
			}
		}
	}
	sorted("type primitives", db.TypePrimitives)
	for _, c := range db.Classes {
		sorted(c.Name.Text+" fields", c.Fields)
		sorted(c.Name.Text+" methods", c.Methods)
	}
	for _, ns := range append(append([]Namespace(nil), db.Namespaces...), db.GlobalNamespace) {
		sorted(ns.Name.Text+" types", ns.Types)
		sorted(ns.Name.Text+" classes", ns.Classes)
	}
	for i := 1; i < len(db.Classes); i++ {
		if db.Classes[i-1].Name.Hash > db.Classes[i].Name.Hash {
			t.Error("class array is not sorted by name hash")
		}
	}
}

func TestVerifyWarnings(t *testing.T) {
	src := cldb.New()
	src.AddBaseTypePrimitives()
	src.AddPrimitive(src.NewClass("Foo", "", "Nope", 4))
	src.AddPrimitive(src.NewField("x", "Foo", "Missing", types.ModifierValue, false, 0))
	src.AddPrimitive(src.NewType("Orphan", "Ghost", 4))
	src.AddPrimitive(src.NewTemplate("Vec", ""))
	src.AddPrimitive(src.NewTemplateType("Vec<Gone>", "Vec", 4, []string{"Gone"}, nil))

	var buf bytes.Buffer
	db := Build(src, Config{Logger: log.New(&buf, "", 0)})
	for _, want := range []string{
		"WARNING: Primitive 'Orphan' couldn't find parent reference to 'Ghost'",
		"WARNING: Class field 'x' within 'Foo' couldn't find type reference to 'Missing'",
		"WARNING: Type 'Foo' couldn't find base type reference to 'Nope'",
		"WARNING: Template parameter within 'Vec<Gone>' couldn't find type reference to 'Gone'",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log is missing %q:\n%s", want, buf.String())
		}
	}
	orphan := find(db, types.KindType, "Orphan")
	if !db.Prim(orphan).Parent.IsNil() {
		t.Error("Orphan should stay unparented")
	}
	if !containsRef(db.GlobalNamespace.Types, orphan) {
		t.Error("Orphan has no resolved parent and must be global")
	}
}

func containsRef(refs []Ref, r Ref) bool {
	for _, x := range refs {
		if x == r {
			return true
		}
	}
	return false
}

// Primitives whose parent name never resolved land in the global namespace,
// so a reflected program can still reach them.
func TestUnresolvedParentIsGlobal(t *testing.T) {
	src := cldb.New()
	src.AddBaseTypePrimitives()
	src.AddPrimitive(src.NewNamespace("NS", ""))
	src.AddPrimitive(src.NewClass("NS::Kept", "NS", "", 4))
	src.AddPrimitive(src.NewClass("Missing::Orphan", "Missing", "", 4))
	src.AddPrimitive(src.NewEnum("Missing::Lost", "Missing"))
	addFunction(src, "Missing::Stray", "Missing", "int")

	var buf bytes.Buffer
	db := Build(src, Config{Logger: log.New(&buf, "", 0)})
	g := &db.GlobalNamespace

	tests := []struct {
		kind   types.Kind
		name   string
		global []Ref
		want   bool
	}{
		{types.KindClass, "Missing::Orphan", g.Classes, true},
		{types.KindEnum, "Missing::Lost", g.Enums, true},
		{types.KindFunction, "Missing::Stray", g.Functions, true},
		{types.KindClass, "NS::Kept", g.Classes, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := find(db, tt.kind, tt.name)
			if r.IsNil() {
				t.Fatalf("%s was not exported", tt.name)
			}
			if got := containsRef(tt.global, r); got != tt.want {
				t.Errorf("%s in global namespace = %v, want %v", tt.name, got, tt.want)
			}
			if tt.want && !db.Prim(r).Parent.IsNil() {
				t.Errorf("%s parent = %v, want nil", tt.name, db.Prim(r).Parent)
			}
		})
	}
	if !strings.Contains(buf.String(), "WARNING: Primitive 'Missing::Orphan' couldn't find parent reference to 'Missing'") {
		t.Errorf("log is missing the Missing::Orphan warning:\n%s", buf.String())
	}
	if diff := cmp.Diff([]Ref{find(db, types.KindNamespace, "NS")}, g.Namespaces); diff != "" {
		t.Errorf("global namespaces mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagAttributeBits(t *testing.T) {
	src := sample()
	src.AddPrimitive(src.NewFlagAttribute("transient", "NS::Foo"))
	src.AddPrimitive(src.NewFlagAttribute("nullstr", "NS::Foo::owner"))
	src.AddPrimitive(src.NewFlagAttribute("transient", "NS::Foo::owner"))
	src.AddPrimitive(src.NewFlagAttribute("nullstr", "NS::Foo::Get"))
	src.AddPrimitive(src.NewFlagAttribute("transient", "NS::Foo::Mode"))
	// only attributes named exactly transient or nullstr count
	src.AddPrimitive(src.NewIntAttribute("transientish", "NS::Base", 1))
	db := Build(src)

	tests := []struct {
		kind types.Kind
		name string
		want uint32
	}{
		{types.KindClass, "NS::Foo", types.FlagTransient},
		{types.KindClass, "NS::Base", 0},
		{types.KindField, "owner", types.FlagTransient | types.FlagNullStr},
		{types.KindField, "count", 0},
		{types.KindFunction, "NS::Foo::Get", types.FlagNullStr},
		{types.KindEnum, "NS::Foo::Mode", types.FlagTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := find(db, tt.kind, tt.name)
			var got uint32
			switch tt.kind {
			case types.KindClass:
				got = db.Classes[r.Index].FlagAttributes
			case types.KindField:
				got = db.Fields[r.Index].FlagAttributes
			case types.KindFunction:
				got = db.Functions[r.Index].FlagAttributes
			case types.KindEnum:
				got = db.Enums[r.Index].FlagAttributes
			}
			if got != tt.want {
				t.Errorf("%s flag attributes = %#x, want %#x", tt.name, got, tt.want)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	db := Build(sample())
	a, err := db.Layout()
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	b, err := db.Layout(Config{StartAddress: 0x7f0000001000})
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if !a.Valid() || int(a.DataSize) != len(a.Data) {
		t.Errorf("bad header %s for %d bytes of data", &a.FileHeader, len(a.Data))
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("relative images differ between start addresses")
	}
	if diff := cmp.Diff(a.Table, b.Table); diff != "" {
		t.Errorf("relocation tables differ (-a +b):\n%s", diff)
	}

	var out bytes.Buffer
	n, err := a.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	want := types.FileHeaderSize + len(a.Data) +
		len(a.Table.Schemas)*types.PtrSchemaSize + len(a.Table.Offsets)*4 + len(a.Table.Relocations)*types.PtrRelocationSize
	if int(n) != want || out.Len() != want {
		t.Errorf("WriteTo() wrote %d bytes, want %d", n, want)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte(types.Signature)) {
		t.Error("image does not start with the signature")
	}
}
