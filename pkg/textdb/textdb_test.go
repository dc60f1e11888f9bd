package textdb

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/types"
)

func sample() *cldb.Database {
	db := cldb.New()
	db.AddBaseTypePrimitives()
	db.AddPrimitive(db.NewNamespace("NS", ""))
	db.AddPrimitive(db.NewClass("NS::Base", "NS", "", 4))
	db.AddPrimitive(db.NewClass("NS::Foo", "NS", "NS::Base", 24))
	db.AddPrimitive(db.NewField("count", "NS::Foo", "int", types.ModifierValue, false, 4))
	db.AddPrimitive(db.NewField("owner", "NS::Foo", "NS::Base", types.ModifierReference, true, 8))
	db.AddPrimitive(db.NewEnum("NS::Mode", "NS"))
	db.AddPrimitive(db.NewEnumConstant("NS::Off", "NS::Mode", -1))
	db.AddPrimitive(db.NewEnumConstant("NS::On", "NS::Mode", 1))
	db.AddPrimitive(db.NewFunction("NS::Run", "NS", 0xdeadbeef))
	db.AddPrimitive(db.NewParameter("x", "NS::Run", "float", types.ModifierPointer, false, 0, 0xdeadbeef))
	db.AddPrimitive(db.NewParameter("return", "NS::Run", "bool", types.ModifierValue, false, -1, 0xdeadbeef))
	db.AddPrimitive(db.NewTemplate("NS::Pair", "NS"))
	db.AddPrimitive(db.NewTemplateType("NS::Pair<int, char *>", "NS::Pair", 16, []string{"int", "char"}, []bool{false, true}))
	db.AddPrimitive(db.NewTemplateType("NS::Pair<>", "NS::Pair", 1, nil, nil))
	db.AddPrimitive(db.NewFlagAttribute("hidden", "NS::Foo"))
	db.AddPrimitive(db.NewIntAttribute("version", "NS::Foo", -3))
	db.AddPrimitive(db.NewFloatAttribute("scale", "NS::Foo::count", 0.1))
	db.AddPrimitive(db.NewNameAttribute("group", "NS::Mode", "NS::Base"))
	db.AddPrimitive(db.NewTextAttribute("doc", "NS::Run", "runs\tthings, twice"))
	db.AddPrimitive(db.NewTextAttribute("empty", "NS::Run", ""))
	return db
}

func diffDatabases(a, b *cldb.Database) string {
	diffs := []string{
		cmp.Diff(a.Names(), b.Names()),
		cmp.Diff(a.Types.All(), b.Types.All()),
		cmp.Diff(a.EnumConstants.All(), b.EnumConstants.All()),
		cmp.Diff(a.Enums.All(), b.Enums.All()),
		cmp.Diff(a.Fields.All(), b.Fields.All()),
		cmp.Diff(a.Functions.All(), b.Functions.All()),
		cmp.Diff(a.Classes.All(), b.Classes.All()),
		cmp.Diff(a.Templates.All(), b.Templates.All()),
		cmp.Diff(a.TemplateTypes.All(), b.TemplateTypes.All()),
		cmp.Diff(a.Namespaces.All(), b.Namespaces.All()),
		cmp.Diff(a.FlagAttributes.All(), b.FlagAttributes.All()),
		cmp.Diff(a.IntAttributes.All(), b.IntAttributes.All()),
		cmp.Diff(a.FloatAttributes.All(), b.FloatAttributes.All()),
		cmp.Diff(a.NameAttributes.All(), b.NameAttributes.All()),
		cmp.Diff(a.TextAttributes.All(), b.TextAttributes.All()),
	}
	return strings.Join(diffs, "")
}

func TestRoundTrip(t *testing.T) {
	want := sample()
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !IsTextDatabase(bytes.NewReader(buf.Bytes())) {
		t.Fatalf("IsTextDatabase() = false for:\n%s", buf.String())
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if diff := diffDatabases(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Len() != want.Len() {
		t.Errorf("read %d primitives, wrote %d", got.Len(), want.Len())
	}
}

func TestWriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "tu.csv")
	if err := WriteFile(name, sample()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !IsTextDatabaseFile(name) {
		t.Fatal("IsTextDatabaseFile() = false")
	}
	db, err := ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if diff := diffDatabases(sample(), db); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}
	if IsTextDatabaseFile(filepath.Join(t.TempDir(), "missing")) {
		t.Error("IsTextDatabaseFile() = true for a missing file")
	}
}

func TestFormat(t *testing.T) {
	db := cldb.New()
	db.AddPrimitive(db.NewType("int", "", 4))
	var buf bytes.Buffer
	if err := Write(&buf, db); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for _, want := range []string{
		"\nclReflect Database\nFormat Version: 1\n\n\n",
		"---- Names --------",
		"Hash\t\tName\n",
		"---- Types --------",
		"Name\t\tParent\t\tSize\n",
		"---- Text Attributes ",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output is missing %q:\n%s", want, buf.String())
		}
	}
	h := db.GetName("int").Hash
	if row := strings.Join([]string{hex(h), "0", "4"}, "\t") + "\n"; !strings.Contains(buf.String(), row) {
		t.Errorf("output is missing type row %q", row)
	}
	if len(namedRuler("Types")) != len(ruler) {
		t.Errorf("named ruler is %d wide, want %d", len(namedRuler("Types")), len(ruler))
	}
}

func TestReadErrors(t *testing.T) {
	h := func(s string) string { return hex(cldb.New().GetName(s).Hash) }
	head := "\nclReflect Database\nFormat Version: 1\n\n\n"
	table := func(title, headers string, rows ...string) string {
		return namedRuler(title) + "\n" + headers + "\n" + ruler + "\n" + strings.Join(rows, "\n") + "\n" + ruler + "\n\n\n"
	}
	names := table("Names", "Hash\t\tName", h("int")+"\tint")

	tests := []struct {
		name  string
		input string
		want  string
		is    error
	}{
		{"no header", "hello\n", "", ErrNotTextDatabase},
		{"bad version", "\nclReflect Database\nFormat Version: 2\n", "", ErrNotTextDatabase},
		{"bad name hash", head + table("Names", "Hash\t\tName", "1234\tint"), "hashes to", nil},
		{"unknown name", head + names + table("Types", "", "abc\t0\t4"), "unknown name hash abc", nil},
		{"missing column", head + names + table("Types", "", h("int")+"\t0"), "missing column 3", nil},
		{"bad modifier", head + names + table("Fields", "", h("int")+"\t0\t"+h("int")+"\tq\t0\to\t0\t0"), "bad modifier", nil},
		{"bad float", head + names + table("Float Attributes", "", h("int")+"\t0\tnope"), "bad float", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Read(strings.NewReader(tt.input))
			if err == nil {
				t.Fatalf("Read() = %v, want an error", db)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Read() error = %v, want %v", err, tt.is)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Read() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteRejectsLineBreaks(t *testing.T) {
	db := cldb.New()
	db.AddPrimitive(db.NewTextAttribute("doc", "", "two\nlines"))
	if err := Write(&bytes.Buffer{}, db); err == nil {
		t.Error("Write() accepted a text attribute with a line break")
	}
}
