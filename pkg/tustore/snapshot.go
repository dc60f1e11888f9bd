package tustore

import (
	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
)

// Snapshot is a gob friendly copy of a build-side database.
type Snapshot struct {
	Names           []cldb.Name
	Types           []cldb.Type
	EnumConstants   []cldb.EnumConstant
	Enums           []cldb.Enum
	Fields          []cldb.Field
	Functions       []cldb.Function
	Classes         []cldb.Class
	Templates       []cldb.Template
	TemplateTypes   []cldb.TemplateType
	Namespaces      []cldb.Namespace
	FlagAttributes  []cldb.FlagAttribute
	IntAttributes   []cldb.IntAttribute
	FloatAttributes []cldb.FloatAttribute
	NameAttributes  []cldb.NameAttribute
	TextAttributes  []cldb.TextAttribute
}

// NewSnapshot copies db.
func NewSnapshot(db *cldb.Database) *Snapshot {
	return &Snapshot{
		Names:           db.Names(),
		Types:           db.Types.All(),
		EnumConstants:   db.EnumConstants.All(),
		Enums:           db.Enums.All(),
		Fields:          db.Fields.All(),
		Functions:       db.Functions.All(),
		Classes:         db.Classes.All(),
		Templates:       db.Templates.All(),
		TemplateTypes:   db.TemplateTypes.All(),
		Namespaces:      db.Namespaces.All(),
		FlagAttributes:  db.FlagAttributes.All(),
		IntAttributes:   db.IntAttributes.All(),
		FloatAttributes: db.FloatAttributes.All(),
		NameAttributes:  db.NameAttributes.All(),
		TextAttributes:  db.TextAttributes.All(),
	}
}

func addAll[T cldb.Entity](db *cldb.Database, s []T) {
	for _, p := range s {
		db.AddPrimitive(p)
	}
}

// Database rebuilds the database the snapshot was taken from.
func (s *Snapshot) Database() *cldb.Database {
	db := cldb.New()
	for _, n := range s.Names {
		db.GetName(n.Text)
	}
	addAll(db, s.Types)
	addAll(db, s.EnumConstants)
	addAll(db, s.Enums)
	addAll(db, s.Fields)
	addAll(db, s.Functions)
	addAll(db, s.Classes)
	addAll(db, s.Templates)
	addAll(db, s.TemplateTypes)
	addAll(db, s.Namespaces)
	addAll(db, s.FlagAttributes)
	addAll(db, s.IntAttributes)
	addAll(db, s.FloatAttributes)
	addAll(db, s.NameAttributes)
	addAll(db, s.TextAttributes)
	return db
}
