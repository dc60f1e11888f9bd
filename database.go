// Package clreflect loads exported reflection databases and answers queries
// about the primitives they hold.
package clreflect

// High level access to a loaded database image.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Celtoys/clReflect-sub006/pkg/relocate"
	"github.com/Celtoys/clReflect-sub006/types"
)

var (
	ErrBadSignature = errors.New("not a reflection database")
	ErrBadVersion   = errors.New("unsupported reflection database version")
)

// DefaultBaseAddress is the address an image is mapped at when the Config
// does not choose one.
const DefaultBaseAddress uint64 = 0x100000000

// A Database is a loaded, immutable reflection database. It may be shared
// between goroutines. Databases must not be copied.
type Database struct {
	types.FileHeader

	Names           []Name
	Types           []*Type
	EnumConstants   []*EnumConstant
	Enums           []*Enum
	Fields          []*Field
	Functions       []*Function
	Classes         []*Class
	TemplateTypes   []*TemplateType
	Templates       []*Template
	Namespaces      []*Namespace
	FlagAttributes  []*FlagAttribute
	IntAttributes   []*IntAttribute
	FloatAttributes []*FloatAttribute
	NameAttributes  []*NameAttribute
	TextAttributes  []*TextAttribute
	TypePrimitives  []TypeEntity

	GlobalNamespace *Namespace

	image []byte
	base  uint64
	addrs map[Entity]uint64
	table *relocate.Table

	closer io.Closer
	noCopy noCopy
}

// noCopy may be embedded into structs which must not be copied after first
// use. See go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// FormatError is returned by some operations if the data does
// not have the correct format for a reflection database.
type FormatError struct {
	off int64
	msg string
	val interface{}
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	return msg
}

// Config is a database load config object
type Config struct {
	// BaseAddress is the virtual address the image is rebased to.
	BaseAddress uint64
}

// Open opens the named file using os.Open and loads it as a reflection database.
func Open(name string, config ...Config) (*Database, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	db, err := NewDatabase(f, config...)
	if err != nil {
		f.Close()
		return nil, err
	}
	db.closer = f
	return db, nil
}

// Close releases the database image.
// If the Database was created using NewDatabase directly instead of Open,
// Close only drops the image.
func (db *Database) Close() error {
	var err error
	if db.closer != nil {
		err = db.closer.Close()
		db.closer = nil
	}
	db.image = nil
	return err
}

// NewDatabase loads a reflection database from an underlying reader.
// The database is expected to start at position 0 in the ReaderAt.
// Either the whole database loads or an error is returned.
func NewDatabase(r io.ReaderAt, config ...Config) (*Database, error) {
	base := DefaultBaseAddress
	if len(config) > 0 && config[0].BaseAddress != 0 {
		base = config[0].BaseAddress
	}

	sr := io.NewSectionReader(r, 0, 1<<63-1)

	var hdr [types.FileHeaderSize]byte
	if _, err := io.ReadFull(sr, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	db := &Database{base: base}
	if err := db.readHeader(hdr[:]); err != nil {
		return nil, err
	}

	// DataSize comes from the file, so grow the image as bytes arrive
	image, err := io.ReadAll(io.LimitReader(sr, int64(db.DataSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes of database data: %w", db.DataSize, err)
	}
	if len(image) < int(db.DataSize) {
		return nil, &FormatError{23, "data size past end of file", db.DataSize}
	}
	db.image = image

	tbl, err := relocate.ReadTable(sr, &db.FileHeader)
	if err != nil {
		return nil, &FormatError{types.FileHeaderSize + int64(db.DataSize), "invalid relocation tables", err}
	}
	if err := tbl.Rebase(db.image, base); err != nil {
		return nil, &FormatError{types.FileHeaderSize, "invalid relocation", err}
	}

	db.table = tbl

	d := &decoder{db: db, data: db.image, base: base}
	if err := d.decode(); err != nil {
		return nil, err
	}
	return db, nil
}

// Load loads a database held in memory.
func Load(b []byte, config ...Config) (*Database, error) {
	return NewDatabase(bytes.NewReader(b), config...)
}

func (db *Database) readHeader(b []byte) error {
	copy(db.Signature[:], b[0:7])
	if string(db.Signature[:]) != types.Signature {
		return fmt.Errorf("%w: signature %q", ErrBadSignature, db.Signature[:])
	}
	db.Version = le.Uint32(b[7:])
	if db.Version != types.Version {
		return fmt.Errorf("%w: %d", ErrBadVersion, db.Version)
	}
	db.NbPtrSchemas = int32(le.Uint32(b[11:]))
	db.NbPtrOffsets = int32(le.Uint32(b[15:]))
	db.NbPtrRelocations = int32(le.Uint32(b[19:]))
	db.DataSize = le.Uint32(b[23:])
	if db.DataSize < types.DBSize {
		return &FormatError{23, "data too small to hold a database", db.DataSize}
	}
	return nil
}

// BaseAddress returns the address the image was rebased to.
func (db *Database) BaseAddress() uint64 { return db.base }

// Relocations returns the pointer relocation tables read with the image.
func (db *Database) Relocations() *relocate.Table { return db.table }

// Address returns the address of e's record inside the rebased image.
func (db *Database) Address(e Entity) uint64 { return db.addrs[e] }
