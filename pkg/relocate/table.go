package relocate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Celtoys/clReflect-sub006/types"
)

// ReadTable reads the schema, pointer offset and relocation tables counted
// by hdr from r. The counts are checked against what r actually holds
// before any table is allocated.
func ReadTable(r io.Reader, hdr *types.FileHeader) (*Table, error) {
	if hdr.NbPtrSchemas < 0 || hdr.NbPtrOffsets < 0 || hdr.NbPtrRelocations < 0 {
		return nil, fmt.Errorf("negative table size in header: %s", hdr)
	}
	var (
		t   Table
		err error
	)
	if t.Schemas, err = readRecords[types.PtrSchema](r, hdr.NbPtrSchemas, "pointer schemas"); err != nil {
		return nil, err
	}
	if t.Offsets, err = readRecords[int32](r, hdr.NbPtrOffsets, "pointer offsets"); err != nil {
		return nil, err
	}
	if t.Relocations, err = readRecords[types.PtrRelocation](r, hdr.NbPtrRelocations, "pointer relocations"); err != nil {
		return nil, err
	}
	return &t, nil
}

// readRecords reads n fixed-size records. The bytes are read first so a
// bogus count fails on a short read instead of a huge allocation.
func readRecords[T any](r io.Reader, n int32, what string) ([]T, error) {
	var zero T
	want := int64(n) * int64(binary.Size(zero))
	b, err := io.ReadAll(io.LimitReader(r, want))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	if int64(len(b)) < want {
		return nil, fmt.Errorf("failed to read %d %s: %w", n, what, io.ErrUnexpectedEOF)
	}
	out := make([]T, n)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return out, nil
}

// Write writes the tables in the order ReadTable expects.
func (t *Table) Write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, t.Schemas); err != nil {
		return fmt.Errorf("failed to write pointer schemas: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, t.Offsets); err != nil {
		return fmt.Errorf("failed to write pointer offsets: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, t.Relocations); err != nil {
		return fmt.Errorf("failed to write pointer relocations: %w", err)
	}
	return nil
}

// Fill copies the table sizes into hdr.
func (t *Table) Fill(hdr *types.FileHeader) {
	hdr.NbPtrSchemas = int32(len(t.Schemas))
	hdr.NbPtrOffsets = int32(len(t.Offsets))
	hdr.NbPtrRelocations = int32(len(t.Relocations))
}
