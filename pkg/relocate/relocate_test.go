package relocate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Celtoys/clReflect-sub006/types"
)

const (
	headerSize = 16 // {first node pointer, count}
	nodeSize   = 24 // {next pointer, value, owner pointer}
)

// buildImage lays out a header followed by a linked list of n nodes at the
// given start address and returns the image with the relocator describing it.
func buildImage(start uint64, n int) ([]byte, *Relocator) {
	size := headerSize + n*nodeSize
	data := make([]byte, size)
	put := func(off int, v uint64) { binary.LittleEndian.PutUint64(data[off:], v) }

	if n > 0 {
		put(0, start+headerSize)
	}
	put(8, uint64(n))
	for i := 0; i < n; i++ {
		node := headerSize + i*nodeSize
		if i+1 < n {
			put(node, start+uint64(node+nodeSize))
		}
		put(node+8, uint64(i*100))
		put(node+16, start+8)
	}

	r := NewRelocator(start, uint64(size))
	header := r.AddSchema(headerSize, nil).Add(0)
	link := r.AddSchema(nodeSize, nil).Add(0)
	node := r.AddSchema(nodeSize, link).Add(16)
	r.AddPointers(header, start, 1)
	r.AddPointers(node, start+headerSize, n)
	return data, r
}

// targets returns, for every non-null pointer slot, the offset it refers to.
func targets(t *testing.T, tbl *Table, data []byte, base uint64) map[uint32]uint64 {
	t.Helper()
	m := map[uint32]uint64{}
	if err := tbl.Walk(data, func(slot uint32, ptr uint64) error {
		m[slot] = ptr - base
		return nil
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return m
}

func TestAddSchema(t *testing.T) {
	r := NewRelocator(0x1000, 0x100)
	base := r.AddSchema(24, nil).Add(8, 16)
	derived := r.AddSchema(32, base).Add(24)

	if base.Handle != 0 || derived.Handle != 1 {
		t.Errorf("handles = %d, %d", base.Handle, derived.Handle)
	}
	if diff := cmp.Diff([]uint32{8, 16, 24}, derived.PtrOffsets); diff != "" {
		t.Errorf("derived offsets mismatch (-want +got):\n%s", diff)
	}

	r.AddPointers(derived, 0, 3)
	r.AddPointers(derived, 0x1040, 0)
	r.AddPointers(derived, 0x1040, 2)
	tbl := r.Table()
	want := &Table{
		Schemas: []types.PtrSchema{
			{Stride: 24, PtrsOffset: 0, NbPtrs: 2},
			{Stride: 32, PtrsOffset: 2, NbPtrs: 3},
		},
		Offsets:     []int32{8, 16, 8, 16, 24},
		Relocations: []types.PtrRelocation{{SchemaHandle: 1, Offset: 0x40, NbObjects: 2}},
	}
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("Table() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		start uint64
		base  uint64
		nodes int
	}{
		{"same base", 0x10000, 0x10000, 3},
		{"higher base", 0x10000, 0x7fff00000000, 5},
		{"lower base", 0x40000000, 0x2000, 1},
		{"empty list", 0x10000, 0x20000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, r := buildImage(tt.start, tt.nodes)
			before := targets(t, r.Table(), data, tt.start)

			if err := r.MakeRelative(data); err != nil {
				t.Fatalf("MakeRelative() error = %v", err)
			}
			relative := targets(t, r.Table(), data, 0)
			if diff := cmp.Diff(before, relative); diff != "" {
				t.Errorf("relative pointers mismatch (-absolute +relative):\n%s", diff)
			}

			// Through the on-disk encoding.
			var buf bytes.Buffer
			if err := r.Table().Write(&buf); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			hdr := types.NewFileHeader()
			r.Table().Fill(&hdr)
			tbl, err := ReadTable(&buf, &hdr)
			if err != nil {
				t.Fatalf("ReadTable() error = %v", err)
			}

			if err := tbl.Rebase(data, tt.base); err != nil {
				t.Fatalf("Rebase() error = %v", err)
			}
			after := targets(t, tbl, data, tt.base)
			if diff := cmp.Diff(before, after); diff != "" {
				t.Errorf("rebased pointers mismatch (-before +after):\n%s", diff)
			}
			if tt.nodes > 0 {
				if got := binary.LittleEndian.Uint64(data[headerSize+8*1:]); got != 0 {
					t.Errorf("first node value changed to %d", got)
				}
			}
		})
	}
}

func TestReadTableCounts(t *testing.T) {
	_, r := buildImage(0x10000, 3)
	var buf bytes.Buffer
	if err := r.Table().Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	good := types.NewFileHeader()
	r.Table().Fill(&good)

	tests := []struct {
		name string
		edit func(h *types.FileHeader)
	}{
		{"schemas", func(h *types.FileHeader) { h.NbPtrSchemas = 0x7fffffff }},
		{"offsets", func(h *types.FileHeader) { h.NbPtrOffsets = 0x7fffffff }},
		{"relocations", func(h *types.FileHeader) { h.NbPtrRelocations = 0x7fffffff }},
		{"one too many", func(h *types.FileHeader) { h.NbPtrRelocations++ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := good
			tt.edit(&hdr)
			tbl, err := ReadTable(bytes.NewReader(buf.Bytes()), &hdr)
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("ReadTable() = %v, %v, want %v", tbl, err, io.ErrUnexpectedEOF)
			}
		})
	}

	tbl, err := ReadTable(bytes.NewReader(buf.Bytes()), &good)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if diff := cmp.Diff(r.Table(), tbl, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeRelativeErrors(t *testing.T) {
	data, r := buildImage(0x10000, 2)
	binary.LittleEndian.PutUint64(data[headerSize:], 0x99999)
	err := r.MakeRelative(data)
	if err == nil || !strings.Contains(err.Error(), "outside the image") {
		t.Fatalf("MakeRelative() error = %v, want outside the image", err)
	}
	// Nothing was rewritten.
	if got := binary.LittleEndian.Uint64(data[0:]); got != 0x10000+headerSize {
		t.Errorf("header pointer rewritten to %#x", got)
	}

	if err := r.MakeRelative(data[:8]); err == nil {
		t.Errorf("MakeRelative() accepted a truncated image")
	}
}

func TestRebaseErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tbl *Table, data []byte)
		wantErr string
	}{
		{
			name: "offset beyond data",
			mutate: func(tbl *Table, data []byte) {
				binary.LittleEndian.PutUint64(data[0:], uint64(len(data)))
			},
			wantErr: "exceeds data size",
		},
		{
			name: "bad schema handle",
			mutate: func(tbl *Table, data []byte) {
				tbl.Relocations[0].SchemaHandle = 9
			},
			wantErr: "invalid schema handle",
		},
		{
			name: "slot outside data",
			mutate: func(tbl *Table, data []byte) {
				tbl.Relocations[1].NbObjects = 50
			},
			wantErr: "outside data",
		},
		{
			name: "offsets out of range",
			mutate: func(tbl *Table, data []byte) {
				tbl.Schemas[0].NbPtrs = 40
			},
			wantErr: "out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, r := buildImage(0x10000, 2)
			if err := r.MakeRelative(data); err != nil {
				t.Fatalf("MakeRelative() error = %v", err)
			}
			tbl := r.Table()
			tt.mutate(tbl, data)
			orig := append([]byte(nil), data...)

			err := tbl.Rebase(data, 0x20000)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Rebase() error = %v, want %q", err, tt.wantErr)
			}
			if !bytes.Equal(orig, data) {
				t.Errorf("Rebase() modified data despite failing")
			}
		})
	}
}

type failWriter struct{ err error }

func (w failWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWriteTableError(t *testing.T) {
	_, r := buildImage(0x10000, 2)
	errFull := errors.New("disk full")
	if err := r.Table().Write(failWriter{errFull}); !errors.Is(err, errFull) {
		t.Errorf("Write() error = %v, want %v", err, errFull)
	}
}
