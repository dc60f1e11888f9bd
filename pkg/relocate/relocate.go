// Package relocate converts the pointer slots of a flat database image
// between absolute addresses and offsets from the start of the image.
//
// A Schema lists the byte offsets holding pointers inside one element of
// an array. A relocation applies a schema to a run of consecutive elements.
// Exporters record relocations while laying an image out and call
// MakeRelative before writing it. Loaders read the same tables back and
// call Rebase on the loaded bytes.
package relocate

import (
	"encoding/binary"
	"fmt"

	"github.com/Celtoys/clReflect-sub006/types"
)

// A Schema describes where pointers live inside one element of an array.
type Schema struct {
	Handle     int32
	Stride     uint32
	Base       *Schema
	PtrOffsets []uint32
}

// Add appends pointer offsets to the schema and returns it for chaining.
func (s *Schema) Add(offsets ...uint32) *Schema {
	s.PtrOffsets = append(s.PtrOffsets, offsets...)
	return s
}

// Relocator records relocations against an image that starts at a given
// address.
type Relocator struct {
	start       uint64
	size        uint64
	schemas     []*Schema
	relocations []types.PtrRelocation
}

// NewRelocator returns a relocator for an image of size bytes whose first
// byte lives at start.
func NewRelocator(start, size uint64) *Relocator {
	return &Relocator{start: start, size: size}
}

// AddSchema registers a schema for elements of stride bytes. The pointer
// offsets of base, if any, are copied in first.
func (r *Relocator) AddSchema(stride uint32, base *Schema) *Schema {
	s := &Schema{
		Handle: int32(len(r.schemas)),
		Stride: stride,
		Base:   base,
	}
	if base != nil {
		s.PtrOffsets = append(s.PtrOffsets, base.PtrOffsets...)
	}
	r.schemas = append(r.schemas, s)
	return s
}

// AddPointers records that nbObjects elements laid out with schema s start
// at address addr. A zero address is ignored.
func (r *Relocator) AddPointers(s *Schema, addr uint64, nbObjects int) {
	if addr == 0 || nbObjects == 0 {
		return
	}
	r.relocations = append(r.relocations, types.PtrRelocation{
		SchemaHandle: s.Handle,
		Offset:       uint32(addr - r.start),
		NbObjects:    int32(nbObjects),
	})
}

// Table flattens the recorded schemas and relocations into their on-disk form.
func (r *Relocator) Table() *Table {
	t := &Table{Relocations: append([]types.PtrRelocation(nil), r.relocations...)}
	for _, s := range r.schemas {
		t.Schemas = append(t.Schemas, types.PtrSchema{
			Stride:     s.Stride,
			PtrsOffset: uint32(len(t.Offsets)),
			NbPtrs:     uint32(len(s.PtrOffsets)),
		})
		for _, off := range s.PtrOffsets {
			t.Offsets = append(t.Offsets, int32(off))
		}
	}
	return t
}

// MakeRelative rewrites every non-null pointer in data as its distance from
// the start of the image. data must be the image the relocations describe.
func (r *Relocator) MakeRelative(data []byte) error {
	if uint64(len(data)) != r.size {
		return fmt.Errorf("image is %d bytes, relocator expects %d", len(data), r.size)
	}
	t := r.Table()
	check := func(slot uint32, ptr uint64) error {
		if ptr < r.start || ptr-r.start >= r.size {
			return fmt.Errorf("pointer %#x at offset %#x points outside the image [%#x, %#x)", ptr, slot, r.start, r.start+r.size)
		}
		return nil
	}
	if err := t.Walk(data, check); err != nil {
		return err
	}
	return t.Walk(data, func(slot uint32, ptr uint64) error {
		binary.LittleEndian.PutUint64(data[slot:], ptr-r.start)
		return nil
	})
}

// Table holds the relocation tables stored alongside an image.
type Table struct {
	Schemas     []types.PtrSchema
	Offsets     []int32
	Relocations []types.PtrRelocation
}

// Walk calls fn for every non-null pointer slot the relocations describe,
// with the slot's offset in data and its current value. Malformed tables
// and slots outside data are reported as errors before fn sees them.
func (t *Table) Walk(data []byte, fn func(slot uint32, ptr uint64) error) error {
	for i, reloc := range t.Relocations {
		if reloc.SchemaHandle < 0 || int(reloc.SchemaHandle) >= len(t.Schemas) {
			return fmt.Errorf("relocation %d: invalid schema handle %d", i, reloc.SchemaHandle)
		}
		if reloc.NbObjects < 0 {
			return fmt.Errorf("relocation %d: invalid object count %d", i, reloc.NbObjects)
		}
		schema := t.Schemas[reloc.SchemaHandle]
		if uint64(schema.PtrsOffset)+uint64(schema.NbPtrs) > uint64(len(t.Offsets)) {
			return fmt.Errorf("schema %d: pointer offsets [%d, %d) out of range", reloc.SchemaHandle, schema.PtrsOffset, schema.PtrsOffset+schema.NbPtrs)
		}
		ptrOffsets := t.Offsets[schema.PtrsOffset : schema.PtrsOffset+schema.NbPtrs]

		for j := int32(0); j < reloc.NbObjects; j++ {
			object := uint64(reloc.Offset) + uint64(j)*uint64(schema.Stride)
			for _, po := range ptrOffsets {
				slot := object + uint64(po)
				if po < 0 || slot+types.PtrSize > uint64(len(data)) {
					return fmt.Errorf("relocation %d: pointer slot %#x outside data of size %#x", i, slot, len(data))
				}
				ptr := binary.LittleEndian.Uint64(data[slot:])
				if ptr == 0 {
					continue
				}
				if err := fn(uint32(slot), ptr); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Rebase turns every non-null relative pointer in data into base plus the
// stored offset. Nothing is written unless every stored offset lies inside
// data.
func (t *Table) Rebase(data []byte, base uint64) error {
	check := func(slot uint32, ptr uint64) error {
		if ptr >= uint64(len(data)) {
			return fmt.Errorf("relative pointer %#x at offset %#x exceeds data size %#x", ptr, slot, len(data))
		}
		return nil
	}
	if err := t.Walk(data, check); err != nil {
		return err
	}
	return t.Walk(data, func(slot uint32, ptr uint64) error {
		binary.LittleEndian.PutUint64(data[slot:], base+ptr)
		return nil
	})
}
