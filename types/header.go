package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// Signature opens every exported database file.
	Signature = "crcppdb"
	// Version is the only format revision the loader accepts.
	Version uint32 = 1
)

// A FileHeader represents the header of an exported database file.
// It is stored packed and little endian.
type FileHeader struct {
	Signature        [7]byte
	Version          uint32
	NbPtrSchemas     int32
	NbPtrOffsets     int32
	NbPtrRelocations int32
	DataSize         uint32
}

const (
	FileHeaderSize    = 7 + 5*4
	PtrSchemaSize     = 3 * 4
	PtrOffsetSize     = 4
	PtrRelocationSize = 3 * 4
)

// NewFileHeader returns a header carrying the current signature and version.
func NewFileHeader() FileHeader {
	var h FileHeader
	copy(h.Signature[:], Signature)
	h.Version = Version
	return h
}

func (h *FileHeader) Put(b []byte) int {
	copy(b[0:7], h.Signature[:])
	binary.LittleEndian.PutUint32(b[7:], h.Version)
	binary.LittleEndian.PutUint32(b[11:], uint32(h.NbPtrSchemas))
	binary.LittleEndian.PutUint32(b[15:], uint32(h.NbPtrOffsets))
	binary.LittleEndian.PutUint32(b[19:], uint32(h.NbPtrRelocations))
	binary.LittleEndian.PutUint32(b[23:], h.DataSize)
	return FileHeaderSize
}

func (h *FileHeader) Write(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("failed to write database file header to buffer: %v", err)
	}
	return nil
}

// Valid reports whether the signature and version match this build.
func (h *FileHeader) Valid() bool {
	return string(h.Signature[:]) == Signature && h.Version == Version
}

func (h *FileHeader) String() string {
	return fmt.Sprintf("Signature: %q Version: %d Schemas: %d Offsets: %d Relocations: %d DataSize: %#x",
		h.Signature[:], h.Version, h.NbPtrSchemas, h.NbPtrOffsets, h.NbPtrRelocations, h.DataSize)
}

// A PtrSchema record describes the pointer layout of one array element type.
// PtrsOffset indexes the flattened pointer offset table.
type PtrSchema struct {
	Stride     uint32
	PtrsOffset uint32
	NbPtrs     uint32
}

// A PtrRelocation record applies a schema to NbObjects consecutive elements
// starting at Offset inside the data blob.
type PtrRelocation struct {
	SchemaHandle int32
	Offset       uint32
	NbObjects    int32
}
