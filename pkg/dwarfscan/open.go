package dwarfscan

import (
	"bytes"
	"compress/zlib"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blacktop/go-dwarf"
	"github.com/blacktop/go-macho"
)

// ErrNoDebugInfo is returned for binaries without a .debug_info section.
var ErrNoDebugInfo = errors.New("no DWARF debug information")

// OpenFile loads the DWARF data of a Mach-O or ELF binary.
func OpenFile(name string) (*dwarf.Data, error) {
	if m, err := macho.Open(name); err == nil {
		defer m.Close()
		d, err := m.DWARF()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}

	f, err := elf.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: not a Mach-O or ELF binary: %w", name, err)
	}
	defer f.Close()
	d, err := elfDWARF(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func elfDWARF(f *elf.File) (*dwarf.Data, error) {
	suffix := func(s *elf.Section) string {
		switch {
		case strings.HasPrefix(s.Name, ".debug_"):
			return s.Name[7:]
		case strings.HasPrefix(s.Name, ".zdebug_"):
			return s.Name[8:]
		}
		return ""
	}

	dat := map[string][]byte{"abbrev": nil, "info": nil, "str": nil, "line": nil, "ranges": nil}
	for _, s := range f.Sections {
		sfx := suffix(s)
		if _, ok := dat[sfx]; !ok {
			continue
		}
		b, err := s.Data()
		if err != nil {
			return nil, err
		}
		if b, err = decompress(b); err != nil {
			return nil, fmt.Errorf("section %s: %w", s.Name, err)
		}
		dat[sfx] = b
	}
	if dat["info"] == nil {
		return nil, ErrNoDebugInfo
	}
	return dwarf.New(dat["abbrev"], nil, nil, dat["info"], dat["line"], nil, dat["ranges"], dat["str"])
}

// decompress expands the legacy "ZLIB" + big endian length framing used by
// .zdebug sections.
func decompress(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		return b, nil
	}
	dbuf := make([]byte, binary.BigEndian.Uint64(b[4:12]))
	r, err := zlib.NewReader(bytes.NewReader(b[12:]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, dbuf); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return dbuf, nil
}
