package types

import (
	"bytes"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNone, "Attribute"},
		{KindClass, "Class"},
		{KindTemplateType, "TemplateType"},
		{Kind(99), "0x63"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("Kind.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindPredicates(t *testing.T) {
	for k := KindNone; k <= KindNamespace; k++ {
		if got, want := k.IsAttribute(), k <= KindTextAttribute; got != want {
			t.Errorf("%v.IsAttribute() = %v, want %v", k, got, want)
		}
		if RecordSize(k) == 0 {
			t.Errorf("RecordSize(%v) = 0", k)
		}
	}
	for _, k := range []Kind{KindType, KindEnum, KindClass, KindTemplateType} {
		if !k.IsType() {
			t.Errorf("%v.IsType() = false", k)
		}
	}
	if KindFunction.IsType() {
		t.Errorf("KindFunction.IsType() = true")
	}
}

func TestFieldRole(t *testing.T) {
	m := ClassMember(16)
	if off, ok := m.Offset(); !ok || off != 16 {
		t.Errorf("ClassMember(16).Offset() = %d, %v", off, ok)
	}
	if _, ok := m.Index(); ok {
		t.Errorf("ClassMember(16).Index() reported a parameter")
	}
	p := Parameter(2)
	if idx, ok := p.Index(); !ok || idx != 2 {
		t.Errorf("Parameter(2).Index() = %d, %v", idx, ok)
	}
	if got := p.String(); got != "param #2" {
		t.Errorf("Parameter(2).String() = %q", got)
	}
}

func TestFileHeader(t *testing.T) {
	h := NewFileHeader()
	h.NbPtrSchemas = 3
	h.NbPtrOffsets = 7
	h.NbPtrRelocations = 11
	h.DataSize = 0x1234

	if !h.Valid() {
		t.Fatalf("NewFileHeader() is not valid")
	}

	put := make([]byte, FileHeaderSize)
	if n := h.Put(put); n != FileHeaderSize {
		t.Errorf("Put() = %d, want %d", n, FileHeaderSize)
	}
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(put, buf.Bytes()) {
		t.Errorf("Put() and Write() disagree:\n%x\n%x", put, buf.Bytes())
	}
	if string(put[:7]) != Signature {
		t.Errorf("signature = %q", put[:7])
	}

	h.Version++
	if h.Valid() {
		t.Errorf("header with version %d reported valid", h.Version)
	}
}
