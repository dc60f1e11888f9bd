package namehash

import (
	"encoding/binary"
	"testing"

	"github.com/spaolacci/murmur3"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		text string
		want uint32
	}{
		{"empty", "", NoName},
		{"hello", "hello", 0x248bfa47},
		{"hello world", "hello, world", 0x149bbb7f},
		{"sentence", "The quick brown fox jumps over the lazy dog.", 0xd5c48bfc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.text); got != tt.want {
				t.Errorf("String(%q) = %#x, want %#x", tt.text, got, tt.want)
			}
		})
	}
}

func TestStringDeterministic(t *testing.T) {
	names := []string{"int", "NS::Foo", "NS::Foo::size", "return", "ConstructObject"}
	for _, n := range names {
		a, b := String(n), String(n)
		if a != b {
			t.Errorf("String(%q) not stable: %#x != %#x", n, a, b)
		}
		if a == NoName {
			t.Errorf("String(%q) returned the no-name hash", n)
		}
	}
}

func TestData(t *testing.T) {
	if got := Data([]byte("hello"), 1); got != 0xbb4abcad {
		t.Errorf("Data() = %#x, want %#x", got, uint32(0xbb4abcad))
	}
}

func TestMix(t *testing.T) {
	a, b := String("int"), String("float")

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], b)
	if got, want := Mix(a, b), murmur3.Sum32WithSeed(buf[:], a); got != want {
		t.Errorf("Mix() = %#x, want %#x", got, want)
	}
	if Mix(a, b) == Mix(b, a) {
		t.Errorf("Mix() should depend on argument order")
	}
}
