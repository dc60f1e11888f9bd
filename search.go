package clreflect

import (
	"sort"

	"github.com/Celtoys/clReflect-sub006/pkg/namehash"
)

// FindPrimitive returns the element of s whose name hash is hash, or the
// zero value when there is none. s must be sorted by name hash.
func FindPrimitive[T Entity](s []T, hash uint32) T {
	i := sort.Search(len(s), func(i int) bool { return s[i].Common().Name.Hash >= hash })
	if i < len(s) && s[i].Common().Name.Hash == hash {
		return s[i]
	}
	var zero T
	return zero
}

// FindOverloadedPrimitive returns every element of s sharing the name hash.
// The result aliases s.
func FindOverloadedPrimitive[T Entity](s []T, hash uint32) []T {
	lo := sort.Search(len(s), func(i int) bool { return s[i].Common().Name.Hash >= hash })
	hi := lo
	for hi < len(s) && s[hi].Common().Name.Hash == hash {
		hi++
	}
	return s[lo:hi]
}

// GetName returns the registered name with the given hash. Unknown hashes
// give the empty name.
func (db *Database) GetName(hash uint32) Name {
	i := sort.Search(len(db.Names), func(i int) bool { return db.Names[i].Hash >= hash })
	if i < len(db.Names) && db.Names[i].Hash == hash {
		return db.Names[i]
	}
	return Name{}
}

// GetType returns the type, enum, class or template instance with the
// given name hash, or nil.
func (db *Database) GetType(hash uint32) TypeEntity {
	return FindPrimitive(db.TypePrimitives, hash)
}

// GetNamespace returns the namespace with the given name hash, or nil.
func (db *Database) GetNamespace(hash uint32) *Namespace {
	return FindPrimitive(db.Namespaces, hash)
}

// GetFunction returns a function with the given name hash, or nil. Use
// GetFunctions to see every overload.
func (db *Database) GetFunction(hash uint32) *Function {
	return FindPrimitive(db.Functions, hash)
}

// GetFunctions returns every overload with the given name hash.
func (db *Database) GetFunctions(hash uint32) []*Function {
	return FindOverloadedPrimitive(db.Functions, hash)
}

// GetTemplate returns the template with the given name hash, or nil.
func (db *Database) GetTemplate(hash uint32) *Template {
	return FindPrimitive(db.Templates, hash)
}

// GetGlobalNamespace returns the namespace holding every top level primitive.
func (db *Database) GetGlobalNamespace() *Namespace { return db.GlobalNamespace }

// TypeByName is GetType for a fully scoped name such as "NS::Foo".
func (db *Database) TypeByName(name string) TypeEntity {
	return db.GetType(namehash.String(name))
}

// FunctionByName is GetFunction for a fully scoped name.
func (db *Database) FunctionByName(name string) *Function {
	return db.GetFunction(namehash.String(name))
}
