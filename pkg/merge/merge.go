// Package merge folds per translation unit databases into one.
package merge

import (
	"io"
	"log"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
)

// Stats counts what a merge did.
type Stats struct {
	Added     int // primitives copied into the destination
	Skipped   int // duplicates already present in the destination
	Conflicts int // classes whose definitions disagree
}

func (s *Stats) add(o Stats) {
	s.Added += o.Added
	s.Skipped += o.Skipped
	s.Conflicts += o.Conflicts
}

// Databases merges src into dst.
//
// Namespaces, types, enums, templates, template instances and classes are
// unique by name: the first definition seen wins. A class seen again with a
// different size or base class is reported to logger and otherwise ignored.
// Enum constants, functions, fields and attributes may be overloaded, so an
// entry is only dropped when a structurally equal one already exists.
//
// A nil logger discards diagnostics.
func Databases(dst, src *cldb.Database, logger *log.Logger) Stats {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	// names first so diagnostics can resolve text
	for _, n := range src.Names() {
		dst.GetName(n.Text)
	}

	var st Stats
	st.add(uniques(&dst.Namespaces, &src.Namespaces, nil))
	st.add(uniques(&dst.Types, &src.Types, nil))
	st.add(uniques(&dst.Enums, &src.Enums, nil))
	st.add(uniques(&dst.Templates, &src.Templates, nil))
	st.add(uniques(&dst.TemplateTypes, &src.TemplateTypes, nil))
	st.add(uniques(&dst.Classes, &src.Classes, func(s, d cldb.Class) bool {
		return checkClass(logger, s, d)
	}))

	st.add(overloads(&dst.EnumConstants, &src.EnumConstants))
	st.add(overloads(&dst.Functions, &src.Functions))
	st.add(overloads(&dst.Fields, &src.Fields))
	st.add(overloads(&dst.FlagAttributes, &src.FlagAttributes))
	st.add(overloads(&dst.IntAttributes, &src.IntAttributes))
	st.add(overloads(&dst.FloatAttributes, &src.FloatAttributes))
	st.add(overloads(&dst.NameAttributes, &src.NameAttributes))
	st.add(overloads(&dst.TextAttributes, &src.TextAttributes))

	return st
}

// checkClass reports whether two definitions of one class agree.
func checkClass(logger *log.Logger, src, dst cldb.Class) bool {
	ok := true
	if src.BaseClass != dst.BaseClass {
		logger.Printf("WARNING: Class %s differs in base class specification during merge\n", src.Name.Text)
		ok = false
	}
	if src.Size != dst.Size {
		logger.Printf("WARNING: Class %s differs in size during merge\n", src.Name.Text)
		ok = false
	}
	return ok
}

func uniques[T cldb.Entity](dst, src *cldb.Store[T], check func(src, dst T) bool) Stats {
	var st Stats
	for _, s := range src.All() {
		d, found := dst.FindHash(s.Common().Name.Hash)
		switch {
		case !found:
			dst.Add(s)
			st.Added++
		case check != nil && !check(s, d):
			st.Conflicts++
		default:
			st.Skipped++
		}
	}
	return st
}

func overloads[T cldb.Entity](dst, src *cldb.Store[T]) Stats {
	var st Stats
	for _, s := range src.All() {
		if dst.Contains(s) {
			st.Skipped++
			continue
		}
		dst.Add(s)
		st.Added++
	}
	return st
}
