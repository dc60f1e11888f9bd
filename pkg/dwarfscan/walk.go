package dwarfscan

import (
	"strings"

	"github.com/blacktop/go-dwarf"
)

type pendingClass struct {
	scope string
	typ   *dwarf.StructType
	base  dwarf.Type
	args  []dwarf.Type
}

type pendingFunc struct {
	scope  string
	name   string
	ret    dwarf.Type
	params []Param
	addr   uint64
}

// frame is the state of one DIE with children while its children are read.
type frame struct {
	scope string
	class *pendingClass
	fn    *pendingFunc
}

type enterFunc func(e *dwarf.Entry, parent *frame) *frame

// walk visits every DIE in tree order. enter returns the frame for the
// children of e, or nil to skip them; leave runs once they are consumed.
func walk(data *dwarf.Data, enter enterFunc, leave func(*frame)) error {
	r := data.Reader()
	stack := []*frame{{}}
	for {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		top := stack[len(stack)-1]
		if e.Tag == 0 {
			if len(stack) > 1 {
				leave(top)
				stack = stack[:len(stack)-1]
			}
			continue
		}

		next := enter(e, top)
		switch {
		case next == nil:
			if e.Children {
				r.SkipChildren()
			}
		case e.Children:
			stack = append(stack, next)
		default:
			leave(next)
		}
	}
}

func entryName(e *dwarf.Entry) string {
	s, _ := e.Val(dwarf.AttrName).(string)
	return s
}

func (s *Scanner) entryType(data *dwarf.Data, e *dwarf.Entry) dwarf.Type {
	off, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return nil
	}
	t, err := data.Type(off)
	if err != nil {
		s.log.Printf("WARNING: entry %#x: %v", e.Offset, err)
		return nil
	}
	return t
}

func (s *Scanner) ownType(data *dwarf.Data, e *dwarf.Entry) dwarf.Type {
	t, err := data.Type(e.Offset)
	if err != nil {
		s.log.Printf("WARNING: entry %#x: %v", e.Offset, err)
		return nil
	}
	return t
}

// Scan adds every reflectable entity in data. Types are named in a first
// pass so references to types declared later resolve to scoped names.
func (s *Scanner) Scan(data *dwarf.Data) error {
	if err := walk(data, func(e *dwarf.Entry, f *frame) *frame {
		return s.name(data, e, f)
	}, func(*frame) {}); err != nil {
		return err
	}
	return walk(data, func(e *dwarf.Entry, f *frame) *frame {
		return s.enter(data, e, f)
	}, s.leave)
}

func (s *Scanner) name(data *dwarf.Data, e *dwarf.Entry, f *frame) *frame {
	switch e.Tag {
	case dwarf.TagCompileUnit:
		return &frame{}
	case dwarf.TagNamespace:
		if name := entryName(e); name != "" {
			return &frame{scope: join(f.scope, name)}
		}
		return &frame{scope: f.scope}
	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType, dwarf.TagEnumerationType:
		if entryName(e) == "" {
			return nil
		}
		t := s.ownType(data, e)
		if t == nil {
			return nil
		}
		full := s.Register(f.scope, t)
		if e.Tag == dwarf.TagEnumerationType {
			return nil
		}
		return &frame{scope: full}
	}
	return nil
}

func (s *Scanner) enter(data *dwarf.Data, e *dwarf.Entry, f *frame) *frame {
	if f.fn != nil {
		if e.Tag == dwarf.TagFormalParameter {
			if art, _ := e.Val(dwarf.AttrArtificial).(bool); !art {
				f.fn.params = append(f.fn.params, Param{Name: entryName(e), Type: s.entryType(data, e)})
			}
		}
		return nil
	}

	switch e.Tag {
	case dwarf.TagCompileUnit:
		return &frame{}

	case dwarf.TagNamespace:
		if name := entryName(e); name != "" {
			return &frame{scope: s.AddNamespace(f.scope, name)}
		}
		return &frame{scope: f.scope}

	case dwarf.TagBaseType:
		if t := s.ownType(data, e); t != nil {
			s.AddBaseType(t)
		}

	case dwarf.TagEnumerationType:
		if et, ok := s.ownType(data, e).(*dwarf.EnumType); ok {
			s.AddEnum(f.scope, et)
		}

	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType:
		st, ok := s.ownType(data, e).(*dwarf.StructType)
		if !ok || st.StructName == "" || st.Incomplete {
			return nil
		}
		return &frame{scope: join(f.scope, st.StructName), class: &pendingClass{scope: f.scope, typ: st}}

	case dwarf.TagInheritance:
		if f.class != nil && f.class.base == nil {
			f.class.base = s.entryType(data, e)
		}

	case dwarf.TagTemplateTypeParameter:
		if f.class != nil {
			f.class.args = append(f.class.args, s.entryType(data, e))
		}

	case dwarf.TagSubprogram:
		if e.Val(dwarf.AttrSpecification) != nil {
			return nil
		}
		if art, _ := e.Val(dwarf.AttrArtificial).(bool); art {
			return nil
		}
		name := entryName(e)
		if name == "" {
			return nil
		}
		addr, _ := e.Val(dwarf.AttrLowpc).(uint64)
		return &frame{scope: f.scope, fn: &pendingFunc{scope: f.scope, name: name, ret: s.entryType(data, e), addr: addr}}
	}
	return nil
}

func (s *Scanner) leave(f *frame) {
	switch {
	case f.class != nil:
		c := f.class
		if strings.IndexByte(c.typ.StructName, '<') > 0 {
			s.AddTemplateType(c.scope, c.typ, c.args)
		} else {
			s.AddStruct(c.scope, c.typ, c.base)
		}
	case f.fn != nil:
		s.AddFunction(f.fn.scope, f.fn.name, f.fn.ret, f.fn.params, f.fn.addr)
	}
}
