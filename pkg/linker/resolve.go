package linker

import (
	"github.com/daimatz/godex/pkg/mirror"
)

func badIndex(err error) error {
	return &mirror.JavaException{Descriptor: mirror.VirtualMachineError, Message: err.Error(), Cause: err}
}

// ResolveType resolves type index idx of referrer's pools.
func (l *Linker) ResolveType(idx uint32, referrer *mirror.Method) (*mirror.Class, error) {
	f := referrer.DexFile()
	key := cacheKey{f, idx}
	l.mu.RLock()
	c, ok := l.types[key]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}
	desc, err := f.TypeAt(idx)
	if err != nil {
		return nil, badIndex(err)
	}
	c, err = l.FindClass(desc)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.types[key] = c
	l.mu.Unlock()
	return c, nil
}

// ResolveTypeChecked resolves a type and, with accessCheck, verifies that
// referrer's class may use it.
func (l *Linker) ResolveTypeChecked(idx uint32, referrer *mirror.Method, accessCheck bool) (*mirror.Class, error) {
	c, err := l.ResolveType(idx, referrer)
	if err != nil {
		return nil, err
	}
	if accessCheck && !referrer.Declaring.CanAccess(c) {
		return nil, mirror.NewJavaException(mirror.IllegalAccessError,
			"Illegal class access: '%s' attempting to access '%s'", referrer.Declaring.Name(), c.Name())
	}
	return c, nil
}

// ResolveString returns the interned string at idx of referrer's pools.
func (l *Linker) ResolveString(idx uint32, referrer *mirror.Method) (*mirror.Object, error) {
	f := referrer.DexFile()
	key := cacheKey{f, idx}
	l.mu.RLock()
	s, ok := l.strings[key]
	l.mu.RUnlock()
	if ok {
		return s, nil
	}
	str, err := f.StringAt(idx)
	if err != nil {
		return nil, badIndex(err)
	}
	s, err = l.InternString(str)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.strings[key] = s
	l.mu.Unlock()
	return s, nil
}

// LookupResolvedField returns a field resolved earlier through referrer's
// pools, or nil.
func (l *Linker) LookupResolvedField(idx uint32, referrer *mirror.Method) *mirror.Field {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fields[cacheKey{referrer.DexFile(), idx}]
}

// ResolveField resolves field index idx. isStatic selects the static or
// instance lookup; a field of the other kind is an
// IncompatibleClassChangeError.
func (l *Linker) ResolveField(idx uint32, referrer *mirror.Method, isStatic, accessCheck bool) (*mirror.Field, error) {
	f := referrer.DexFile()
	key := cacheKey{f, idx}
	l.mu.RLock()
	field, ok := l.fields[key]
	l.mu.RUnlock()
	if !ok {
		id, err := f.FieldAt(idx)
		if err != nil {
			return nil, badIndex(err)
		}
		c, err := l.FindClass(id.Class)
		if err != nil {
			return nil, err
		}
		if isStatic {
			field = c.FindStaticField(id.Name, id.Type)
		} else {
			field = c.FindInstanceField(id.Name, id.Type)
		}
		if field == nil {
			// The other kind exists: report the mismatch rather than a miss.
			if isStatic {
				field = c.FindInstanceField(id.Name, id.Type)
			} else {
				field = c.FindStaticField(id.Name, id.Type)
			}
		}
		if field == nil {
			kind := "instance"
			if isStatic {
				kind = "static"
			}
			return nil, mirror.NewJavaException(mirror.NoSuchFieldError,
				"No %s field %s of type %s in class %s", kind, id.Name, id.Type, id.Class)
		}
		l.mu.Lock()
		l.fields[key] = field
		l.mu.Unlock()
	}
	if field.IsStatic() != isStatic {
		want := "instance"
		if isStatic {
			want = "static"
		}
		return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
			"Expected %s field %s", want, field.PrettyField())
	}
	if accessCheck {
		from := referrer.Declaring
		if !from.CanAccess(field.Declaring) || !from.CanAccessMember(field.Declaring, field.AccessFlags) {
			return nil, mirror.NewJavaException(mirror.IllegalAccessError,
				"Field '%s' is inaccessible to class '%s'", field.PrettyField(), from.Name())
		}
	}
	return field, nil
}

// ResolveMethod resolves method index idx for a call of the given kind.
func (l *Linker) ResolveMethod(idx uint32, referrer *mirror.Method, kind mirror.InvokeType, accessCheck bool) (*mirror.Method, error) {
	f := referrer.DexFile()
	key := cacheKey{f, idx}
	l.mu.RLock()
	m, ok := l.methods[key]
	l.mu.RUnlock()
	id, err := f.MethodAt(idx)
	if err != nil {
		return nil, badIndex(err)
	}
	c, err := l.FindClass(id.Class)
	if err != nil {
		return nil, err
	}
	if !ok {
		switch kind {
		case mirror.InvokeStatic, mirror.InvokeDirect:
			m = c.FindDirectMethod(id.Name, id.Descriptor)
		case mirror.InvokeVirtual, mirror.InvokeSuper:
			m = c.FindVirtualMethod(id.Name, id.Descriptor)
		case mirror.InvokeInterface:
			m = c.FindInterfaceMethod(id.Name, id.Descriptor)
			if m == nil && c.IsInterface() {
				object, err := l.FindClass(objectClass)
				if err != nil {
					return nil, err
				}
				m = object.FindVirtualMethod(id.Name, id.Descriptor)
			}
		}
		if m == nil {
			m = c.FindMethod(id.Name, id.Descriptor)
		}
		if m == nil {
			return nil, mirror.NewJavaException(mirror.NoSuchMethodError,
				"No %s method %s%s in class %s or its super classes", kind, id.Name, id.Descriptor, id.Class)
		}
		l.mu.Lock()
		l.methods[key] = m
		l.mu.Unlock()
	}
	if (kind == mirror.InvokeStatic) != m.IsStatic() {
		return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
			"The method '%s' was expected to be of type %s but instead was found to be of type %s",
			m.PrettyMethod(), kind, methodKind(m))
	}
	if accessCheck {
		switch {
		case kind == mirror.InvokeInterface && !c.IsInterface():
			return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
				"Found class %s, but interface was expected", c.Name())
		case kind != mirror.InvokeInterface && kind != mirror.InvokeStatic && c.IsInterface() && !m.Declaring.IsObjectClass():
			return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
				"Found interface %s, but class was expected", c.Name())
		}
		from := referrer.Declaring
		if !from.CanAccess(m.Declaring) || !from.CanAccessMember(m.Declaring, m.AccessFlags) {
			return nil, mirror.NewJavaException(mirror.IllegalAccessError,
				"Method '%s' is inaccessible to class '%s'", m.PrettyMethod(), from.Name())
		}
	}
	return m, nil
}

func methodKind(m *mirror.Method) mirror.InvokeType {
	switch {
	case m.IsStatic():
		return mirror.InvokeStatic
	case m.IsDirect():
		return mirror.InvokeDirect
	case m.Declaring.IsInterface():
		return mirror.InvokeInterface
	}
	return mirror.InvokeVirtual
}
