// Package linker is the class-resolution collaborator of the interpreter:
// it defines runtime classes from image definitions, resolves symbolic
// references with optional access checks and runs class initializers.
package linker

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/mirror"
)

var log = commonlog.GetLogger("godex.linker")

var primitives = map[string]byte{
	"Z": 'Z', "B": 'B', "C": 'C', "S": 'S', "I": 'I', "J": 'J', "F": 'F', "D": 'D', "V": 'V',
}

type cacheKey struct {
	file *dex.File
	idx  uint32
}

// Linker owns the class table.
type Linker struct {
	heap   *mirror.Heap
	loader Loader
	boot   *ImageLoader

	mu       sync.RWMutex
	defineMu sync.Mutex
	classes  map[string]*mirror.Class
	interned map[string]*mirror.Object

	types   map[cacheKey]*mirror.Class
	strings map[cacheKey]*mirror.Object
	fields  map[cacheKey]*mirror.Field
	methods map[cacheKey]*mirror.Method

	initGroup  singleflight.Group
	initMu     sync.Mutex
	initOwners map[*mirror.Class]any
}

// New creates a linker allocating from heap. Classes not found among the
// boot classes are requested from loader, which may be nil.
func New(heap *mirror.Heap, loader Loader) *Linker {
	l := &Linker{
		heap:       heap,
		loader:     loader,
		boot:       NewImageLoader(bootImage(), nil),
		classes:    make(map[string]*mirror.Class),
		interned:   make(map[string]*mirror.Object),
		types:      make(map[cacheKey]*mirror.Class),
		strings:    make(map[cacheKey]*mirror.Object),
		fields:     make(map[cacheKey]*mirror.Field),
		methods:    make(map[cacheKey]*mirror.Method),
		initOwners: make(map[*mirror.Class]any),
	}
	for _, d := range []string{objectClass, classClass, stringClass} {
		if _, err := l.FindClass(d); err != nil {
			panic(errors.Wrap(err, "linking boot classes"))
		}
	}
	return l
}

// Heap returns the allocator the linker creates strings and mirrors with.
func (l *Linker) Heap() *mirror.Heap { return l.heap }

// BootImage returns the image of the core library classes.
func (l *Linker) BootImage() *image.Image { return l.boot.Image }

// Classes returns a snapshot of every defined class.
func (l *Linker) Classes() []*mirror.Class {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*mirror.Class, 0, len(l.classes))
	for _, c := range l.classes {
		out = append(out, c)
	}
	return out
}

// FindClass returns the class of descriptor, defining it and its supertypes
// on first use. A miss is a NoClassDefFoundError.
func (l *Linker) FindClass(descriptor string) (*mirror.Class, error) {
	l.mu.RLock()
	c, ok := l.classes[descriptor]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}
	l.defineMu.Lock()
	defer l.defineMu.Unlock()
	return l.findClassLocked(descriptor)
}

// LookupClass returns an already defined class, or nil.
func (l *Linker) LookupClass(descriptor string) *mirror.Class {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classes[descriptor]
}

func (l *Linker) register(c *mirror.Class) {
	l.mu.Lock()
	l.classes[c.Descriptor] = c
	l.mu.Unlock()
}

func (l *Linker) findClassLocked(descriptor string) (*mirror.Class, error) {
	l.mu.RLock()
	c, ok := l.classes[descriptor]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}
	if p, ok := primitives[descriptor]; ok {
		c := &mirror.Class{Descriptor: descriptor, Primitive: p, AccessFlags: dex.AccPublic | dex.AccFinal | dex.AccAbstract}
		c.SetStatus(mirror.StatusInitialized)
		l.register(c)
		return c, nil
	}
	if len(descriptor) > 1 && descriptor[0] == '[' {
		return l.defineArrayClass(descriptor)
	}
	if !dex.ValidTypeDescriptor(descriptor) {
		return nil, mirror.NewJavaException(mirror.NoClassDefFoundError, "invalid descriptor %s", descriptor)
	}

	def, err := l.boot.LoadClass(descriptor)
	if err != nil && l.loader != nil {
		def, err = l.loader.LoadClass(descriptor)
	}
	if err != nil {
		log.Debugf("class lookup failed: %s", err)
		return nil, &mirror.JavaException{Descriptor: mirror.NoClassDefFoundError, Message: mirror.PrettyName(descriptor), Cause: err}
	}
	return l.defineClassLocked(def)
}

func (l *Linker) defineArrayClass(descriptor string) (*mirror.Class, error) {
	component, err := l.findClassLocked(descriptor[1:])
	if err != nil {
		return nil, err
	}
	object, err := l.findClassLocked(objectClass)
	if err != nil {
		return nil, err
	}
	cloneable, err := l.findClassLocked("Ljava/lang/Cloneable;")
	if err != nil {
		return nil, err
	}
	serializable, err := l.findClassLocked("Ljava/io/Serializable;")
	if err != nil {
		return nil, err
	}
	flags := uint32(dex.AccFinal | dex.AccAbstract)
	flags |= component.AccessFlags & (dex.AccPublic | dex.AccPrivate | dex.AccProtected)
	c := &mirror.Class{
		Descriptor:  descriptor,
		AccessFlags: flags,
		Super:       object,
		Interfaces:  []*mirror.Class{cloneable, serializable},
		Component:   component,
		VTable:      object.VTable,
		Loader:      component.Loader,
	}
	c.SetStatus(mirror.StatusInitialized)
	l.register(c)
	return c, nil
}

// DefineClass links def and registers the result. Supertypes are found
// through the usual lookup.
func (l *Linker) DefineClass(def *Definition) (*mirror.Class, error) {
	l.defineMu.Lock()
	defer l.defineMu.Unlock()
	if c := l.LookupClass(def.Class.Descriptor); c != nil {
		return nil, errors.Errorf("class %s already defined", def.Class.Descriptor)
	}
	return l.defineClassLocked(def)
}

func (l *Linker) defineClassLocked(def *Definition) (*mirror.Class, error) {
	cd := def.Class
	c := &mirror.Class{
		Descriptor:  cd.Descriptor,
		AccessFlags: cd.Flags,
		Dex:         def.File,
		SourceFile:  cd.SourceFile,
	}
	if def.Loader != nil && def.Loader != Loader(l.boot) {
		c.Loader = def.Loader
	}
	c.SetStatus(mirror.StatusLoaded)

	superName := cd.Super
	if superName == "" && c.IsInterface() {
		superName = objectClass
	}
	if superName != "" {
		super, err := l.findClassLocked(superName)
		if err != nil {
			return nil, err
		}
		if super.IsInterface() || super.IsFinal() {
			return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
				"%s cannot inherit from %s", c.Name(), super.Name())
		}
		c.Super = super
		c.NumInstanceSlots = super.NumInstanceSlots
		c.Finalizable = super.Finalizable
	} else if cd.Descriptor != objectClass {
		return nil, errors.Errorf("class %s has no superclass", cd.Descriptor)
	}
	for _, name := range cd.Interfaces {
		iface, err := l.findClassLocked(name)
		if err != nil {
			return nil, err
		}
		if !iface.IsInterface() {
			return nil, mirror.NewJavaException(mirror.IncompatibleClassChangeError,
				"%s implements non-interface %s", c.Name(), iface.Name())
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	if err := l.layoutFields(c, cd); err != nil {
		return nil, err
	}
	if err := l.linkMethods(c, cd); err != nil {
		return nil, err
	}
	c.SetStatus(mirror.StatusResolved)
	l.register(c)
	log.Debugf("defined %s (%d slots, vtable %d)", c.Name(), c.NumInstanceSlots, len(c.VTable))
	return c, nil
}

func (l *Linker) layoutFields(c *mirror.Class, cd *image.ClassDef) error {
	for _, fd := range cd.Fields {
		f := &mirror.Field{Declaring: c, Name: fd.Name, Type: fd.Type, AccessFlags: fd.Flags}
		if fd.Flags&dex.AccStatic != 0 {
			f.Offset = len(c.StaticFields)
			c.StaticFields = append(c.StaticFields, f)
			continue
		}
		f.Offset = c.NumInstanceSlots
		c.NumInstanceSlots++
		c.InstanceFields = append(c.InstanceFields, f)
	}
	c.Statics = make([]mirror.Slot, len(c.StaticFields))
	for i, fd := range staticDefs(cd) {
		switch {
		case fd.StringValue != nil:
			s, err := l.internLocked(*fd.StringValue)
			if err != nil {
				return err
			}
			c.Statics[i].Ref = s
		default:
			c.Statics[i].Prim = fd.Value
		}
	}
	return nil
}

func staticDefs(cd *image.ClassDef) []image.FieldDef {
	var out []image.FieldDef
	for _, fd := range cd.Fields {
		if fd.Flags&dex.AccStatic != 0 {
			out = append(out, fd)
		}
	}
	return out
}

func (l *Linker) linkMethods(c *mirror.Class, cd *image.ClassDef) error {
	for i := range cd.Methods {
		md := &cd.Methods[i]
		code, err := md.CodeItem()
		if err != nil {
			return errors.Wrap(err, cd.Descriptor)
		}
		flags := md.Flags
		if c.IsInterface() && code == nil && flags&(dex.AccStatic|dex.AccNative) == 0 {
			flags |= dex.AccAbstract
		}
		m := mirror.NewMethod(c, md.Name, md.Descriptor, flags, code)
		if m.IsDirect() {
			c.DirectMethods = append(c.DirectMethods, m)
			continue
		}
		c.VirtualMethods = append(c.VirtualMethods, m)
		if m.Name == "finalize" && m.Descriptor == "()V" && !c.IsObjectClass() {
			c.Finalizable = true
		}
	}
	if c.IsInterface() {
		for i, m := range c.VirtualMethods {
			m.VTableIndex = i
		}
		return nil
	}

	if c.Super != nil {
		c.VTable = append([]*mirror.Method(nil), c.Super.VTable...)
	}
	for _, m := range c.VirtualMethods {
		m.VTableIndex = -1
		for i, s := range c.VTable {
			if s.Name == m.Name && s.Descriptor == m.Descriptor && c.CanAccessMember(s.Declaring, s.AccessFlags) {
				if s.IsFinal() {
					return mirror.NewJavaException(mirror.IncompatibleClassChangeError,
						"%s overrides final method %s", c.Name(), s.PrettyMethod())
				}
				c.VTable[i] = m
				m.VTableIndex = i
				break
			}
		}
		if m.VTableIndex < 0 {
			m.VTableIndex = len(c.VTable)
			c.VTable = append(c.VTable, m)
		}
	}
	// Interface methods without an implementation get a vtable slot so
	// interface dispatch finds them (abstract or default).
	for k := c; k != nil; k = k.Super {
		for _, iface := range k.Interfaces {
			l.addInterfaceMethods(c, iface)
		}
	}
	return nil
}

func (l *Linker) addInterfaceMethods(c *mirror.Class, iface *mirror.Class) {
	for _, im := range iface.VirtualMethods {
		if c.FindVirtualMethodForInterface(im) == nil {
			c.VTable = append(c.VTable, im)
		}
	}
	for _, super := range iface.Interfaces {
		l.addInterfaceMethods(c, super)
	}
}

// ClassMirror returns the java.lang.Class instance representing c.
func (l *Linker) ClassMirror(c *mirror.Class) (*mirror.Object, error) {
	if m := c.Mirror(); m != nil {
		return m, nil
	}
	classClass, err := l.FindClass(classClass)
	if err != nil {
		return nil, err
	}
	o, err := l.heap.AllocClassMirror(classClass, c)
	if err != nil {
		return nil, err
	}
	return c.SetMirror(o), nil
}

// NewString allocates a java.lang.String.
func (l *Linker) NewString(s string) (*mirror.Object, error) {
	c, err := l.FindClass(stringClass)
	if err != nil {
		return nil, err
	}
	return l.heap.AllocGoString(c, s)
}

// NewStringFromChars allocates a java.lang.String from UTF-16 units.
func (l *Linker) NewStringFromChars(chars []uint16) (*mirror.Object, error) {
	c, err := l.FindClass(stringClass)
	if err != nil {
		return nil, err
	}
	return l.heap.AllocString(c, chars)
}

// InternString returns the canonical instance of s.
func (l *Linker) InternString(s string) (*mirror.Object, error) {
	l.mu.RLock()
	o, ok := l.interned[s]
	l.mu.RUnlock()
	if ok {
		return o, nil
	}
	l.defineMu.Lock()
	defer l.defineMu.Unlock()
	return l.internLocked(s)
}

// Intern returns the canonical instance equal to str.
func (l *Linker) Intern(str *mirror.Object) (*mirror.Object, error) {
	return l.InternString(str.GoString())
}

func (l *Linker) internLocked(s string) (*mirror.Object, error) {
	l.mu.RLock()
	o, ok := l.interned[s]
	l.mu.RUnlock()
	if ok {
		return o, nil
	}
	c, err := l.findClassLocked(stringClass)
	if err != nil {
		return nil, err
	}
	o, err = l.heap.AllocGoString(c, s)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.interned[s] = o
	l.mu.Unlock()
	return o, nil
}
