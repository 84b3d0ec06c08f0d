package linker

import (
	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/mirror"
)

const (
	objectClass    = "Ljava/lang/Object;"
	classClass     = "Ljava/lang/Class;"
	stringClass    = "Ljava/lang/String;"
	throwableClass = "Ljava/lang/Throwable;"
	errorClass     = "Ljava/lang/Error;"
)

const (
	pub     = dex.AccPublic
	pubFin  = dex.AccPublic | dex.AccFinal
	pubAbs  = dex.AccPublic | dex.AccAbstract
	pubIntf = dex.AccPublic | dex.AccInterface | dex.AccAbstract
	nat     = dex.AccPublic | dex.AccNative
	statNat = dex.AccPublic | dex.AccStatic | dex.AccNative
	ctor    = dex.AccPublic | dex.AccConstructor
)

// throwableHierarchy lists boot exception classes as (class, super) pairs,
// supers first.
var throwableHierarchy = [][2]string{
	{"Ljava/lang/Exception;", throwableClass},
	{errorClass, throwableClass},
	{"Ljava/lang/ReflectiveOperationException;", "Ljava/lang/Exception;"},
	{mirror.ClassNotFoundException, "Ljava/lang/ReflectiveOperationException;"},
	{mirror.InstantiationException, "Ljava/lang/ReflectiveOperationException;"},
	{mirror.RuntimeException, "Ljava/lang/Exception;"},
	{mirror.ArithmeticException, mirror.RuntimeException},
	{"Ljava/lang/IndexOutOfBoundsException;", mirror.RuntimeException},
	{mirror.ArrayIndexOutOfBoundsException, "Ljava/lang/IndexOutOfBoundsException;"},
	{mirror.StringIndexOutOfBoundsException, "Ljava/lang/IndexOutOfBoundsException;"},
	{mirror.ArrayStoreException, mirror.RuntimeException},
	{mirror.ClassCastException, mirror.RuntimeException},
	{mirror.IllegalArgumentException, mirror.RuntimeException},
	{mirror.NumberFormatException, mirror.IllegalArgumentException},
	{mirror.IllegalMonitorStateException, mirror.RuntimeException},
	{mirror.NegativeArraySizeException, mirror.RuntimeException},
	{mirror.NullPointerException, mirror.RuntimeException},
	{"Ljava/lang/LinkageError;", errorClass},
	{mirror.ExceptionInInitializerError, "Ljava/lang/LinkageError;"},
	{mirror.NoClassDefFoundError, "Ljava/lang/LinkageError;"},
	{mirror.UnsatisfiedLinkError, "Ljava/lang/LinkageError;"},
	{mirror.IncompatibleClassChangeError, "Ljava/lang/LinkageError;"},
	{mirror.AbstractMethodError, mirror.IncompatibleClassChangeError},
	{mirror.IllegalAccessError, mirror.IncompatibleClassChangeError},
	{mirror.InstantiationError, mirror.IncompatibleClassChangeError},
	{mirror.NoSuchFieldError, mirror.IncompatibleClassChangeError},
	{mirror.NoSuchMethodError, mirror.IncompatibleClassChangeError},
	{mirror.VirtualMachineError, errorClass},
	{mirror.InternalError, mirror.VirtualMachineError},
	{mirror.OutOfMemoryError, mirror.VirtualMachineError},
	{mirror.StackOverflowError, mirror.VirtualMachineError},
	{mirror.TransactionAbortError, errorClass},
}

type bootBuilder struct {
	pool    *dex.Pool
	classes []image.ClassDef
}

func must(u []uint16, err error) []uint16 {
	if err != nil {
		panic(err)
	}
	return u
}

func (b *bootBuilder) code(regs, ins uint16, insns ...[]uint16) []byte {
	c := &dex.CodeItem{RegistersSize: regs, InsSize: ins}
	for _, in := range insns {
		c.Insns = append(c.Insns, in...)
		if in[0]&0xff >= uint16(dex.OpInvokeVirtual) && in[0]&0xff <= uint16(dex.OpInvokeInterface) {
			c.OutsSize = max(c.OutsSize, in[0]>>12)
		}
	}
	data, err := c.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return data
}

func (b *bootBuilder) invokeDirect(class, name, desc string, regs ...int) []uint16 {
	idx := b.pool.MethodIndex(dex.MethodID{Class: class, Name: name, Descriptor: desc})
	return must(dex.Encode35c(dex.OpInvokeDirect, int(idx), regs))
}

func (b *bootBuilder) field(op dex.Opcode, a, obj int, class, name, typ string) []uint16 {
	idx := b.pool.FieldIndex(dex.FieldID{Class: class, Name: name, Type: typ})
	return must(dex.Encode(op, a, obj, int(idx)))
}

func op(o dex.Opcode, a int) []uint16 { return must(dex.Encode(o, a, 0, 0)) }

func (b *bootBuilder) add(c image.ClassDef) {
	b.classes = append(b.classes, c)
}

func natives(flags uint32, sigs ...string) []image.MethodDef {
	var out []image.MethodDef
	for i := 0; i < len(sigs); i += 2 {
		out = append(out, image.MethodDef{Name: sigs[i], Descriptor: sigs[i+1], Flags: flags})
	}
	return out
}

// bootImage assembles the core library classes the interpreter and the
// unstarted-runtime intercepts depend on.
func bootImage() *image.Image {
	b := &bootBuilder{pool: dex.NewPool("boot")}
	returnVoid := op(dex.OpReturnVoid, 0)

	object := image.ClassDef{Descriptor: objectClass, Flags: pub, Methods: []image.MethodDef{
		{Name: "<init>", Descriptor: "()V", Flags: ctor, Code: b.code(1, 1, returnVoid)},
	}}
	object.Methods = append(object.Methods, natives(nat, "hashCode", "()I", "getClass", "()Ljava/lang/Class;")...)
	object.Methods = append(object.Methods, natives(dex.AccPrivate|dex.AccNative, "internalClone", "()Ljava/lang/Object;")...)
	b.add(object)

	for _, iface := range []string{"Ljava/io/Serializable;", "Ljava/lang/Cloneable;", "Ljava/lang/Comparable;", "Ljava/lang/CharSequence;", "Ljava/lang/Runnable;"} {
		b.add(image.ClassDef{Descriptor: iface, Flags: pubIntf})
	}

	class := image.ClassDef{Descriptor: classClass, Super: objectClass, Flags: pubFin, Interfaces: []string{"Ljava/io/Serializable;"}}
	class.Methods = append(class.Methods, natives(statNat,
		"forName", "(Ljava/lang/String;)Ljava/lang/Class;",
		"forName", "(Ljava/lang/String;ZLjava/lang/ClassLoader;)Ljava/lang/Class;")...)
	class.Methods = append(class.Methods, natives(nat,
		"newInstance", "()Ljava/lang/Object;",
		"getName", "()Ljava/lang/String;")...)
	b.add(class)

	str := image.ClassDef{Descriptor: stringClass, Super: objectClass, Flags: pubFin,
		Interfaces: []string{"Ljava/io/Serializable;", "Ljava/lang/Comparable;", "Ljava/lang/CharSequence;"}}
	str.Methods = natives(nat,
		"length", "()I",
		"charAt", "(I)C",
		"toCharArray", "()[C",
		"fastSubstring", "(II)Ljava/lang/String;",
		"intern", "()Ljava/lang/String;",
		"compareTo", "(Ljava/lang/String;)I",
		"fastIndexOf", "(II)I")
	b.add(str)

	b.add(image.ClassDef{Descriptor: "Ljava/lang/ClassLoader;", Super: objectClass, Flags: pubAbs})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/Thread;", Super: objectClass, Flags: pub,
		Interfaces: []string{"Ljava/lang/Runnable;"},
		Methods:    natives(statNat, "currentThread", "()Ljava/lang/Thread;")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/System;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat,
			"arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V",
			"arraycopy", "([CI[CII)V",
			"arraycopy", "([II[III)V",
			"identityHashCode", "(Ljava/lang/Object;)I")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/Math;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat,
			"ceil", "(D)D", "floor", "(D)D", "sqrt", "(D)D",
			"sin", "(D)D", "cos", "(D)D", "exp", "(D)D", "log", "(D)D",
			"pow", "(DD)D", "atan2", "(DD)D")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/Float;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat, "floatToRawIntBits", "(F)I", "intBitsToFloat", "(I)F")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/Double;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat, "doubleToRawLongBits", "(D)J", "longBitsToDouble", "(J)D")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/Integer;", Super: objectClass, Flags: pubFin,
		Interfaces: []string{"Ljava/lang/Comparable;"},
		Methods: natives(statNat,
			"parseInt", "(Ljava/lang/String;)I",
			"toString", "(I)Ljava/lang/String;")})
	b.add(image.ClassDef{Descriptor: "Lgodex/io/Console;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat,
			"print", "(Ljava/lang/String;)V",
			"println", "()V",
			"println", "(Ljava/lang/String;)V",
			"println", "(I)V",
			"println", "(J)V")})
	b.add(image.ClassDef{Descriptor: "Ljava/lang/reflect/Array;", Super: objectClass, Flags: pubFin,
		Methods: natives(statNat, "createObjectArray", "(Ljava/lang/Class;I)Ljava/lang/Object;")})
	unsafe := image.ClassDef{Descriptor: "Lsun/misc/Unsafe;", Super: objectClass, Flags: pubFin}
	unsafe.Methods = append(natives(nat,
		"compareAndSwapInt", "(Ljava/lang/Object;JII)Z",
		"compareAndSwapLong", "(Ljava/lang/Object;JJJ)Z",
		"compareAndSwapObject", "(Ljava/lang/Object;JLjava/lang/Object;Ljava/lang/Object;)Z"),
		natives(statNat,
			"getArrayBaseOffsetForComponentType", "(Ljava/lang/Class;)I",
			"getArrayIndexScaleForComponentType", "(Ljava/lang/Class;)I")...)
	b.add(unsafe)

	b.add(b.throwable())
	for _, pair := range throwableHierarchy {
		b.add(b.exception(pair[0], pair[1]))
	}

	img := &image.Image{Version: image.Version, Location: "boot", Classes: b.classes}
	img.SetPools(b.pool.File())
	return img
}

func (b *bootBuilder) throwable() image.ClassDef {
	const (
		msg   = "detailMessage"
		cause = "cause"
	)
	returnVoid := op(dex.OpReturnVoid, 0)
	return image.ClassDef{
		Descriptor: throwableClass,
		Super:      objectClass,
		Flags:      pub,
		Interfaces: []string{"Ljava/io/Serializable;"},
		Fields: []image.FieldDef{
			{Name: msg, Type: stringClass, Flags: dex.AccPrivate},
			{Name: cause, Type: throwableClass, Flags: dex.AccPrivate},
		},
		Methods: []image.MethodDef{
			{Name: "<init>", Descriptor: "()V", Flags: ctor, Code: b.code(1, 1,
				b.invokeDirect(objectClass, "<init>", "()V", 0),
				returnVoid)},
			{Name: "<init>", Descriptor: "(Ljava/lang/String;)V", Flags: ctor, Code: b.code(2, 2,
				b.invokeDirect(objectClass, "<init>", "()V", 0),
				b.field(dex.OpIputObject, 1, 0, throwableClass, msg, stringClass),
				returnVoid)},
			{Name: "<init>", Descriptor: "(Ljava/lang/String;Ljava/lang/Throwable;)V", Flags: ctor, Code: b.code(3, 3,
				b.invokeDirect(throwableClass, "<init>", "(Ljava/lang/String;)V", 0, 1),
				b.field(dex.OpIputObject, 2, 0, throwableClass, cause, throwableClass),
				returnVoid)},
			{Name: "getMessage", Descriptor: "()Ljava/lang/String;", Flags: pub, Code: b.code(2, 1,
				b.field(dex.OpIgetObject, 0, 1, throwableClass, msg, stringClass),
				op(dex.OpReturnObject, 0))},
			{Name: "getCause", Descriptor: "()Ljava/lang/Throwable;", Flags: pub, Code: b.code(2, 1,
				b.field(dex.OpIgetObject, 0, 1, throwableClass, cause, throwableClass),
				op(dex.OpReturnObject, 0))},
		},
	}
}

func (b *bootBuilder) exception(class, super string) image.ClassDef {
	returnVoid := op(dex.OpReturnVoid, 0)
	return image.ClassDef{
		Descriptor: class,
		Super:      super,
		Flags:      pub,
		Methods: []image.MethodDef{
			{Name: "<init>", Descriptor: "()V", Flags: ctor, Code: b.code(1, 1,
				b.invokeDirect(super, "<init>", "()V", 0),
				returnVoid)},
			{Name: "<init>", Descriptor: "(Ljava/lang/String;)V", Flags: ctor, Code: b.code(2, 2,
				b.invokeDirect(super, "<init>", "(Ljava/lang/String;)V", 0, 1),
				returnVoid)},
		},
	}
}
