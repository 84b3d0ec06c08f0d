package linker

import (
	"fmt"
	"strings"

	"github.com/daimatz/godex/pkg/mirror"
)

func (l *Linker) throwableField(name, typ string) *mirror.Field {
	c, err := l.FindClass(throwableClass)
	if err != nil {
		panic(err)
	}
	return c.FindInstanceField(name, typ)
}

// NewThrowable allocates an instance of the throwable class descriptor with
// its message and cause filled in. Constructors are not run.
func (l *Linker) NewThrowable(descriptor, msg string, cause *mirror.Object) (*mirror.Object, error) {
	c, err := l.FindClass(descriptor)
	if err != nil {
		return nil, err
	}
	o, err := l.heap.AllocObject(c, mirror.AllocatorTLAB)
	if err != nil {
		return nil, err
	}
	if msg != "" {
		s, err := l.NewString(msg)
		if err != nil {
			return nil, err
		}
		l.throwableField("detailMessage", stringClass).SetRef(o, s)
	}
	if cause != nil {
		l.throwableField("cause", throwableClass).SetRef(o, cause)
	}
	return o, nil
}

// ThrowableMessage returns the detail message of t, "" when unset.
func (l *Linker) ThrowableMessage(t *mirror.Object) string {
	s := l.throwableField("detailMessage", stringClass).GetRef(t)
	if s == nil {
		return ""
	}
	return s.GoString()
}

// ThrowableCause returns the cause of t.
func (l *Linker) ThrowableCause(t *mirror.Object) *mirror.Object {
	return l.throwableField("cause", throwableClass).GetRef(t)
}

// Describe renders t and its causes, e.g.
// "java.lang.RuntimeException: boom; caused by java.lang.Error".
func (l *Linker) Describe(t *mirror.Object) string {
	var parts []string
	for seen := 0; t != nil && seen < 16; seen++ {
		s := t.Class().Name()
		if msg := l.ThrowableMessage(t); msg != "" {
			s = fmt.Sprintf("%s: %s", s, msg)
		}
		parts = append(parts, s)
		t = l.ThrowableCause(t)
	}
	return strings.Join(parts, "; caused by ")
}
