package linker

import (
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/mirror"
)

// EnsureInitialized runs the static initializers of c and its superclasses
// exactly once, calling run for each <clinit>. A *mirror.JavaException
// returned by run whose Object is set carries the throwable that escaped. owner identifies the calling thread: a thread re-entering
// the initialization it is already running sees the class as usable, other
// threads wait for it to finish.
func (l *Linker) EnsureInitialized(c *mirror.Class, owner any, run func(clinit *mirror.Method) error) error {
	switch c.Status() {
	case mirror.StatusInitialized:
		return nil
	case mirror.StatusError:
		return noClassDef(c)
	case mirror.StatusInitializing:
		l.initMu.Lock()
		same := l.initOwners[c] == owner
		l.initMu.Unlock()
		if same {
			return nil
		}
	}

	ran := false
	_, err, _ := l.initGroup.Do(c.Descriptor, func() (any, error) {
		ran = true
		return nil, l.initialize(c, owner, run)
	})
	if err != nil && !ran {
		// Another thread's initializer failed; waiters see the class as
		// unusable rather than the original throwable.
		return noClassDef(c)
	}
	return err
}

func noClassDef(c *mirror.Class) error {
	return mirror.NewJavaException(mirror.NoClassDefFoundError, "Could not initialize class %s", c.Name())
}

func (l *Linker) initialize(c *mirror.Class, owner any, run func(clinit *mirror.Method) error) error {
	if c.IsInitialized() {
		return nil
	}
	if c.IsErroneous() {
		return noClassDef(c)
	}
	if c.Super != nil && !c.Super.IsInitialized() {
		if err := l.EnsureInitialized(c.Super, owner, run); err != nil {
			c.SetStatus(mirror.StatusError)
			return err
		}
	}

	l.initMu.Lock()
	l.initOwners[c] = owner
	l.initMu.Unlock()
	c.SetStatus(mirror.StatusInitializing)
	defer func() {
		l.initMu.Lock()
		delete(l.initOwners, c)
		l.initMu.Unlock()
	}()

	if clinit := c.ClassInitializer(); clinit != nil {
		log.Infof("initializing %s", c.Name())
		if err := run(clinit); err != nil {
			c.SetStatus(mirror.StatusError)
			return wrapInitError(err)
		}
	}
	c.SetStatus(mirror.StatusInitialized)
	return nil
}

// wrapInitError turns a throwable escaping <clinit> into an
// ExceptionInInitializerError unless it already is an Error.
func wrapInitError(err error) error {
	var je *mirror.JavaException
	if !errors.As(err, &je) {
		return err
	}
	if isError(je) {
		return err
	}
	return &mirror.JavaException{
		Descriptor: mirror.ExceptionInInitializerError,
		Cause:      err,
	}
}

func isError(je *mirror.JavaException) bool {
	if je.Object != nil {
		for k := je.Object.Class(); k != nil; k = k.Super {
			if k.Descriptor == errorClass {
				return true
			}
		}
		return false
	}
	for d := je.Descriptor; d != ""; d = superOf(d) {
		if d == errorClass {
			return true
		}
	}
	return false
}

func superOf(desc string) string {
	for _, pair := range throwableHierarchy {
		if pair[0] == desc {
			return pair[1]
		}
	}
	return ""
}
