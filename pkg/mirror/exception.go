package mirror

import "fmt"

// JavaException is a managed exception raised by a runtime collaborator
// before a throwable object exists for it. The interpreter turns it into a
// pending exception.
type JavaException struct {
	Descriptor string
	Message    string
	// Object is the throwable when one was already created.
	Object *Object
	Cause  error
}

func (e *JavaException) Error() string {
	name := e.Descriptor
	if e.Object != nil {
		name = e.Object.Class().Descriptor
	}
	if e.Message == "" {
		return fmt.Sprintf("JavaException: %s", PrettyName(name))
	}
	return fmt.Sprintf("JavaException: %s: %s", PrettyName(name), e.Message)
}

func (e *JavaException) Unwrap() error { return e.Cause }

// NewJavaException returns an exception of the given class descriptor.
func NewJavaException(descriptor, format string, args ...any) *JavaException {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &JavaException{Descriptor: descriptor, Message: msg}
}

// PrettyName converts "Ljava/lang/Foo;" to "java.lang.Foo".
func PrettyName(descriptor string) string {
	if len(descriptor) > 2 && descriptor[0] == 'L' && descriptor[len(descriptor)-1] == ';' {
		b := []byte(descriptor[1 : len(descriptor)-1])
		for i, c := range b {
			if c == '/' {
				b[i] = '.'
			}
		}
		return string(b)
	}
	return descriptor
}

// Exception class descriptors raised by the interpreter.
const (
	ArithmeticException             = "Ljava/lang/ArithmeticException;"
	ArrayIndexOutOfBoundsException  = "Ljava/lang/ArrayIndexOutOfBoundsException;"
	ArrayStoreException             = "Ljava/lang/ArrayStoreException;"
	ClassCastException              = "Ljava/lang/ClassCastException;"
	ClassNotFoundException          = "Ljava/lang/ClassNotFoundException;"
	IllegalMonitorStateException    = "Ljava/lang/IllegalMonitorStateException;"
	IllegalArgumentException        = "Ljava/lang/IllegalArgumentException;"
	NegativeArraySizeException      = "Ljava/lang/NegativeArraySizeException;"
	NullPointerException            = "Ljava/lang/NullPointerException;"
	NumberFormatException           = "Ljava/lang/NumberFormatException;"
	StringIndexOutOfBoundsException = "Ljava/lang/StringIndexOutOfBoundsException;"
	InstantiationException          = "Ljava/lang/InstantiationException;"
	RuntimeException                = "Ljava/lang/RuntimeException;"
	AbstractMethodError             = "Ljava/lang/AbstractMethodError;"
	ExceptionInInitializerError     = "Ljava/lang/ExceptionInInitializerError;"
	IllegalAccessError              = "Ljava/lang/IllegalAccessError;"
	IncompatibleClassChangeError    = "Ljava/lang/IncompatibleClassChangeError;"
	InstantiationError              = "Ljava/lang/InstantiationError;"
	InternalError                   = "Ljava/lang/InternalError;"
	NoClassDefFoundError            = "Ljava/lang/NoClassDefFoundError;"
	NoSuchFieldError                = "Ljava/lang/NoSuchFieldError;"
	NoSuchMethodError               = "Ljava/lang/NoSuchMethodError;"
	OutOfMemoryError                = "Ljava/lang/OutOfMemoryError;"
	StackOverflowError              = "Ljava/lang/StackOverflowError;"
	UnsatisfiedLinkError            = "Ljava/lang/UnsatisfiedLinkError;"
	VirtualMachineError             = "Ljava/lang/VirtualMachineError;"
	TransactionAbortError           = "Ldalvik/system/TransactionAbortError;"
)
