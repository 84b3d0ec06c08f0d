package mirror

// InvokeType is the dispatch kind of a call site.
type InvokeType int

const (
	InvokeStatic InvokeType = iota
	InvokeDirect
	InvokeVirtual
	InvokeSuper
	InvokeInterface
)

func (t InvokeType) String() string {
	switch t {
	case InvokeStatic:
		return "static"
	case InvokeDirect:
		return "direct"
	case InvokeVirtual:
		return "virtual"
	case InvokeSuper:
		return "super"
	case InvokeInterface:
		return "interface"
	}
	return "unknown"
}
