package fs9

import "fmt"

// Kind is the stable error taxonomy shared by every component in this
// module, the plugin ABI's numeric codes, and (were it built) a wire
// encoding.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindAlreadyExists
	KindPermissionDenied
	KindInvalidArgument
	KindNotDirectory
	KindIsDirectory
	KindDirectoryNotEmpty
	KindInvalidHandle
	KindNotImplemented
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotDirectory:
		return "NotDirectory"
	case KindIsDirectory:
		return "IsDirectory"
	case KindDirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case KindInvalidHandle:
		return "InvalidHandle"
	case KindNotImplemented:
		return "NotImplemented"
	case KindInternal:
		return "Internal"
	default:
		return "None"
	}
}

// Error is the concrete error type returned by every Provider, the
// Namespace and the Router. Op names the failing operation and Path
// the subject path (both best-effort, for logging); Err carries an
// optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, returning KindInternal for any
// error that did not originate as *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fe *Error
	if ok := asError(err, &fe); ok {
		return fe.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func newErr(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

func NotFound(op, path string) *Error              { return newErr(KindNotFound, op, path, nil) }
func AlreadyExists(op, path string) *Error         { return newErr(KindAlreadyExists, op, path, nil) }
func PermissionDenied(op, path string) *Error      { return newErr(KindPermissionDenied, op, path, nil) }
func InvalidArgument(op, path, msg string) *Error {
	return newErr(KindInvalidArgument, op, path, fmt.Errorf("%s", msg))
}
func NotDirectory(op, path string) *Error      { return newErr(KindNotDirectory, op, path, nil) }
func IsDirectory(op, path string) *Error       { return newErr(KindIsDirectory, op, path, nil) }
func DirectoryNotEmpty(op, path string) *Error { return newErr(KindDirectoryNotEmpty, op, path, nil) }
func InvalidHandle(op string, h Handle) *Error {
	return newErr(KindInvalidHandle, op, "", fmt.Errorf("handle %d", h))
}
func NotImplemented(op, path string) *Error { return newErr(KindNotImplemented, op, path, nil) }
func Internal(op, path string, cause error) *Error {
	return newErr(KindInternal, op, path, cause)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
