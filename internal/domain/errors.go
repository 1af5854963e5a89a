package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// Sentinel errors
var (
	// ErrNotFound indicates a remote or reference does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidURL indicates a URL no transport understands
	ErrInvalidURL = errors.New("invalid URL")

	// ErrInvalidRefspec indicates a malformed refspec
	ErrInvalidRefspec = errors.New("invalid refspec")

	// ErrInvalidName indicates a remote name that cannot be used in refs or config
	ErrInvalidName = errors.New("invalid remote name")

	// ErrDuplicateName indicates a remote with the same name already exists
	ErrDuplicateName = errors.New("remote already exists")

	// ErrNotPersistable indicates save or rename on an ephemeral remote
	ErrNotPersistable = errors.New("remote is not persistable")

	// ErrCredentialTypeRejected indicates a credential outside the allowed set
	ErrCredentialTypeRejected = errors.New("credential type not allowed")

	// ErrCredentialNegotiationAborted indicates the credential strategy failed
	ErrCredentialNegotiationAborted = errors.New("credential negotiation aborted")

	// ErrTransport indicates a connect, list or transfer failure
	ErrTransport = errors.New("transport error")

	// ErrCallbackAborted indicates a caller-supplied progress or tip sink failed
	ErrCallbackAborted = errors.New("callback aborted")

	// ErrNonFastForward indicates an update that would discard local history
	ErrNonFastForward = errors.New("non-fast-forward update")

	// ErrStaleReference indicates the local ref moved since the update was computed
	ErrStaleReference = errors.New("reference changed concurrently")
)

// TransportError wraps a failure of one transport operation
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// NewTransportError creates a new TransportError
func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{
		Op:  op,
		URL: url,
		Err: err,
	}
}

// CallbackError wraps the failure of a caller-supplied callback
type CallbackError struct {
	Callback string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s callback failed: %v", e.Callback, e.Err)
}

func (e *CallbackError) Unwrap() []error {
	return []error{ErrCallbackAborted, e.Err}
}

// NewCallbackError creates a new CallbackError
func NewCallbackError(callback string, err error) *CallbackError {
	return &CallbackError{
		Callback: callback,
		Err:      err,
	}
}

// RefUpdateError is the failure to apply one tip update
type RefUpdateError struct {
	RefName plumbing.ReferenceName
	Err     error
}

func (e *RefUpdateError) Error() string {
	return fmt.Sprintf("update %s: %v", e.RefName, e.Err)
}

func (e *RefUpdateError) Unwrap() error {
	return e.Err
}

// PartialReconciliationError lists the refs a fetch could not update.
// It is reported alongside a successful fetch, never returned as its error.
type PartialReconciliationError struct {
	Failures []*RefUpdateError
}

func (e *PartialReconciliationError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.RefName.String())
	}
	return fmt.Sprintf("%d reference(s) not updated: %s", len(e.Failures), strings.Join(names, ", "))
}

func (e *PartialReconciliationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// RefNames returns the names of the refs that failed
func (e *PartialReconciliationError) RefNames() []plumbing.ReferenceName {
	names := make([]plumbing.ReferenceName, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.RefName)
	}
	return names
}

// IsValidation reports whether err is raised before any network I/O
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidRefspec) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrDuplicateName)
}
