package notes

import "errors"

var (
	// ErrBackendUnavailable means a backend cannot serve at all right now
	// (store file missing or locked, host binary absent).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSchemaMismatch means the local store exists but its layout is not
	// one of the recognized generations.
	ErrSchemaMismatch = errors.New("unrecognized note store schema")

	// ErrInconsistentData means the store contradicts itself, e.g. a folder
	// parent cycle or a dangling parent reference.
	ErrInconsistentData = errors.New("inconsistent note store data")

	// ErrAutomationFailure is any scripting-host failure that is not a
	// consent rejection.
	ErrAutomationFailure = errors.New("automation host failure")

	// ErrPermissionDenied means the user or OS refused automation consent.
	ErrPermissionDenied = errors.New("automation permission denied")

	// ErrUnsupportedOperation means the selected backend can never perform
	// the requested operation, regardless of system state.
	ErrUnsupportedOperation = errors.New("operation not supported by this backend")

	// ErrExtractionDegraded marks note content that was recovered
	// imperfectly, or not at all, from a structured body blob.
	ErrExtractionDegraded = errors.New("note content recovered imperfectly")

	ErrNotFound        = errors.New("not found")
	ErrAmbiguousFolder = errors.New("folder path matches more than one folder")
)

// Recoverable reports whether err may be resolved by falling back to
// another backend. Permission and data errors are not recoverable: retrying
// elsewhere would either re-prompt the user or hide corruption.
func Recoverable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrInconsistentData)
}
