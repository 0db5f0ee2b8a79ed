package mailbox

import "fmt"

// Stable machine-readable classifications for backend failures. These
// surface as the error_code of a failed Result and are logged by the
// dispatch engine.
const (
	// CodeBackendError covers client initialization and other general
	// backend faults.
	CodeBackendError = "BACKEND_ERROR"

	// CodeGmailAPIError covers declared Gmail API failures.
	CodeGmailAPIError = "GMAIL_API_ERROR"

	// CodeInvalidParameter covers malformed or missing parameters
	// detected before or by the backend.
	CodeInvalidParameter = "INVALID_PARAMETER"

	// CodeRuleStorageError covers failures of the rule store.
	CodeRuleStorageError = "RULE_STORAGE_ERROR"

	// CodeRuleNotFound is returned when a rule identifier matches no
	// stored rule.
	CodeRuleNotFound = "RULE_NOT_FOUND"

	// CodeInvalidRuleDefinition covers shape violations of a submitted
	// rule definition, distinct from storage failures.
	CodeInvalidRuleDefinition = "INVALID_RULE_DEFINITION"

	// CodeOperationFailed is returned when the backend reports a falsy
	// success signal without raising an error. Backends are not trusted
	// to fail loudly on all failure paths.
	CodeOperationFailed = "BACKEND_OPERATION_FAILED"

	// CodeUnexpected is the fallback classification for anything the
	// gateway did not anticipate.
	CodeUnexpected = "UNEXPECTED_ADAPTER_ERROR"
)

// BackendError is a declared domain error from the mailbox or rule
// backend, carrying a stable code alongside the human-readable message.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// NewBackendError builds a BackendError with the given classification.
func NewBackendError(code, format string, args ...any) *BackendError {
	return &BackendError{Code: code, Message: fmt.Sprintf(format, args...)}
}
