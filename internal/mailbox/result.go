package mailbox

// Result is the uniform outcome of every gateway method. It is never
// exposed on the wire; the dispatch engine maps it into the response
// envelope. Data may be populated on failure too, shaped like the
// success payload, so callers can use the same field paths regardless
// of outcome.
type Result struct {
	Success      bool
	Data         any
	ErrorMessage string
	ErrorCode    string
}

// OK builds a success result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failure result with a stable classification.
func Fail(code, message string) Result {
	return Result{Success: false, ErrorMessage: message, ErrorCode: code}
}

// FailWithData builds a failure result that still carries a
// success-shaped payload.
func FailWithData(code, message string, data any) Result {
	return Result{Success: false, ErrorMessage: message, ErrorCode: code, Data: data}
}
