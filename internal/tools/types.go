package tools

// Status reports the outcome of a tool invocation.
type Status string

const (
	// StatusSuccess indicates the tool completed its operation.
	StatusSuccess Status = "success"
	// StatusError indicates the tool could not complete. The Error field
	// carries the structured failure for the model to act on.
	StatusError Status = "error"
)

// Error codes returned to the model. Validation errors are correctable by
// the model; execution errors are not.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeExecution  = "execution_error"
)

// Error is a structured tool failure for model consumption.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform return shape of every tool handler. Handlers
// return tool-level failures inside Result rather than as Go errors, so
// the model sees a correctable message instead of an aborted call.
type Result struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}
