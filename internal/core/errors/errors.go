package errors

const (
	HttpInternalError          = "internal_error"
	HttpInvalidJsonError       = "invalid_json"
	HttpAnalysisNotFoundError  = "analysis_not_found"
	HttpAnalysisDisabledError  = "analysis_disabled"
	HttpSourceUnavailableError = "source_unavailable"
	HttpDuplicateRecordError   = "duplicate_record"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
