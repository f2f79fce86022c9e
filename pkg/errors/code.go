package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 17000-17999: Dataset resolution errors
// 18000-18999: Analytical engine errors
// 19000-19999: Interpreter runtime errors
// 20000-20999: Practice session errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Storage errors (10250-10299)
	StorageError ErrorCode = 10250

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Dataset Resolution Errors (17000-17999) ==========

	DatasetNotFound     ErrorCode = 17000
	DatasetFetchFailed  ErrorCode = 17001
	DatasetDecodeFailed ErrorCode = 17002
	VariantNotFound     ErrorCode = 17100
	PreviewUnavailable  ErrorCode = 17101
	ExportFailed        ErrorCode = 17200

	// ========== Analytical Engine Errors (18000-18999) ==========

	EngineOpenFailed      ErrorCode = 18000
	EngineNotReady        ErrorCode = 18001
	EngineStatementFailed ErrorCode = 18002
	EngineLoadFailed      ErrorCode = 18003

	// ========== Interpreter Runtime Errors (19000-19999) ==========

	InterpreterNotReady  ErrorCode = 19000
	InterpreterBindError ErrorCode = 19001
	InterpreterRunError  ErrorCode = 19002

	// ========== Practice Session Errors (20000-20999) ==========

	SessionNotFound      ErrorCode = 20000
	SessionLimitReached  ErrorCode = 20001
	QuestionNotSelected  ErrorCode = 20002
	QuestionStale        ErrorCode = 20003
	LanguageNotSupported ErrorCode = 20004
	CodeTooLarge         ErrorCode = 20005
	PayloadTooLarge      ErrorCode = 20006
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	StorageError: "Object storage operation failed",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Dataset
	DatasetNotFound:     "Dataset not found",
	DatasetFetchFailed:  "Failed to fetch dataset",
	DatasetDecodeFailed: "Failed to decode dataset payload",
	VariantNotFound:     "Dataset variant not found",
	PreviewUnavailable:  "No preview available",
	ExportFailed:        "Failed to export preview",

	// Engine
	EngineOpenFailed:      "Failed to open analytical engine",
	EngineNotReady:        "Engine session is not ready",
	EngineStatementFailed: "Statement execution failed",
	EngineLoadFailed:      "Failed to load dataset into engine",

	// Interpreter
	InterpreterNotReady:  "Interpreter is not ready",
	InterpreterBindError: "Failed to bind dataset into interpreter",
	InterpreterRunError:  "Script execution failed",

	// Session
	SessionNotFound:      "Practice session not found",
	SessionLimitReached:  "Too many active practice sessions",
	QuestionNotSelected:  "No question selected",
	QuestionStale:        "Question is no longer active",
	LanguageNotSupported: "Language not supported",
	CodeTooLarge:         "Code is too large",
	PayloadTooLarge:      "Question payload is too large",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RecordNotFound, c == DatasetNotFound, c == VariantNotFound, c == SessionNotFound:
		return 404
	case c == EngineNotReady, c == InterpreterNotReady, c == QuestionNotSelected, c == QuestionStale:
		return 409
	case c == CodeTooLarge, c == PayloadTooLarge:
		return 413
	case c == TooManyRequests, c == SessionLimitReached:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
