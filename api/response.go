package api

const (
	CodeValidation   = "ERR_VALIDATION"
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeConflict     = "ERR_CONFLICT"
	CodeUnauthorized = "ERR_UNAUTHORIZED"
	CodeRateLimited  = "ERR_RATE_LIMITED"
	CodeInternal     = "ERR_INTERNAL"
)

// Response wraps every successful payload
type Response[T any] struct {
	Data T `json:"data"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e ErrorBody) Error() string {
	return e.Code + ": " + e.Message
}

type Message struct {
	Message string `json:"message"`
}
