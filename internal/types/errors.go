package types

// Error codes used in API responses
const (
	CodeAuthBadRequest     = "AUTH_400"
	CodeAuthUnauthorized   = "AUTH_401"
	CodeDocumentBadRequest = "DOC_400"
	CodeDocumentNotFound   = "DOC_404"
	CodeDocumentConflict   = "DOC_409"
	CodeDocumentTooLarge   = "DOC_413"
	CodeDocumentInternal   = "DOC_500"
	CodeQueryBadRequest    = "QUERY_400"
	CodeElementNotFound    = "QUERY_404"
	CodeElementMismatch    = "QUERY_422"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
