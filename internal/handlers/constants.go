package handlers

const (
	CSRFHeaderName = "X-CSRF-Token"
	CSRFFormField  = "csrf_token"

	ErrInvalidFormData     = "Invalid form data"
	ErrInternalServerError = "Internal server error"
	ErrGameNotFound        = "Game not found"
	ErrGameLocked          = "Please complete prerequisite games first"
	ErrCouldNotVerify      = "Could not verify achievement"
	ErrTooManyRequests     = "Too many requests"
	ErrForbidden           = "Forbidden"
)
