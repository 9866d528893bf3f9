package recognizer

import "fmt"

// ServiceError is returned when the prediction endpoint answers with a
// non-2xx status. Cause is a fixed human readable explanation of the status.
type ServiceError struct {
	StatusCode int
	Cause      string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return "recognizer: " + e.Cause
	}
	return fmt.Sprintf("recognizer: %s: %v", e.Cause, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) HTTPStatusCode() int {
	return e.StatusCode
}

func newServiceError(status int, err error) *ServiceError {
	return &ServiceError{StatusCode: status, Cause: statusCause(status), Err: err}
}

func statusCause(status int) string {
	switch status {
	case 400:
		return "Response 400: The request's body or parameters are incorrect, meaning they are missing, malformed, or too large."
	case 401:
		return "Response 401: The key used is invalid, malformed, empty, or doesn't match the region."
	case 403:
		return "Response 403: Total monthly key quota limit exceeded."
	case 409:
		return "Response 409: Application loading in progress, please try again."
	case 410:
		return "Response 410: Please retrain and republish your application."
	case 414:
		return "Response 414: The query is too long. Please reduce the query length to 500 or less characters."
	case 429:
		return "Response 429: Too many requests."
	default:
		return fmt.Sprintf("Response %d: Unexpected status code received. Please verify that your LUIS application is properly setup.", status)
	}
}
