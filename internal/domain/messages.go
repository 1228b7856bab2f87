package domain

import (
	"context"
	"errors"
)

// ErrorKind is the user-facing category of an error
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindUpload
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not-found"
	case KindUpload:
		return "upload"
	default:
		return "transport"
	}
}

// Classify maps err onto the error taxonomy. Anything unknown is transport.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotAuthenticated):
		return KindAuthorization
	case errors.Is(err, ErrTitleNotFound):
		return KindNotFound
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrHandleUnusable):
		return KindUpload
	default:
		return KindTransport
	}
}

// UserMessage returns the text shown to a user for err
func UserMessage(err error) string {
	var verr *ValidationError
	var aerr *AuthorizationError

	switch Classify(err) {
	case KindNone:
		return ""
	case KindValidation:
		if errors.As(err, &verr) {
			return verr.Error()
		}
		return "Please check the form: " + err.Error()
	case KindAuthorization:
		if errors.As(err, &aerr) && aerr.Local || errors.Is(err, ErrNotAuthenticated) {
			return "You need to log in to do this."
		}
		return "You don't have permission to do this. Only administrators can manage titles."
	case KindNotFound:
		return "This title no longer exists."
	case KindUpload:
		return "The upload did not complete. Select the file again and retry."
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return "The catalog took too long to answer. Please retry."
		}
		return "Something went wrong talking to the catalog. Please retry."
	}
}
