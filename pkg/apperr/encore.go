package apperr

import "encore.dev/beta/errs"

// encoreCode maps this taxonomy onto Encore's errs.ErrCode so every
// //encore:api handler that returns a taxonomy error gets the right HTTP
// status without hand-rolling the mapping at each call site.
var encoreCode = map[Code]errs.ErrCode{
	CodeQuotaExceeded:       errs.ResourceExhausted,
	CodeModelUnavailable:    errs.Unavailable,
	CodeModelMalformed:      errs.Unavailable,
	CodeUpstreamUnavailable: errs.Unavailable,
	CodePersistenceFailed:   errs.Internal,
	CodeCacheDegraded:       errs.Internal,
	CodeDeadlineExceeded:    errs.DeadlineExceeded,
	CodeValidationFailed:    errs.InvalidArgument,
}

// AsEncoreError converts err into an *errs.Error if it wraps a taxonomy
// *Error, so Encore's HTTP layer reports the right status code and the
// JSON body carries the taxonomy Code/Message. Errors that don't wrap the
// taxonomy pass through unchanged.
func AsEncoreError(err error) error {
	if err == nil {
		return nil
	}
	ae, ok := As(err)
	if !ok {
		return err
	}
	code, ok := encoreCode[ae.Code]
	if !ok {
		code = errs.Internal
	}
	return &errs.Error{Code: code, Message: ae.Message}
}
