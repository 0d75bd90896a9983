package service

import "errors"

var (
	ErrNoImage           = errors.New("no image data provided")
	ErrEmptyImage        = errors.New("empty image file")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image is too large")
	ErrBadEncoding       = errors.New("image is not valid base64")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrUnknownLLM        = errors.New("llm engine unavailable")
)

// InputError rejects a request before any extraction starts.
type InputError struct {
	Err    error
	Detail string
}

func (e *InputError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *InputError) Unwrap() error { return e.Err }

func inputErr(err error, detail string) error {
	return &InputError{Err: err, Detail: detail}
}
