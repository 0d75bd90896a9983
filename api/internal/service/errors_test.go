package service

import (
	"errors"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestInputErrorMessages(t *testing.T) {
	for _, err := range []error{ErrNoImage, ErrEmptyImage, ErrUnsupportedFormat, ErrImageTooLarge, ErrBadEncoding, ErrUnknownMode, ErrUnknownLLM} {
		r, _ := utf8.DecodeRuneInString(err.Error())
		assert.False(t, unicode.IsUpper(r), err.Error())
	}

	err := inputErr(ErrNoImage, "")
	assert.Equal(t, "no image data provided", err.Error())
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.Equal(t, "unsupported image format: webp", inputErr(ErrUnsupportedFormat, "webp").Error())
}
