package studio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrUnsupportedSize = errors.New("unsupported size")
)

// DefaultSizes are the size selector presets, in pixels.
var DefaultSizes = []int{128, 256, 512, 1024}

// Request is one accepted generation attempt.
type Request struct {
	Text string `validate:"required"`
	Size int    `validate:"qrsize"`
}

type requestValidator struct {
	validate *validator.Validate
	sizes    []int
}

func newRequestValidator(sizes []int) *requestValidator {
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	allowed := make(map[int]bool, len(sizes))
	for _, s := range sizes {
		allowed[s] = true
	}

	v := validator.New()
	v.RegisterValidation("qrsize", func(fl validator.FieldLevel) bool {
		return allowed[int(fl.Field().Int())]
	})
	return &requestValidator{validate: v, sizes: sizes}
}

// build trims rawText and validates the result. Empty text wins over a
// bad size.
func (rv *requestValidator) build(rawText string, size int) (Request, error) {
	req := Request{Text: strings.TrimSpace(rawText), Size: size}
	err := rv.validate.Struct(req)
	if err == nil {
		return req, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Request{}, fmt.Errorf("validate request: %w", err)
	}
	for _, fe := range verrs {
		if fe.Field() == "Text" {
			return Request{}, ErrEmptyText
		}
	}
	return Request{}, fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
}

func (rv *requestValidator) sizeAllowed(size int) bool {
	for _, s := range rv.sizes {
		if s == size {
			return true
		}
	}
	return false
}
