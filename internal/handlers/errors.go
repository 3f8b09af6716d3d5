package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-fit-api/internal/apperr"
)

// httpError maps engine error kinds to HTTP responses. Errors that already
// carry a status pass through.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, apperr.ErrDataUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
