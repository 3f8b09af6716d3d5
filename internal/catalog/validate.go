package catalog

import (
	"regexp"
	"sync"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		err := validate.RegisterValidation("achievement_id", func(fl validator.FieldLevel) bool {
			return idPattern.MatchString(fl.Field().String())
		})
		if err != nil {
			panic("catalog: register achievement_id validation: " + err.Error())
		}
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			def := sl.Current().Interface().(Definition)
			band, ok := rankPoints[def.Rank]
			if !ok {
				return
			}
			if def.Points < band.min || def.Points > band.max {
				sl.ReportError(def.Points, "Points", "points", "rankband", string(def.Rank))
			}
		}, Definition{})
	})
	return validate
}

// Validate checks def against the definition schema.
func Validate(def Definition) error {
	if err := schema().Struct(def); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err)
	}
	return nil
}
