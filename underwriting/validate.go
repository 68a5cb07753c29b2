package underwriting

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so messages match what callers sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		default:
			return true
		}
	})
	if err != nil {
		panic(fmt.Sprintf("registering finite validation: %v", err))
	}

	return v
}

// validateStruct runs the struct tags of s and folds the first failure into ErrInvalidInput.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := verrs[0]
	if fe.Param() == "" {
		return fmt.Errorf("%w: %s must be %s (got %v)", ErrInvalidInput, fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%w: %s must satisfy %s=%s (got %v)", ErrInvalidInput, fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}
