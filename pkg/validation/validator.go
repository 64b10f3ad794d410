package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Validation constants
	MaxTickerLength = 20

	// Tickers look like AAPL, BRK-B, BRK.B, ^GSPC, EURUSD=X, BTC-USD
	tickerPattern = regexp.MustCompile(`^[A-Za-z0-9^][A-Za-z0-9.\-_=^]*$`)
)

// StructValidator checks struct tags on configuration types.
// Create one per loader; it holds the validator's struct cache.
type StructValidator struct {
	validate *validator.Validate
}

// NewStructValidator creates a struct validator with the "ticker" tag registered.
func NewStructValidator() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return ValidateTicker(fl.Field().String()) == nil
	})
	return &StructValidator{validate: v}
}

// Struct validates a struct using its `validate` tags.
// Failures are returned as a *ConfigurationError named after configName.
func (sv *StructValidator) Struct(configName string, s any) error {
	if s == nil {
		return &ConfigurationError{Config: configName, Errors: []error{errors.New("config cannot be nil")}}
	}
	if err := sv.validate.Struct(s); err != nil {
		return formatValidationError(configName, err)
	}
	return nil
}

// ValidateTicker validates an asset identifier.
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return errors.New("ticker cannot be empty")
	}
	if len(ticker) > MaxTickerLength {
		return fmt.Errorf("ticker '%s' exceeds maximum length of %d characters", ticker, MaxTickerLength)
	}
	if !tickerPattern.MatchString(ticker) {
		return fmt.Errorf("ticker '%s' contains invalid characters", ticker)
	}
	return nil
}

// formatValidationError converts validator errors to a ConfigurationError
func formatValidationError(configName string, err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &ConfigurationError{Config: configName, Errors: []error{err}}
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", field))
		case "min", "gte":
			errs = append(errs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max", "lte":
			errs = append(errs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "gt":
			errs = append(errs, fmt.Errorf("%s: must be greater than %s", field, param))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "ticker":
			errs = append(errs, fmt.Errorf("%s: invalid ticker %q", field, e.Value()))
		case "dive":
			// For array elements
			errs = append(errs, fmt.Errorf("%s: invalid element in array", field))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", field, tag))
		}
	}

	return &ConfigurationError{Config: configName, Errors: errs}
}
