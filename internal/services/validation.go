package services

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"biblioteca/internal/models"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports json field names and knows
// the "cpf" and "date" tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		_, err := FormatCPF(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

// FormatCPF strips punctuation from a national ID and returns it in the
// canonical NNN.NNN.NNN-NN form. The stripped value must be exactly 11 digits.
func FormatCPF(raw string) (string, error) {
	digits := strings.NewReplacer(".", "", "-", "", " ", "").Replace(strings.TrimSpace(raw))
	if len(digits) != 11 {
		return "", fmt.Errorf("CPF must have 11 digits, got %d", len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("CPF must contain only digits")
		}
	}
	return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:], nil
}
