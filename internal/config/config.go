// Package config reads station profiles and method settings from YAML or
// JSON documents.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/gridopt/internal/placement"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom rules registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("finite", validateFinite)

		// Report document keys rather than Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func validateFinite(fl validator.FieldLevel) bool {
	v := fl.Field()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return true
}

// readDocument decodes a top-level mapping. yaml.v3 accepts JSON as well.
func readDocument(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &placement.DataShapeError{Source: path, Reason: "malformed document: " + err.Error()}
	}
	return nil
}

// checkStruct validates s and maps failures onto the domain errors: a missing
// field is a data-shape problem, anything else is a configuration problem.
func checkStruct(source, prefix string, s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate %s: %w", source, err)
	}

	e := verrs[0]
	field := prefix + e.Field()
	if e.Tag() == "required" {
		return &placement.DataShapeError{Source: source, Field: field, Reason: "missing"}
	}
	return &placement.ConfigError{Field: field, Reason: describe(e)}
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "finite":
		return "must be a finite number"
	}
	return "failed " + e.Tag() + " check"
}
