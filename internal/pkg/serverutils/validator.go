// FILE: internal/pkg/serverutils/validator.go
package serverutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError carries one message per failed field.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return &ValidationError{Fields: fields}
}
