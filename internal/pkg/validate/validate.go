package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/patrol-auth/internal/domain"
)

var (
	v = newValidator()
	// plain is used by custom rules that delegate to built-in tags.
	plain = validator.New()
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names, which is what clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("contact", validContact)
	return v
}

// validContact accepts an email address or a phone number with 10 to 15
// digits once separators are stripped.
func validContact(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if domain.IsEmail(s) {
		return plain.Var(s, "email") == nil
	}
	n := len(domain.NormalizeContact(s))
	return n >= 10 && n <= 15
}

// Struct validates s using its validate tags and flattens the failures into
// one message.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
