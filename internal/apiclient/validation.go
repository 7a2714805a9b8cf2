package apiclient

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	MsgPasswordMismatch = "Les mots de passe ne correspondent pas"
	MsgWeakPassword     = "Le mot de passe doit contenir au moins 8 caractères, une majuscule, une minuscule et un chiffre"
	MsgInvalidEmail     = "Adresse e-mail invalide"
	MsgMissingDocuments = "Veuillez télécharger les trois documents requis"
	MsgNotPDF           = "Seuls les fichiers PDF sont acceptés"
	MsgFileTooLarge     = "La taille du fichier ne doit pas dépasser 5MB"

	MaxDocumentSize = 5 * 1024 * 1024
)

// FieldError is one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any request is sent.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Messages lists the distinct messages in field order.
func (e *ValidationError) Messages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range e.Fields {
		if !seen[f.Message] {
			seen[f.Message] = true
			out = append(out, f.Message)
		}
	}
	return out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("strongpassword", strongPassword)
	})
	return validate
}

// strongPassword wants an upper case letter, a lower case letter and a digit.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Validate checks a form struct and turns validator output into messages a
// form can show.
func Validate(form any) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "eqfield":
		return MsgPasswordMismatch
	case fe.Tag() == "strongpassword", fe.Tag() == "min" && strings.Contains(strings.ToLower(fe.Field()), "password"):
		return MsgWeakPassword
	case fe.Tag() == "email":
		return MsgInvalidEmail
	case fe.Tag() == "required" && fe.Kind() == reflect.Ptr:
		return MsgMissingDocuments
	case fe.Tag() == "eq" && fe.Field() == "contentType":
		return MsgNotPDF
	case fe.Tag() == "max" && fe.Field() == "data":
		return MsgFileTooLarge
	case fe.Tag() == "required":
		return fmt.Sprintf("Le champ %s est requis", fe.Field())
	default:
		return fmt.Sprintf("Le champ %s est invalide", fe.Field())
	}
}
