// Package validator wraps go-playground/validator with EN/ZH translations
// and the custom rules used by the FAQ API. It is installed as gin's
// binding validator so `binding:"..."` tags are checked on ShouldBind*.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	zhtrans "github.com/go-playground/validator/v10/translations/zh"
)

// Supported languages.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator validates structs and translates field errors.
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator
}

var (
	global     *Validator
	globalOnce sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New creates a validator using the `binding` struct tag.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	v.validate.SetTagName("binding")
	v.validate.RegisterTagNameFunc(jsonFieldName)

	enLocale := en.New()
	v.uni = ut.New(enLocale, enLocale, zh.New())

	if trans, ok := v.uni.GetTranslator(LangEN); ok {
		_ = entrans.RegisterDefaultTranslations(v.validate, trans)
	}
	if trans, ok := v.uni.GetTranslator(LangZH); ok {
		_ = zhtrans.RegisterDefaultTranslations(v.validate, trans)
	}

	v.registerCustomRules()
	v.registerCustomTranslations()
	return v
}

// jsonFieldName reports fields by their json/form name instead of the Go name.
func jsonFieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// GetTranslator returns the translator for lang, or nil.
func (v *Validator) GetTranslator(lang string) ut.Translator {
	trans, ok := v.uni.GetTranslator(lang)
	if !ok {
		return nil
	}
	return trans
}

// Struct validates s.
func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateStruct implements gin's binding.StructValidator.
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	return v.validate.Struct(obj)
}

// Engine implements gin's binding.StructValidator.
func (v *Validator) Engine() any {
	return v.validate
}

// Translate renders err as a single human-readable message in lang.
// Non-validation errors are returned by their Error() text.
func (v *Validator) Translate(err error, lang string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	trans := v.GetTranslator(lang)
	if trans == nil {
		trans = v.GetTranslator(LangEN)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return strings.Join(msgs, "; ")
}
