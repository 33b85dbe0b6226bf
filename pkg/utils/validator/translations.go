package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func (v *Validator) registerCustomTranslations() {
	if trans := v.GetTranslator(LangEN); trans != nil {
		registerTranslations(v.validate, trans, map[string]string{
			TagNotBlank: "{0} must not be blank",
			TagDocExt:   "{0} must be a .txt or .md file",
		})
	}
	if trans := v.GetTranslator(LangZH); trans != nil {
		registerTranslations(v.validate, trans, map[string]string{
			TagNotBlank: "{0}不能为空白",
			TagDocExt:   "{0}必须是 .txt 或 .md 文件",
		})
	}
}

func registerTranslations(validate *validator.Validate, trans ut.Translator, messages map[string]string) {
	for tag, message := range messages {
		registerTranslation(validate, trans, tag, message)
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
