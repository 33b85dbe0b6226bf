package validator

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagNotBlank = "notblank" // 去除首尾空白后不能为空
	TagDocExt   = "docext"   // 仅允许 .txt / .md 文件名
)

// DocumentExtensions lists the accepted document extensions (lower-case).
var DocumentExtensions = []string{".txt", ".md"}

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagNotBlank, validateNotBlank)
	_ = v.validate.RegisterValidation(TagDocExt, validateDocExt)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateDocExt(fl validator.FieldLevel) bool {
	return HasDocumentExtension(fl.Field().String())
}

// HasDocumentExtension reports whether name ends with an accepted extension,
// case-insensitively.
func HasDocumentExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range DocumentExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
