package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"mobile-money-gateway/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)
	hhmmRe  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("amount", validateAmount)
		_ = v.RegisterValidation("hhmm", validateHHMM)
	}
}

// validatePhone accepts 8 to 15 digits, optionally with a leading plus and
// space or dash separators.
func validatePhone(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if !phoneRe.MatchString(raw) {
		return false
	}
	n := len(domain.NormalizePhone(raw, ""))
	return n >= 8 && n <= 15
}

// validateAmount accepts a positive decimal with at most two fractional digits.
func validateAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return domain.ValidAmount(d)
}

func validateHHMM(fl validator.FieldLevel) bool {
	return hhmmRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch {
		case f.Kind() == reflect.String:
			f.SetString(sanitize(f.String()))
		case f.Kind() == reflect.Ptr && !f.IsNil() && f.Elem().Kind() == reflect.String:
			f.Elem().SetString(sanitize(f.Elem().String()))
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
