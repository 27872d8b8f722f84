// Package i18n resolves the interface language and translates UI strings
// and validation errors.
package i18n

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
	id_translations "github.com/go-playground/validator/v10/translations/id"
)

// Language describes a selectable interface language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var (
	usernameTag   = "username"
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phoneTag      = "phone"
	phoneRegex    = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)
)

type registration struct {
	locale   locales.Translator
	name     string
	defaults func(*validator.Validate, ut.Translator) error
}

var registry = map[string]registration{
	"en": {locale: en.New(), name: "English", defaults: en_translations.RegisterDefaultTranslations},
	"id": {locale: id.New(), name: "Bahasa Indonesia", defaults: id_translations.RegisterDefaultTranslations},
	"fr": {locale: fr.New(), name: "Français", defaults: fr_translations.RegisterDefaultTranslations},
}

// Bundle owns the translators and the shared validator.
type Bundle struct {
	uni       *ut.UniversalTranslator
	validate  *validator.Validate
	fallback  string
	supported []string
}

// New builds a bundle for the supported languages. Unknown codes are rejected.
func New(defaultLang string, supported []string) (*Bundle, error) {
	if len(supported) == 0 {
		supported = []string{"en"}
	}
	if defaultLang == "" {
		defaultLang = supported[0]
	}

	fallback := registry["en"].locale
	uni := ut.New(fallback, fallback)
	for _, code := range supported {
		reg, ok := registry[code]
		if !ok {
			return nil, fmt.Errorf("i18n: unsupported language %q", code)
		}
		if code != "en" {
			_ = uni.AddTranslator(reg.locale, true)
		}
	}

	b := &Bundle{uni: uni, validate: validator.New(), fallback: defaultLang, supported: supported}
	if !b.Supported(defaultLang) {
		return nil, fmt.Errorf("i18n: default language %q is not supported", defaultLang)
	}

	b.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = b.validate.RegisterValidation(usernameTag, func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = b.validate.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})

	for _, code := range supported {
		trans, _ := uni.GetTranslator(code)
		if err := registry[code].defaults(b.validate, trans); err != nil {
			return nil, fmt.Errorf("i18n: register %s validation messages: %w", code, err)
		}
		for key, text := range catalog[code] {
			if err := trans.Add(key, text, true); err != nil {
				return nil, fmt.Errorf("i18n: add %s/%s: %w", code, key, err)
			}
		}
		b.registerCustom(trans, usernameTag)
		b.registerCustom(trans, phoneTag)
	}

	return b, nil
}

func (b *Bundle) registerCustom(trans ut.Translator, tag string) {
	key := "validation." + tag
	_ = b.validate.RegisterTranslation(tag, trans,
		func(ut.Translator) error { return nil },
		func(t ut.Translator, fe validator.FieldError) string {
			s, err := t.T(key, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return s
		},
	)
}

// Validator returns the shared validator with JSON field names.
func (b *Bundle) Validator() *validator.Validate {
	return b.validate
}

// Default returns the fallback language.
func (b *Bundle) Default() string {
	return b.fallback
}

// Supported reports whether lang can be selected.
func (b *Bundle) Supported(lang string) bool {
	for _, code := range b.supported {
		if code == lang {
			return true
		}
	}
	return false
}

// Languages lists the selectable languages.
func (b *Bundle) Languages() []Language {
	out := make([]Language, 0, len(b.supported))
	for _, code := range b.supported {
		out = append(out, Language{Code: code, Name: registry[code].name})
	}
	return out
}

// Resolve returns the first supported candidate, or the default.
func (b *Bundle) Resolve(candidates ...string) string {
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if b.Supported(c) {
			return c
		}
	}
	return b.fallback
}

// FromAcceptLanguage picks the best supported language from an
// Accept-Language header value.
func (b *Bundle) FromAcceptLanguage(header string) string {
	type weighted struct {
		code string
		q    float64
	}
	var prefs []weighted
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		code := strings.ToLower(strings.SplitN(fields[0], "-", 2)[0])
		if code == "" {
			continue
		}
		q := 1.0
		for _, f := range fields[1:] {
			if v, ok := strings.CutPrefix(strings.TrimSpace(f), "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		prefs = append(prefs, weighted{code: code, q: q})
	}
	sort.SliceStable(prefs, func(i, j int) bool { return prefs[i].q > prefs[j].q })
	for _, p := range prefs {
		if b.Supported(p.code) {
			return p.code
		}
	}
	return ""
}

// T translates key into lang, falling back to the default language and
// finally to the key itself.
func (b *Bundle) T(lang, key string, params ...string) string {
	for _, code := range []string{lang, b.fallback, "en"} {
		trans, found := b.uni.GetTranslator(code)
		if !found {
			continue
		}
		if s, ok := translate(trans, key, params); ok {
			return s
		}
	}
	return key
}

// translate guards against catalog entries that expect more placeholders
// than the caller supplied, which make the translator panic.
func translate(trans ut.Translator, key string, params []string) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	s, err := trans.T(key, params...)
	return s, err == nil && s != ""
}

// ValidationErrors converts validator errors into field messages in lang.
// Errors that are not validation errors yield nil.
func (b *Bundle) ValidationErrors(lang string, err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	trans, _ := b.uni.GetTranslator(b.Resolve(lang))
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, exists := fields[name]; exists {
			continue
		}
		fields[name] = fe.Translate(trans)
	}
	return fields
}
