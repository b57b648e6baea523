package bookmarks

import (
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/linkyapp/linky/internal/apperr"
	"github.com/linkyapp/linky/internal/database"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 200
	maxURLLength         = 200
)

var allowedSchemes = []string{"http", "https", "ftp", "ftps"}

type fieldValidator struct {
	validate *validator.Validate
	strict   *bluemonday.Policy
}

func newFieldValidator() *fieldValidator {
	return &fieldValidator{
		validate: validator.New(),
		strict:   bluemonday.StrictPolicy(),
	}
}

// checkText rejects values containing markup. Values are stored as sent, minus
// surrounding whitespace. Entities and a lone "<" are plain text.
func (v *fieldValidator) checkText(verr *apperr.ValidationError, field, value string) {
	if plainText(value) != plainText(v.strict.Sanitize(value)) {
		verr.Add(field, "HTML markup is not allowed.")
	}
}

// plainText decodes entities and normalizes line breaks the way the html
// tokenizer does, so only dropped markup makes two values differ.
func plainText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return html.UnescapeString(s)
}

func (v *fieldValidator) checkLength(verr *apperr.ValidationError, field, value string, limit int) {
	if err := v.validate.Var(value, "max="+strconv.Itoa(limit)); err != nil {
		verr.Add(field, "Ensure this field has no more than "+strconv.Itoa(limit)+" characters.")
	}
}

func (v *fieldValidator) checkURL(verr *apperr.ValidationError, value string) {
	if value == "" {
		verr.Add("url", "This field is required.")
		return
	}
	if err := v.validate.Var(value, "url"); err != nil {
		verr.Add("url", "Enter a valid URL.")
		return
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || !lo.Contains(allowedSchemes, strings.ToLower(u.Scheme)) {
		verr.Add("url", "Enter a valid URL.")
		return
	}
	v.checkLength(verr, "url", value, maxURLLength)
}

func (v *fieldValidator) checkBackground(verr *apperr.ValidationError, value string) {
	if !lo.Contains(database.Backgrounds, database.Background(value)) {
		verr.Add("background", `"`+value+`" is not a valid choice.`)
	}
}

// urlHost returns the host of a validated URL.
func urlHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
