package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every HTML element from user supplied free text.
func SanitizeText(input string) string {
	return strings.TrimSpace(plainTextPolicy.Sanitize(input))
}
