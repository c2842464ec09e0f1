package basket

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid   = regexp.MustCompile(`[^\w\s-]`)
	slugSeparator = regexp.MustCompile(`[-\s]+`)
)

// Slugify folds value to lowercase ASCII words joined by hyphens.
func Slugify(value string) string {
	decomposed := norm.NFKD.String(value)
	var b strings.Builder
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.ToLower(b.String())
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugSeparator.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-_")
}

// ProductRef is the default line reference for a product.
func ProductRef(productType, productID string) string {
	return Slugify(productType + "-" + productID)
}
