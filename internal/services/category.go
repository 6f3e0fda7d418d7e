package services

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-recruit-uploads/internal/domain"
)

// NormalizeCategory case-folds and trims raw and matches it against the
// closed category set. Unknown or empty input yields *InvalidCategoryError;
// nothing is ever coerced to a default.
func NormalizeCategory(raw string) (domain.Category, error) {
	// A Caser is stateful; build one per call.
	c := domain.Category(cases.Fold().String(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", &InvalidCategoryError{Raw: raw}
	}
	return c, nil
}
