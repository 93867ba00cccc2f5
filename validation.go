package volt

import (
	"strings"

	oaierrors "github.com/go-openapi/errors"
)

// checkFields folds validation results into one error, or nil when every
// result is nil.
func checkFields(results ...*oaierrors.Validation) error {
	var errs []error
	for _, r := range results {
		if r != nil {
			errs = append(errs, r)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return oaierrors.CompositeValidationError(errs...)
}

// checkRequest validates caller input before any network call. The returned
// error is a VALIDATION *Error naming the first offending field.
func checkRequest(results ...*oaierrors.Validation) error {
	var (
		first *oaierrors.Validation
		msgs  []string
	)
	for _, r := range results {
		if r == nil {
			continue
		}
		if first == nil {
			first = r
		}
		msgs = append(msgs, r.Error())
	}
	if first == nil {
		return nil
	}
	e := validationError(first.Name, strings.Join(msgs, "; "))
	e.Cause = checkFields(results...)
	return e
}
