package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError is returned when a query references an identifier that does
// not exist in the taxonomy.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IntegrityError is returned when a dataset fails integrity validation at
// load time. A store receiving one must refuse to serve queries.
type IntegrityError struct {
	Result Result
}

func (e IntegrityError) Error() string {
	if len(e.Result.Violations) == 0 {
		return "dataset integrity violation"
	}
	msgs := make([]string, len(e.Result.Violations))
	for i, v := range e.Result.Violations {
		msgs[i] = v.String()
	}
	return "dataset integrity violation: " + strings.Join(msgs, "; ")
}
