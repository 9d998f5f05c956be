package executor

import "errors"

var (
	errEmpty      = errors.New("empty id")
	errNotNumeric = errors.New("id is not numeric")
)
