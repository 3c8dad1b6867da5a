package errorz

import (
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)
