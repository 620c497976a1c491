package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateURL = errors.New("product url already tracked")
)
