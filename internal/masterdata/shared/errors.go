package shared

import "errors"

// Sentinels shared by the masterdata packages.
var (
	ErrNotFound   = errors.New("masterdata: not found")
	ErrDuplicate  = errors.New("masterdata: duplicate")
	ErrValidation = errors.New("masterdata: invalid")
	ErrInvalidID  = errors.New("masterdata: invalid id")
)
