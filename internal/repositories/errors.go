package repositories

import "errors"

// ErrInsufficientStock is returned by conditional stock decrements that matched no row.
var ErrInsufficientStock = errors.New("insufficient stock")
