package match

import "errors"

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrSequenceGap  = errors.New("book event sequence gap")
)
