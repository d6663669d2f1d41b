package history

import "errors"

var (
	ErrInvalidRoom = errors.New("invalid room name")
)
