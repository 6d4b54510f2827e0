package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room matches a join code or id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrBankNotFound indicates a question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
)
