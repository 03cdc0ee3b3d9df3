package storage

import "errors"

var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrUserNotExist      = errors.New("user does not exist")
	ErrSessionNotExist   = errors.New("session does not exist")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	ErrRoomNotExist      = errors.New("room does not exist")
	ErrMessageBadRoom    = errors.New("bad room id")
	ErrMessageBadSender  = errors.New("bad sender id")
	ErrCodeExhausted     = errors.New("could not generate an unused join code")
)
