package httpguard

import "errors"

var (
	// ErrBodyTooLarge is the cause of a rejection for an oversized body.
	ErrBodyTooLarge = errors.New("httpguard: request body too large")

	// ErrInvalidBody is the cause of a rejection for an undecodable body.
	ErrInvalidBody = errors.New("httpguard: invalid request body")

	// ErrAlreadyWritten is returned by Writer.SendBody on a second call.
	ErrAlreadyWritten = errors.New("httpguard: response already written")
)
