package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionDegraded = errors.New("session degraded")
	ErrSessionArchived = errors.New("session archived")
	ErrVersionConflict = errors.New("state version conflict")
	ErrInvalidBid      = errors.New("invalid bid")
	ErrWindowClosed    = errors.New("arbitration window closed")
	ErrSecretNotFound  = errors.New("secret not found")
	ErrRuleNotFound    = errors.New("rule not found")

	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrNarrationUnavailable      = errors.New("narration unavailable")
)
