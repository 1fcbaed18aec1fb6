package contract

import "errors"

var (
	ErrDuplicateIntent = errors.New("intent already registered")
	ErrUnknownIntent   = errors.New("unknown intent")
	ErrValidation      = errors.New("validation failed")
	ErrHandler         = errors.New("handler failed")
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrSchemaViolation = errors.New("model response violates schema")
)
