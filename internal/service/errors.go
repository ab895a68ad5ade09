package service

import "errors"

var (
	ErrNoLineItems         = errors.New("no line items with a nonzero amount")
	ErrPersistence         = errors.New("failed to persist transactions")
	ErrInvalidPayload      = errors.New("invalid transaction payload")
	ErrUnresolvableDate    = errors.New("unresolvable date")
	ErrEmptyResponse       = errors.New("no response from LLM")
	ErrUnknownTool         = errors.New("unknown tool")
	ErrUnsupportedDocument = errors.New("unsupported document")
)
