package services

import "errors"

// Domain errors returned by the chat service. Handlers map these onto HTTP
// status codes; the websocket layer maps them onto error events.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotParticipant  = errors.New("user is not a participant of this conversation")
	ErrNotFound        = errors.New("record not found")
)
