// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeAuthCallerNotCompleter Code = "AUTH_CALLER_NOT_COMPLETER"
	CodeAuthCallerNotRelay     Code = "AUTH_CALLER_NOT_RELAY"
	CodeAuthCallerNotLedger    Code = "AUTH_CALLER_NOT_LEDGER"
	CodeAuthCallerNotTransport Code = "AUTH_CALLER_NOT_TRANSPORT"

	// State errors
	CodeUserAlreadyRegistered  Code = "STATE_USER_ALREADY_REGISTERED"
	CodeUserNotRegistered      Code = "STATE_USER_NOT_REGISTERED"
	CodeQuestNotFound          Code = "STATE_QUEST_NOT_FOUND"
	CodeQuestInactive          Code = "STATE_QUEST_INACTIVE"
	CodeQuestAlreadyCompleted  Code = "STATE_QUEST_ALREADY_COMPLETED"

	// Validation errors
	CodeSourceDomainMismatch Code = "VALIDATION_SOURCE_DOMAIN_MISMATCH"
	CodeSourceRelayMismatch  Code = "VALIDATION_SOURCE_RELAY_MISMATCH"
	CodePayloadMalformed     Code = "VALIDATION_PAYLOAD_MALFORMED"

	// Input errors
	CodeQuestNameEmpty   Code = "QUEST_NAME_EMPTY"
	CodeQuestTypeInvalid Code = "QUEST_TYPE_INVALID"
	CodeAddressInvalid   Code = "ADDRESS_INVALID"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeAnswerIncorrect  Code = "ANSWER_INCORRECT"
	CodeUserNotFound     Code = "USER_NOT_FOUND"
)

// IsAuthorization reports whether the code belongs to the authorization family.
func (c Code) IsAuthorization() bool {
	switch c {
	case CodeAuthCallerNotCompleter, CodeAuthCallerNotRelay, CodeAuthCallerNotLedger, CodeAuthCallerNotTransport:
		return true
	}
	return false
}

// IsState reports whether the code belongs to the lifecycle-state family.
func (c Code) IsState() bool {
	switch c {
	case CodeUserAlreadyRegistered, CodeUserNotRegistered, CodeQuestNotFound, CodeQuestInactive, CodeQuestAlreadyCompleted:
		return true
	}
	return false
}

// IsValidation reports whether the code belongs to the message-provenance family.
func (c Code) IsValidation() bool {
	switch c {
	case CodeSourceDomainMismatch, CodeSourceRelayMismatch, CodePayloadMalformed:
		return true
	}
	return false
}
