package wire_errors

import (
	"errors"
)

var (
	InvalidSchema       = errors.New("invalid schema")
	InvalidBlockGroup   = errors.New("invalid block group")
	UnrecoverableStripe = errors.New("unrecoverable stripe")
	NotInitialized      = errors.New("coder not initialized")
	AlreadyInitialized  = errors.New("coder already initialized")
	UnknownCodec        = errors.New("unknown codec")
	InvalidBuffers      = errors.New("invalid coding buffers")
)

// Code is the stable numeric form of the errors above. The CLI uses it as
// its exit status; other processes can use it to carry a planner failure
// across a boundary without string matching.
type Code int

const (
	Code_OK Code = iota
	Code_ERROR
	Code_InvalidSchema
	Code_InvalidBlockGroup
	Code_UnrecoverableStripe
	Code_NotInitialized
	Code_AlreadyInitialized
	Code_UnknownCodec
	Code_InvalidBuffers
)

var codeNames = map[Code]string{
	Code_OK:                  "OK",
	Code_ERROR:               "ERROR",
	Code_InvalidSchema:       "InvalidSchema",
	Code_InvalidBlockGroup:   "InvalidBlockGroup",
	Code_UnrecoverableStripe: "UnrecoverableStripe",
	Code_NotInitialized:      "NotInitialized",
	Code_AlreadyInitialized:  "AlreadyInitialized",
	Code_UnknownCodec:        "UnknownCodec",
	Code_InvalidBuffers:      "InvalidBuffers",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "Unknown"
}

func FromCode(code Code, des string) error {
	switch code {
	case Code_InvalidSchema:
		return InvalidSchema
	case Code_InvalidBlockGroup:
		return InvalidBlockGroup
	case Code_UnrecoverableStripe:
		return UnrecoverableStripe
	case Code_NotInitialized:
		return NotInitialized
	case Code_AlreadyInitialized:
		return AlreadyInitialized
	case Code_UnknownCodec:
		return UnknownCodec
	case Code_InvalidBuffers:
		return InvalidBuffers
	case Code_OK:
		return nil
	default:
		return errors.New(des)
	}
}

// ConvertToCode classifies err, looking through any wrapping added by
// callers.
func ConvertToCode(err error) (Code, string) {
	if err == nil {
		return Code_OK, ""
	}
	switch {
	case errors.Is(err, InvalidSchema):
		return Code_InvalidSchema, err.Error()
	case errors.Is(err, InvalidBlockGroup):
		return Code_InvalidBlockGroup, err.Error()
	case errors.Is(err, UnrecoverableStripe):
		return Code_UnrecoverableStripe, err.Error()
	case errors.Is(err, NotInitialized):
		return Code_NotInitialized, err.Error()
	case errors.Is(err, AlreadyInitialized):
		return Code_AlreadyInitialized, err.Error()
	case errors.Is(err, UnknownCodec):
		return Code_UnknownCodec, err.Error()
	case errors.Is(err, InvalidBuffers):
		return Code_InvalidBuffers, err.Error()
	default:
		return Code_ERROR, err.Error()
	}
}
