package protocol

import (
	"errors"

	"naturalist.ai/internal/sim/travel"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Movement and pathing.
	ErrIllegalMove   = "E_ILLEGAL_MOVE"
	ErrNoPath        = "E_NO_PATH"
	ErrUnknownTarget = "E_UNKNOWN_TARGET"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrIllegalMove:     {},
	ErrNoPath:          {},
	ErrUnknownTarget:   {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeOf maps an error from the travel layer to its wire code. nil maps to "".
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, travel.ErrUnknownTarget):
		return ErrUnknownTarget
	case errors.Is(err, travel.ErrNoPath):
		return ErrNoPath
	case errors.Is(err, travel.ErrIllegalMove):
		return ErrIllegalMove
	default:
		return ErrInternal
	}
}
