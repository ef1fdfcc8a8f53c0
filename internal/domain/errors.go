package domain

import "errors"

var (
	// ErrPacketNotFound is returned by lookups of an unknown packet ID.
	// Claims never return it: an unknown packet is a ClaimNotFound outcome.
	ErrPacketNotFound = errors.New("red packet not found")

	// ErrMalformed marks invalid creation or claim parameters.
	ErrMalformed = errors.New("invalid request")
)
