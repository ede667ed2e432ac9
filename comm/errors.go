package comm

import "errors"

var (
	// ErrBufferExhausted is returned by a strict BitCursor when a read runs past the input.
	ErrBufferExhausted = errors.New("bitstream: buffer exhausted")
	// ErrMalformedExpGolomb is returned when a ue(v) code has more leading zeros than fit in 32 bits.
	ErrMalformedExpGolomb = errors.New("bitstream: malformed exp-golomb code")
	ErrInvalidBitCount    = errors.New("bitstream: bit count must be between 1 and 32")
)
