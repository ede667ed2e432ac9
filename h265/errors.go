package h265

import "errors"

var (
	ErrShortNAL = errors.New("h265: NAL unit shorter than its 2-byte header")
	// ErrInvalidChromaFormat is reported as a warning when chroma_format_idc is above 3.
	ErrInvalidChromaFormat = errors.New("h265: chroma_format_idc out of range")
	ErrNoSPS               = errors.New("h265: no SPS NAL unit found")
	ErrNotSPS              = errors.New("h265: NAL unit is not an SPS")
)
