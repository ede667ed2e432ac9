package h265

import "errors"

// ChromaFormat is the chroma subsampling of a sequence.
// The numeric value doubles as a short code: 420, 422, 444, or 0 when unknown.
type ChromaFormat uint16

const (
	ChromaFormatUnknown ChromaFormat = 0
	ChromaFormat420     ChromaFormat = 420
	ChromaFormat422     ChromaFormat = 422
	ChromaFormat444     ChromaFormat = 444
)

// chroma_format_idc 0..3; 0 is monochrome, which has no subsampling to report.
var chromaFormatTable = [4]ChromaFormat{ChromaFormatUnknown, ChromaFormat420, ChromaFormat422, ChromaFormat444}

func (f ChromaFormat) String() string {
	switch f {
	case ChromaFormat420:
		return "4:2:0"
	case ChromaFormat422:
		return "4:2:2"
	case ChromaFormat444:
		return "4:4:4"
	default:
		return "Unknown"
	}
}

// SPSInfo is the decoder configuration carried by one SPS.
type SPSInfo struct {
	CodecID         string           `json:"codec_id"` // e.g. hvc1.1.6.L120.90
	Width           uint32           `json:"width"`    // pic_width_in_luma_samples, uncropped
	Height          uint32           `json:"height"`
	ChromaFormat    ChromaFormat     `json:"chroma_format"`
	ChromaFormatIDC uint32           `json:"chroma_format_idc"`
	BitDepthLuma    uint32           `json:"bit_depth_luma"`
	BitDepthChroma  uint32           `json:"bit_depth_chroma"`
	PTL             ProfileTierLevel `json:"profile_tier_level"`

	// Warnings holds non-fatal problems found while parsing,
	// e.g. ErrInvalidChromaFormat or a lenient read past the end.
	Warnings []error `json:"-"`
}

// HasWarning reports whether target is among the parse warnings.
func (s SPSInfo) HasWarning(target error) bool {
	for _, w := range s.Warnings {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}
