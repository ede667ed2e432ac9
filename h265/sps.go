package h265

import (
	"fmt"

	"hevcprobe/comm"

	"github.com/pion/logging"
)

var defaultLogger = logging.NewDefaultLoggerFactory().NewLogger("h265")

// Options controls how an SPS is parsed.
type Options struct {
	// Strict fails with comm.ErrBufferExhausted on truncated input instead of
	// reading zero bits past the end.
	Strict bool
	// Logger receives parse warnings. Nil uses the package default.
	Logger logging.LeveledLogger
}

// ParseSPS parses an SPS NAL unit (2-byte header included, emulation
// prevention bytes still in place) with lenient defaults.
func ParseSPS(nal []byte) (SPSInfo, error) {
	return ParseSPSWithOptions(nal, Options{})
}

// ParseSPSWithOptions reads the SPS up to bit_depth_chroma_minus8 and stops there.
func ParseSPSWithOptions(nal []byte, opts Options) (SPSInfo, error) {
	info := SPSInfo{}
	log := opts.Logger
	if log == nil {
		log = defaultLogger
	}

	if len(nal) < 2 {
		return info, ErrShortNAL
	}

	var c *comm.BitCursor
	if opts.Strict {
		c = comm.NewStrictBitCursor(nal)
	} else {
		c = comm.NewBitCursor(nal)
	}
	r := &syntaxReader{c: c}

	r.skip(16, "nal_unit_header")
	r.u(4, "sps_video_parameter_set_id")
	maxSubLayersMinus1 := r.u(3, "sps_max_sub_layers_minus1")
	r.u(1, "sps_temporal_id_nesting_flag")
	if r.err != nil {
		return info, r.err
	}

	ptl, err := parseProfileTierLevel(r, maxSubLayersMinus1)
	if err != nil {
		return info, fmt.Errorf("profile_tier_level: %w", err)
	}
	info.PTL = ptl
	info.CodecID = ptl.CodecString()

	r.ue("sps_seq_parameter_set_id")

	chromaFormatIDC := r.ue("chroma_format_idc")
	if chromaFormatIDC == 3 {
		r.u(1, "separate_colour_plane_flag")
	}
	info.ChromaFormatIDC = chromaFormatIDC
	if chromaFormatIDC < uint32(len(chromaFormatTable)) {
		info.ChromaFormat = chromaFormatTable[chromaFormatIDC]
	} else if r.err == nil {
		info.ChromaFormat = ChromaFormat420
		info.Warnings = append(info.Warnings, fmt.Errorf("%w: %d", ErrInvalidChromaFormat, chromaFormatIDC))
		log.Warnf("chroma_format_idc %d out of range, assuming 4:2:0", chromaFormatIDC)
	}

	info.Width = r.ue("pic_width_in_luma_samples")
	info.Height = r.ue("pic_height_in_luma_samples")

	if r.flag("conformance_window_flag") {
		r.ue("conf_win_left_offset")
		r.ue("conf_win_right_offset")
		r.ue("conf_win_top_offset")
		r.ue("conf_win_bottom_offset")
	}

	info.BitDepthLuma = r.ue("bit_depth_luma_minus8") + 8
	info.BitDepthChroma = r.ue("bit_depth_chroma_minus8") + 8
	if r.err != nil {
		return SPSInfo{}, r.err
	}

	if c.Exhausted() {
		info.Warnings = append(info.Warnings, comm.ErrBufferExhausted)
		log.Warnf("SPS truncated after %d bits, missing fields read as zero", len(nal)*8)
	}
	log.Debugf("SPS %s %dx%d %s luma %d chroma %d", info.CodecID, info.Width, info.Height,
		info.ChromaFormat, info.BitDepthLuma, info.BitDepthChroma)
	return info, nil
}
