package sdriver

import (
	"time"

	"hevcprobe/h265"
)

type AVBox struct {
	Data       []byte        // one H.265 NAL unit, no start code
	PTS        time.Duration // relative to the first picture
	IsKeyFrame bool          // IRAP picture
	IsConfig   bool          // VPS/SPS/PPS; carries no duration
}

type MediaMeta struct {
	VideoCodecID   string `json:"video_codec_id"` // always "h265" for now
	CodecString    string `json:"codec_string"`   // hvc1.* identifier from the SPS
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	FPS            int    `json:"fps"`
	ChromaFormat   string `json:"chroma_format"`
	BitDepthLuma   int    `json:"bit_depth_luma"`
	BitDepthChroma int    `json:"bit_depth_chroma"`
	FmtpLine       string `json:"fmtp_line"`
}

// MediaMetaFromSPS fills the video fields of a MediaMeta from a parsed SPS.
func MediaMetaFromSPS(info h265.SPSInfo, fps int) MediaMeta {
	return MediaMeta{
		VideoCodecID:   "h265",
		CodecString:    info.CodecID,
		Width:          int(info.Width),
		Height:         int(info.Height),
		FPS:            fps,
		ChromaFormat:   info.ChromaFormat.String(),
		BitDepthLuma:   int(info.BitDepthLuma),
		BitDepthChroma: int(info.BitDepthChroma),
		FmtpLine:       info.PTL.FmtpLine(),
	}
}

type DriverCaps struct {
	CanVideo bool `json:"can_video"`
	CanAudio bool `json:"can_audio"`
	// CanSeekIDR is set when RequestIDR can replay cached parameter sets.
	CanSeekIDR bool `json:"can_seek_idr"`
	Live       bool `json:"live"`
}
