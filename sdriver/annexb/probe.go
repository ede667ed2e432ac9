package annexb

import (
	"errors"
	"fmt"
	"io"

	"hevcprobe/h265"
)

const (
	defaultProbeLimit = 256 << 10
	probeChunk        = 4 << 10
)

var ErrProbeLimit = errors.New("annexb: no complete SPS within probe limit")

// Probe reads r until the first complete SPS and parses it. The SPS only
// counts as complete once the next start code has arrived or r hit EOF.
func Probe(r io.Reader, limit int) (h265.SPSInfo, error) {
	_, info, err := probeHead(r, limit, h265.Options{})
	return info, err
}

// probeHead returns everything it consumed from r so the caller can replay it.
func probeHead(r io.Reader, limit int, opts h265.Options) ([]byte, h265.SPSInfo, error) {
	if limit <= 0 {
		limit = defaultProbeLimit
	}
	buf := make([]byte, 0, probeChunk)
	eof := false
	for {
		if sps := completeSPS(buf, eof); sps != nil {
			info, err := h265.ParseSPSWithOptions(sps, opts)
			if err != nil {
				return buf, h265.SPSInfo{}, fmt.Errorf("annexb: probe: %w", err)
			}
			return buf, info, nil
		}
		if eof {
			return buf, h265.SPSInfo{}, h265.ErrNoSPS
		}
		if len(buf) >= limit {
			return buf, h265.SPSInfo{}, ErrProbeLimit
		}

		n := min(probeChunk, limit-len(buf))
		buf = append(buf, make([]byte, n)...)
		got, err := io.ReadAtLeast(r, buf[len(buf)-n:], 1)
		buf = buf[:len(buf)-n+got]
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			eof = true
		} else if err != nil {
			return buf, h265.SPSInfo{}, err
		}
	}
}

func completeSPS(buf []byte, eof bool) []byte {
	nals := h265.SplitAnnexB(buf)
	for i, nal := range nals {
		if h265.NALType(nal) != h265.NALTypeSPS {
			continue
		}
		if i < len(nals)-1 || eof {
			return nal
		}
		return nil
	}
	return nil
}
