package h265

import "fmt"

// NAL unit types used by the probe. See H.265 Table 7-1.
const (
	NALTypeBLAWLP      = 16
	NALTypeIDRWRADL    = 19
	NALTypeIDRNLP      = 20
	NALTypeCRA         = 21
	NALTypeRSVIRAP23   = 23
	NALTypeVPS         = 32
	NALTypeSPS         = 33
	NALTypePPS         = 34
	NALTypeAUD         = 35
	NALTypeSEIPrefix   = 39
	NALTypeSEISuffix   = 40
	NALTypeUnspecified = 48
)

// NALType decodes nal_unit_type from the first header byte:
// F(1) + Type(6) + LayerId(6) + TID(3).
func NALType(nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	return (nal[0] >> 1) & 0x3F
}

var nalTypeNames = map[uint8]string{
	NALTypeBLAWLP:    "BLA_W_LP",
	17:               "BLA_W_RADL",
	18:               "BLA_N_LP",
	NALTypeIDRWRADL:  "IDR_W_RADL",
	NALTypeIDRNLP:    "IDR_N_LP",
	NALTypeCRA:       "CRA_NUT",
	NALTypeVPS:       "VPS_NUT",
	NALTypeSPS:       "SPS_NUT",
	NALTypePPS:       "PPS_NUT",
	NALTypeAUD:       "AUD_NUT",
	36:               "EOS_NUT",
	37:               "EOB_NUT",
	38:               "FD_NUT",
	NALTypeSEIPrefix: "PREFIX_SEI_NUT",
	NALTypeSEISuffix: "SUFFIX_SEI_NUT",
}

// NALTypeName returns the Table 7-1 mnemonic, or a generic name for
// non-IRAP slices and reserved types.
func NALTypeName(t uint8) string {
	if name, ok := nalTypeNames[t]; ok {
		return name
	}
	switch {
	case IsVCL(t) && !IsIRAP(t):
		return fmt.Sprintf("SLICE_%d", t)
	case t >= NALTypeUnspecified:
		return fmt.Sprintf("UNSPEC_%d", t)
	default:
		return fmt.Sprintf("RSV_%d", t)
	}
}

func IsVCL(t uint8) bool {
	return t < NALTypeVPS
}

// IsIRAP reports a random access point (BLA, IDR, CRA, reserved IRAP).
func IsIRAP(t uint8) bool {
	return t >= NALTypeBLAWLP && t <= NALTypeRSVIRAP23
}

func IsParameterSet(t uint8) bool {
	return t >= NALTypeVPS && t <= NALTypePPS
}

// FirstSliceInPicture reads first_slice_segment_in_pic_flag of a VCL NAL unit.
func FirstSliceInPicture(nal []byte) bool {
	return len(nal) > 2 && IsVCL(NALType(nal)) && nal[2]&0x80 != 0
}

// SplitAnnexB splits an Annex B byte stream into NAL units without start codes.
func SplitAnnexB(b []byte) [][]byte {
	var out [][]byte
	i := 0
	for {
		start, scLen := findStartCode(b, i)
		if start < 0 {
			break
		}
		next, _ := findStartCode(b, start+scLen)
		if next < 0 {
			if nal := trimTrailingZeros(b[start+scLen:]); len(nal) > 0 {
				out = append(out, nal)
			}
			break
		}
		if nal := trimTrailingZeros(b[start+scLen : next]); len(nal) > 0 {
			out = append(out, nal)
		}
		i = next
	}
	return out
}

// FindSPS returns the first SPS NAL unit in an Annex B buffer.
func FindSPS(b []byte) ([]byte, error) {
	for _, nal := range SplitAnnexB(b) {
		if NALType(nal) == NALTypeSPS {
			return nal, nil
		}
	}
	return nil, ErrNoSPS
}

func findStartCode(b []byte, from int) (int, int) {
	for i := from; i+2 < len(b); i++ {
		if b[i] != 0x00 || b[i+1] != 0x00 {
			continue
		}
		if b[i+2] == 0x01 {
			return i, 3
		}
		if i+3 < len(b) && b[i+2] == 0x00 && b[i+3] == 0x01 {
			return i, 4
		}
	}
	return -1, 0
}

func trimTrailingZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0x00 {
		i--
	}
	return b[:i]
}

// CheckSPS validates the NAL header of a buffer expected to hold an SPS.
// The parser itself skips the header without looking at it.
func CheckSPS(nal []byte) error {
	if len(nal) < 2 {
		return ErrShortNAL
	}
	if NALType(nal) != NALTypeSPS {
		return ErrNotSPS
	}
	return nil
}
