package h265

import (
	"fmt"
	"strconv"
	"strings"
)

// ProfileTierLevel holds the general_* fields of profile_tier_level().
// Sub-layer entries are parsed only to keep the cursor aligned.
type ProfileTierLevel struct {
	ProfileSpace uint8 `json:"profile_space"`
	TierFlag     uint8 `json:"tier_flag"`
	ProfileIDC   uint8 `json:"profile_idc"`
	// First byte read is the least significant.
	CompatibilityFlags uint32 `json:"profile_compatibility_flags"`
	// Indexed in read order.
	ConstraintFlags [6]byte `json:"constraint_flags"`
	LevelIDC        uint8   `json:"level_idc"`
}

// sub_layer profile fields: space(2) tier(1) idc(5) compat(32) constraints(48)
const subLayerProfileBits = 2 + 1 + 5 + 32 + 48

func parseProfileTierLevel(r *syntaxReader, maxSubLayersMinus1 uint32) (ProfileTierLevel, error) {
	var ptl ProfileTierLevel

	ptl.ProfileSpace = uint8(r.u(2, "general_profile_space"))
	ptl.TierFlag = uint8(r.u(1, "general_tier_flag"))
	ptl.ProfileIDC = uint8(r.u(5, "general_profile_idc"))

	for i := 0; i < 4; i++ {
		b := r.u(8, "general_profile_compatibility_flags")
		ptl.CompatibilityFlags |= b << (8 * i)
	}
	for i := range ptl.ConstraintFlags {
		ptl.ConstraintFlags[i] = byte(r.u(8, "general_constraint_indicator_flags"))
	}
	ptl.LevelIDC = uint8(r.u(8, "general_level_idc"))
	if r.err != nil {
		return ptl, r.err
	}

	profilePresent := make([]bool, maxSubLayersMinus1)
	levelPresent := make([]bool, maxSubLayersMinus1)
	for i := range profilePresent {
		profilePresent[i] = r.flag("sub_layer_profile_present_flag")
		levelPresent[i] = r.flag("sub_layer_level_present_flag")
	}
	if maxSubLayersMinus1 != 0 {
		r.skip(int(8-maxSubLayersMinus1)*2, "reserved_zero_2bits")
	}
	for i := range profilePresent {
		if profilePresent[i] {
			r.skip(subLayerProfileBits, "sub_layer_profile")
		}
		if levelPresent[i] {
			r.skip(8, "sub_layer_level_idc")
		}
	}
	return ptl, r.err
}

// CodecString renders the ISO/IEC 14496-15 codec identifier, e.g. "hvc1.A1.60000000.L120.b.0.0.0.0.0".
func (p ProfileTierLevel) CodecString() string {
	var sb strings.Builder
	sb.WriteString("hvc1.")
	if p.ProfileSpace >= 1 && p.ProfileSpace <= 3 {
		sb.WriteByte("ABC"[p.ProfileSpace-1])
	}
	sb.WriteString(strconv.FormatUint(uint64(p.ProfileIDC), 10))

	sb.WriteByte('.')
	sb.WriteString(strconv.FormatUint(uint64(p.CompatibilityFlags), 16))

	if p.TierFlag == 0 {
		sb.WriteString(".L")
	} else {
		sb.WriteString(".H")
	}
	sb.WriteString(strconv.FormatUint(uint64(p.LevelIDC), 10))

	// From the highest nonzero constraint byte down to index 0.
	started := false
	for i := len(p.ConstraintFlags) - 1; i >= 0; i-- {
		if p.ConstraintFlags[i] != 0 {
			started = true
		}
		if started {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(uint64(p.ConstraintFlags[i]), 16))
		}
	}
	return sb.String()
}

// FmtpLine is the RFC 7798 SDP fmtp parameter list describing this PTL.
func (p ProfileTierLevel) FmtpLine() string {
	params := []string{
		"level-id=" + strconv.Itoa(int(p.LevelIDC)),
		"profile-id=" + strconv.Itoa(int(p.ProfileIDC)),
	}
	if p.ProfileSpace != 0 {
		params = append(params, "profile-space="+strconv.Itoa(int(p.ProfileSpace)))
	}
	params = append(params, "tier-flag="+strconv.Itoa(int(p.TierFlag)), "tx-mode=SRST")
	return strings.Join(params, ";")
}

func (p ProfileTierLevel) Tier() string {
	if p.TierFlag == 1 {
		return "High"
	}
	return "Main"
}

// Level renders general_level_idc as the level number, e.g. 120 -> "4.0".
func (p ProfileTierLevel) Level() string {
	return fmt.Sprintf("%.1f", float32(p.LevelIDC)/30.0)
}
