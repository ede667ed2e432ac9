package h265

type bitWriter struct {
	buf []byte
	n   uint
}

func (w *bitWriter) writeBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
		}
		w.n++
	}
}

func (w *bitWriter) writeUE(v uint64) {
	v++
	k := 0
	for x := v; x > 1; x >>= 1 {
		k++
	}
	w.writeBits(0, k)
	w.writeBits(v, k+1)
}

func (w *bitWriter) writeFlag(b bool) {
	if b {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
}

func escape(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/2)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

type subLayer struct {
	profilePresent bool
	levelPresent   bool
}

// testSPS describes the fields buildSPS writes. Everything after
// bit_depth_chroma_minus8 is replaced by rbsp trailing bits.
type testSPS struct {
	ptl          ProfileTierLevel
	subLayers    []subLayer // len is sps_max_sub_layers_minus1
	chromaIDC    uint64
	width        uint64
	height       uint64
	confWin      []uint64 // nil: conformance_window_flag = 0
	lumaMinus8   uint64
	chromaMinus8 uint64
}

func defaultTestSPS() testSPS {
	return testSPS{
		ptl: ProfileTierLevel{
			ProfileIDC:         1,
			CompatibilityFlags: 0x60,
			ConstraintFlags:    [6]byte{0x90},
			LevelIDC:           120,
		},
		chromaIDC: 1,
		width:     1920,
		height:    1080,
	}
}

func buildSPS(s testSPS) []byte {
	w := &bitWriter{}
	w.writeBits(NALTypeSPS<<9|1, 16) // nuh_layer_id 0, nuh_temporal_id_plus1 1
	w.writeBits(0, 4)
	w.writeBits(uint64(len(s.subLayers)), 3)
	w.writeBits(1, 1)

	w.writeBits(uint64(s.ptl.ProfileSpace), 2)
	w.writeBits(uint64(s.ptl.TierFlag), 1)
	w.writeBits(uint64(s.ptl.ProfileIDC), 5)
	for i := 0; i < 4; i++ {
		w.writeBits(uint64(s.ptl.CompatibilityFlags>>(8*i))&0xff, 8)
	}
	for _, b := range s.ptl.ConstraintFlags {
		w.writeBits(uint64(b), 8)
	}
	w.writeBits(uint64(s.ptl.LevelIDC), 8)
	for _, sl := range s.subLayers {
		w.writeFlag(sl.profilePresent)
		w.writeFlag(sl.levelPresent)
	}
	if n := len(s.subLayers); n > 0 {
		w.writeBits(0, (8-n)*2)
	}
	for _, sl := range s.subLayers {
		if sl.profilePresent {
			// all ones so a misaligned reader picks up garbage
			w.writeBits(0xffffffffff, 40)
			w.writeBits(0xffffffffffff, 48)
		}
		if sl.levelPresent {
			w.writeBits(0xff, 8)
		}
	}

	w.writeUE(0)
	w.writeUE(s.chromaIDC)
	if s.chromaIDC == 3 {
		w.writeBits(0, 1)
	}
	w.writeUE(s.width)
	w.writeUE(s.height)
	w.writeFlag(s.confWin != nil)
	for _, off := range s.confWin {
		w.writeUE(off)
	}
	w.writeUE(s.lumaMinus8)
	w.writeUE(s.chromaMinus8)

	w.writeBits(1, 1)
	for w.n%8 != 0 {
		w.writeBits(0, 1)
	}
	return escape(w.buf)
}
