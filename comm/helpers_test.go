package comm

// bitWriter packs MSB-first bits for building test streams.
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

// escape inserts emulation prevention bytes the way an encoder would.
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
