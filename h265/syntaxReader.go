package h265

import (
	"fmt"

	"hevcprobe/comm"
)

// syntaxReader wraps a BitCursor with a sticky error so the SPS grammar
// reads as a flat list of syntax elements. After the first failure every
// read returns zero and err names the element that failed.
type syntaxReader struct {
	c   *comm.BitCursor
	err error
}

func (r *syntaxReader) u(n int, name string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadBits(n)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func (r *syntaxReader) flag(name string) bool {
	return r.u(1, name) == 1
}

func (r *syntaxReader) skip(n int, name string) {
	if r.err != nil {
		return
	}
	if err := r.c.SkipBits(n); err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
}

func (r *syntaxReader) ue(name string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadUE()
	if err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}
