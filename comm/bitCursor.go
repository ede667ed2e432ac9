package comm

// BitCursor reads a NAL unit as an MSB-first bit stream.
// Emulation prevention bytes (the 0x03 in a raw 00 00 03 sequence) are dropped
// while fetching, so callers only ever see RBSP bits.
//
// A BitCursor is owned by a single parse call and is not safe for concurrent use.
type BitCursor struct {
	buf []byte
	pos int // next raw byte to fetch

	cur      byte // last delivered byte
	bitsLeft uint // unread bits in cur

	// delivered 0x00 bytes in a row since the last removed escape byte
	zeroRun int

	strict    bool
	exhausted bool

	consumed int
	removed  int
}

// NewBitCursor returns a lenient cursor: reads past the end of buf yield zero bits.
func NewBitCursor(buf []byte) *BitCursor {
	return &BitCursor{buf: buf}
}

// NewStrictBitCursor returns a cursor that fails with ErrBufferExhausted instead of zero-filling.
func NewStrictBitCursor(buf []byte) *BitCursor {
	return &BitCursor{buf: buf, strict: true}
}

func (c *BitCursor) rawByte() (byte, error) {
	if c.pos >= len(c.buf) {
		c.exhausted = true
		if c.strict {
			return 0, ErrBufferExhausted
		}
		return 0, nil
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// fetch loads the next RBSP byte into cur.
// The zero run restarts after a removed 03, so 00 00 03 00 03 keeps its
// second 03. A plain scan for the 00 00 03 pattern would drop it.
func (c *BitCursor) fetch() error {
	b, err := c.rawByte()
	if err != nil {
		return err
	}
	if b == 0x03 && c.zeroRun >= 2 {
		c.removed++
		c.zeroRun = 0
		if b, err = c.rawByte(); err != nil {
			return err
		}
	}
	if b == 0x00 {
		c.zeroRun++
	} else {
		c.zeroRun = 0
	}
	c.cur = b
	c.bitsLeft = 8
	return nil
}

// ReadBits consumes n bits (1..32) and returns them MSB first.
func (c *BitCursor) ReadBits(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, ErrInvalidBitCount
	}
	var v uint64
	for want := uint(n); want > 0; {
		if c.bitsLeft == 0 {
			if err := c.fetch(); err != nil {
				return 0, err
			}
		}
		take := min(want, c.bitsLeft)
		shift := c.bitsLeft - take
		v = v<<take | uint64(c.cur>>shift)&(1<<take-1)
		c.bitsLeft -= take
		want -= take
		c.consumed += int(take)
	}
	return uint32(v), nil
}

// SkipBits discards n bits. n may exceed 32.
func (c *BitCursor) SkipBits(n int) error {
	for n > 0 {
		chunk := min(n, 32)
		if _, err := c.ReadBits(chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func (c *BitCursor) ReadBit() (uint32, error) {
	return c.ReadBits(1)
}

// ReadFlag reads a single bit as a bool.
func (c *BitCursor) ReadFlag() (bool, error) {
	b, err := c.ReadBits(1)
	return b == 1, err
}

// Exhausted reports whether any read went past the end of the input.
func (c *BitCursor) Exhausted() bool {
	return c.exhausted
}

// BitsConsumed is the number of RBSP bits handed out so far.
func (c *BitCursor) BitsConsumed() int {
	return c.consumed
}

// EmulationBytesRemoved counts the escape bytes dropped so far.
func (c *BitCursor) EmulationBytesRemoved() int {
	return c.removed
}
