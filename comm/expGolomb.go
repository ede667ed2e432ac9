package comm

import "fmt"

// maxLeadingZeros keeps (2^k - 1) + suffix inside a uint32.
const maxLeadingZeros = 31

// ReadUE decodes an unsigned Exp-Golomb code, ue(v).
func (c *BitCursor) ReadUE() (uint32, error) {
	k := 0
	for {
		bit, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		k++
		if k > maxLeadingZeros {
			// a lenient cursor reads zeros past the end, so the run may be truncation
			if c.exhausted {
				return 0, fmt.Errorf("%w: %w", ErrMalformedExpGolomb, ErrBufferExhausted)
			}
			return 0, fmt.Errorf("%w: more than %d leading zeros", ErrMalformedExpGolomb, maxLeadingZeros)
		}
	}
	if k == 0 {
		return 0, nil
	}
	suffix, err := c.ReadBits(k)
	if err != nil {
		return 0, err
	}
	return (1<<k - 1) + suffix, nil
}
