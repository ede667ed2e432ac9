package comm

import (
	"bytes"
	"errors"
	"testing"
)

func TestBitCursorReadBits(t *testing.T) {
	c := NewBitCursor([]byte{0xf3, 0xb3, 0x45, 0x60})
	steps := []struct {
		n    int
		want uint32
	}{
		{4, 0xf},
		{4, 0x3},
		{2, 0x2},
		{2, 0x3},
		{16, 0x3456},
		{4, 0x0},
	}
	for i, s := range steps {
		got, err := c.ReadBits(s.n)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Fatalf("step %d: ReadBits(%d) = %#x, want %#x", i, s.n, got, s.want)
		}
	}
	if c.BitsConsumed() != 32 {
		t.Errorf("BitsConsumed = %d, want 32", c.BitsConsumed())
	}
	if c.Exhausted() {
		t.Error("cursor reports exhausted before running past the end")
	}
}

func TestBitCursorFullWidth(t *testing.T) {
	c := NewBitCursor([]byte{0x01, 0xde, 0xad, 0xbe, 0xef})
	if _, err := c.ReadBits(8); err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadBits(32)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("ReadBits(32) = %#x", got)
	}
}

func TestBitCursorInvalidCount(t *testing.T) {
	c := NewBitCursor([]byte{0xff})
	for _, n := range []int{0, -1, 33} {
		if _, err := c.ReadBits(n); !errors.Is(err, ErrInvalidBitCount) {
			t.Errorf("ReadBits(%d) err = %v", n, err)
		}
	}
}

func TestEmulationPrevention(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    []byte
		removed int
	}{
		{"escaped 02", []byte{0x00, 0x00, 0x03, 0x02}, []byte{0x00, 0x00, 0x02}, 1},
		{"escaped 03", []byte{0x00, 0x00, 0x03, 0x03}, []byte{0x00, 0x00, 0x03}, 1},
		{"zero run restarts", []byte{0x00, 0x00, 0x03, 0x00, 0x03}, []byte{0x00, 0x00, 0x00, 0x03}, 1},
		{"two escapes", []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x00, 0x00, 0x01}, 2},
		{"single zero", []byte{0x00, 0x03, 0x00}, []byte{0x00, 0x03, 0x00}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewStrictBitCursor(tt.in)
			var got []byte
			for range tt.want {
				b, err := c.ReadBits(8)
				if err != nil {
					t.Fatalf("after %x: %v", got, err)
				}
				got = append(got, byte(b))
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got %x, want %x", got, tt.want)
			}
			if c.EmulationBytesRemoved() != tt.removed {
				t.Errorf("removed = %d, want %d", c.EmulationBytesRemoved(), tt.removed)
			}
		})
	}
}

func TestBitCursorStrictExhausted(t *testing.T) {
	c := NewStrictBitCursor([]byte{0xab})
	if _, err := c.ReadBits(4); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadBits(8); !errors.Is(err, ErrBufferExhausted) {
		t.Fatalf("err = %v, want ErrBufferExhausted", err)
	}
	if !c.Exhausted() {
		t.Error("Exhausted() = false")
	}
}

func TestBitCursorLenientZeroFill(t *testing.T) {
	c := NewBitCursor([]byte{0xff})
	got, err := c.ReadBits(16)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xff00 {
		t.Fatalf("got %#x, want 0xff00", got)
	}
	if !c.Exhausted() {
		t.Error("Exhausted() = false after zero fill")
	}
}

func TestBitCursorSkipBits(t *testing.T) {
	c := NewStrictBitCursor([]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	if err := c.SkipBits(44); err != nil {
		t.Fatal(err)
	}
	got, err := c.ReadBits(12)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x566 {
		t.Fatalf("got %#x, want 0x566", got)
	}
	if err := c.SkipBits(0); err != nil {
		t.Fatal(err)
	}
	if err := c.SkipBits(17); !errors.Is(err, ErrBufferExhausted) {
		t.Fatalf("err = %v", err)
	}
}

func TestReadFlag(t *testing.T) {
	c := NewBitCursor([]byte{0x80})
	if f, _ := c.ReadFlag(); !f {
		t.Fatal("first flag should be set")
	}
	if f, _ := c.ReadFlag(); f {
		t.Fatal("second flag should be clear")
	}
}
