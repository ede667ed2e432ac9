package comm

import (
	"bufio"
	"net"
	"time"
)

// BufferedReadWriteCloser puts a read buffer in front of an ingest connection.
// Annex-B readers pull a few bytes at a time, so unbuffered reads would cost a syscall each.
type BufferedReadWriteCloser struct {
	net.Conn
	br *bufio.Reader

	idleTimeout time.Duration
	openUntil   time.Time
}

func NewBufferedReadWriteCloser(conn net.Conn, size int) *BufferedReadWriteCloser {
	return &BufferedReadWriteCloser{
		Conn: conn,
		br:   bufio.NewReaderSize(conn, size),
	}
}

// SetIdleTimeout makes every Read fail once the peer has been silent for d. Zero disables it.
func (b *BufferedReadWriteCloser) SetIdleTimeout(d time.Duration) {
	b.idleTimeout = d
}

// SetOpenDeadline bounds every Read at t regardless of the idle timeout,
// until it is cleared with the zero time.
func (b *BufferedReadWriteCloser) SetOpenDeadline(t time.Time) error {
	b.openUntil = t
	return b.Conn.SetReadDeadline(b.readDeadline())
}

func (b *BufferedReadWriteCloser) readDeadline() time.Time {
	var d time.Time
	if b.idleTimeout > 0 {
		d = time.Now().Add(b.idleTimeout)
	}
	if !b.openUntil.IsZero() && (d.IsZero() || b.openUntil.Before(d)) {
		d = b.openUntil
	}
	return d
}

func (b *BufferedReadWriteCloser) Read(p []byte) (int, error) {
	if b.br.Buffered() == 0 {
		if d := b.readDeadline(); !d.IsZero() {
			if err := b.Conn.SetReadDeadline(d); err != nil {
				return 0, err
			}
		}
	}
	return b.br.Read(p)
}

// Peek returns the next n bytes without consuming them.
func (b *BufferedReadWriteCloser) Peek(n int) ([]byte, error) {
	return b.br.Peek(n)
}
