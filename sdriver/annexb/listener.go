package annexb

import (
	"fmt"
	"net"
	"time"

	"hevcprobe/comm"
)

const (
	ingestBufferSize   = 64 * 1024
	defaultOpenTimeout = 10 * time.Second
)

// Listener accepts raw Annex B pushes, one stream per TCP connection.
type Listener struct {
	ln  net.Listener
	cfg Config
}

func Listen(addr string, cfg Config) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("annexb: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, cfg: cfg}, nil
}

// AcceptConn waits for the next publisher and wraps the connection without
// reading from it. Hand the result to OpenConn, usually on its own goroutine.
func (l *Listener) AcceptConn() (*comm.BufferedReadWriteCloser, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetReadBuffer(2 * 1024 * 1024)
	}
	bc := comm.NewBufferedReadWriteCloser(conn, ingestBufferSize)
	bc.SetIdleTimeout(l.cfg.IdleTimeout)
	return bc, nil
}

// OpenConn reads the publisher's first SPS within OpenTimeout and returns a
// live driver. On failure the connection is closed.
func (l *Listener) OpenConn(bc *comm.BufferedReadWriteCloser) (*Driver, error) {
	timeout := l.cfg.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	remote := bc.RemoteAddr()
	if err := bc.SetOpenDeadline(time.Now().Add(timeout)); err != nil {
		bc.Close()
		return nil, fmt.Errorf("annexb: %s: %w", remote, err)
	}

	// pacing a live source would only add latency
	cfg := l.cfg
	cfg.Pace = false
	cfg.Loop = false

	d, err := Open(bc, cfg)
	if err != nil {
		bc.Close()
		return nil, fmt.Errorf("annexb: %s: %w", remote, err)
	}
	if err := bc.SetOpenDeadline(time.Time{}); err != nil {
		d.Stop()
		return nil, fmt.Errorf("annexb: %s: %w", remote, err)
	}
	d.caps.Live = true
	d.log.Infof("ingest from %s: %+v", remote, d.MediaMeta())
	return d, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	return l.ln.Close()
}
