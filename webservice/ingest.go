package webservice

import (
	"errors"
	"net"

	"hevcprobe/comm"
	"hevcprobe/sdriver/annexb"
)

// acceptIngest hands every publisher to its own goroutine so a silent
// connection cannot hold up the ones behind it.
func (wm *WebMaster) acceptIngest(l *annexb.Listener) {
	for {
		conn, err := l.AcceptConn()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			wm.log.Warnf("ingest: %v", err)
			continue
		}
		go wm.openIngest(l, conn)
	}
}

// openIngest queues a publisher for the next "tcp" session once its SPS is
// known. When the queue is full the publisher is turned away.
func (wm *WebMaster) openIngest(l *annexb.Listener, conn *comm.BufferedReadWriteCloser) {
	d, err := l.OpenConn(conn)
	if err != nil {
		wm.log.Warnf("ingest: %v", err)
		return
	}
	select {
	case wm.pending <- d:
		wm.log.Infof("ingest: publisher queued, %s", d.MediaMeta().CodecString)
	default:
		wm.log.Warnf("ingest: %d publishers already waiting, dropping", cap(wm.pending))
		d.Stop()
		return
	}
	// Close may have drained the queue before this publisher arrived
	if wm.ctx.Err() != nil {
		wm.drainPending()
	}
}

func (wm *WebMaster) drainPending() {
	for {
		select {
		case d := <-wm.pending:
			d.Stop()
		default:
			return
		}
	}
}
