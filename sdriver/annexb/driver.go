package annexb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"hevcprobe/h265"
	"hevcprobe/sdriver"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4/pkg/media/h265reader"
)

const defaultFPS = 30

type Config struct {
	FPS    int  // nominal frame rate used for PTS; 0 means 30
	Pace   bool // hold each picture for one frame interval (file playback)
	Loop   bool // restart from the beginning at EOF; needs a reopenable source
	Strict bool // strict SPS parsing, see h265.Options

	// ProbeLimit caps how far Open reads looking for the first SPS.
	ProbeLimit  int
	IdleTimeout time.Duration // TCP sources only
	// OpenTimeout bounds the wait for a TCP publisher's first SPS; 0 means 10s.
	OpenTimeout time.Duration

	Logger logging.LeveledLogger
}

func (c Config) fps() int {
	if c.FPS <= 0 {
		return defaultFPS
	}
	return c.FPS
}

// Driver implements sdriver.SDriver over an Annex B H.265 byte stream.
type Driver struct {
	src    io.ReadCloser
	reopen func() (io.ReadCloser, error)
	cfg    Config
	log    logging.LeveledLogger
	caps   sdriver.DriverCaps

	mu        sync.RWMutex
	mediaMeta sdriver.MediaMeta
	spsInfo   h265.SPSInfo
	running   bool
	closed    bool // receive channels closed
	stopOnce  sync.Once
	stopCh    chan struct{}

	videoCh chan sdriver.AVBox
	eventCh chan sdriver.Event

	keyFrameMutex sync.RWMutex // guards lastVPS, lastSPS, lastPPS
	lastVPS       []byte
	lastSPS       []byte
	lastPPS       []byte
}

// New wraps src without reading from it. MediaMeta stays empty until the
// first SPS goes through the streaming loop; use Open to learn it up front.
func New(src io.ReadCloser, cfg Config) *Driver {
	d := &Driver{
		src:     src,
		cfg:     cfg,
		log:     cfg.Logger,
		caps:    sdriver.DriverCaps{CanVideo: true, CanSeekIDR: true},
		stopCh:  make(chan struct{}),
		videoCh: make(chan sdriver.AVBox, 64),
		eventCh: make(chan sdriver.Event, 16),
	}
	if d.log == nil {
		d.log = logging.NewDefaultLoggerFactory().NewLogger("annexb")
	}
	return d
}

// Open reads src until the first complete SPS, parses it, and returns a
// driver that replays the consumed bytes before continuing with src.
func Open(src io.ReadCloser, cfg Config) (*Driver, error) {
	head, info, err := probeHead(src, cfg.ProbeLimit, h265.Options{Strict: cfg.Strict, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	d := New(&replayReadCloser{Reader: io.MultiReader(bytes.NewReader(head), src), Closer: src}, cfg)
	d.setSPS(info)
	return d, nil
}

// OpenFile opens an Annex B file for paced playback.
func OpenFile(path string, cfg Config) (*Driver, error) {
	if path == "" {
		return nil, errors.New("annexb: file path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := Open(f, cfg)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("annexb: %s: %w", path, err)
	}
	d.reopen = func() (io.ReadCloser, error) { return os.Open(path) }
	d.log.Infof("opened %s: %+v", path, d.MediaMeta())
	return d, nil
}

func (d *Driver) GetReceivers() (<-chan sdriver.AVBox, <-chan sdriver.Event) {
	return d.videoCh, d.eventCh
}

// StartStreaming starts the read loop. It runs at most once per driver.
func (d *Driver) StartStreaming() {
	d.mu.Lock()
	if d.running || d.closed {
		d.mu.Unlock()
		return
	}
	select {
	case <-d.stopCh:
		d.mu.Unlock()
		return
	default:
	}
	d.running = true
	d.mu.Unlock()
	go d.loop()
}

// RequestIDR re-sends the cached parameter sets so a new decoder can start
// at the next IRAP picture.
func (d *Driver) RequestIDR() {
	d.keyFrameMutex.RLock()
	sets := [][]byte{d.lastVPS, d.lastSPS, d.lastPPS}
	d.keyFrameMutex.RUnlock()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, ps := range sets {
		if len(ps) == 0 {
			continue
		}
		select {
		case d.videoCh <- sdriver.AVBox{Data: bytes.Clone(ps), IsConfig: true}:
		default:
		}
	}
}

func (d *Driver) Capabilities() sdriver.DriverCaps {
	return d.caps
}

func (d *Driver) MediaMeta() sdriver.MediaMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mediaMeta
}

// SPSInfo returns the most recently parsed SPS.
func (d *Driver) SPSInfo() h265.SPSInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spsInfo
}

// Stop ends the loop and closes the source, which also unblocks a pending read.
// The receive channels are closed once the loop has exited.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.mu.RLock()
		running, src := d.running, d.src
		d.mu.RUnlock()
		src.Close()
		if !running {
			d.closeReceivers()
		}
	})
}

func (d *Driver) closeReceivers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.closed = true
	close(d.videoCh)
	close(d.eventCh)
}

func (d *Driver) loop() {
	defer func() {
		d.src.Close()
		d.closeReceivers()
	}()

	frameDur := time.Second / time.Duration(d.cfg.fps())
	var ticker *time.Ticker
	if d.cfg.Pace {
		ticker = time.NewTicker(frameDur)
		defer ticker.Stop()
	}

	var pts time.Duration
	started := false
	for {
		r, err := h265reader.NewReader(d.src)
		if err != nil {
			d.log.Errorf("failed to create H.265 reader: %v", err)
			return
		}

		for {
			nal, err := r.NextNAL()
			if err == io.EOF {
				break
			}
			if err != nil {
				select {
				case <-d.stopCh:
				default:
					d.log.Warnf("read NAL: %v", err)
					d.emit(sdriver.TextMsgEvent{Msg: "stream read error: " + err.Error()})
				}
				return
			}
			data := nal.Data
			if len(data) < 2 {
				continue
			}

			select {
			case <-d.stopCh:
				return
			default:
			}

			nalType := h265.NALType(data)
			switch nalType {
			case h265.NALTypeVPS:
				d.keyFrameMutex.Lock()
				d.lastVPS = bytes.Clone(data)
				d.keyFrameMutex.Unlock()
			case h265.NALTypeSPS:
				d.handleSPS(data)
			case h265.NALTypePPS:
				d.keyFrameMutex.Lock()
				d.lastPPS = bytes.Clone(data)
				d.keyFrameMutex.Unlock()
			}

			if h265.FirstSliceInPicture(data) {
				if started {
					pts += frameDur
					if ticker != nil {
						select {
						case <-ticker.C:
						case <-d.stopCh:
							return
						}
					}
				}
				started = true
			}

			box := sdriver.AVBox{
				Data:       data,
				PTS:        pts,
				IsKeyFrame: h265.IsIRAP(nalType),
				IsConfig:   h265.IsParameterSet(nalType),
			}
			select {
			case d.videoCh <- box:
			case <-d.stopCh:
				return
			}
		}

		if !d.cfg.Loop || d.reopen == nil {
			d.log.Infof("end of stream after %v", pts)
			return
		}
		d.src.Close()
		src, err := d.reopen()
		if err != nil {
			d.log.Errorf("reopen: %v", err)
			return
		}
		d.mu.Lock()
		d.src = src
		d.mu.Unlock()
		select {
		case <-d.stopCh:
			return
		default:
		}
		// keep PTS monotonic across loops
		pts += frameDur
		started = false
		d.log.Debugf("looping stream")
	}
}

func (d *Driver) handleSPS(data []byte) {
	d.keyFrameMutex.Lock()
	same := bytes.Equal(d.lastSPS, data)
	if !same {
		d.lastSPS = bytes.Clone(data)
	}
	d.keyFrameMutex.Unlock()
	if same {
		return
	}

	info, err := h265.ParseSPSWithOptions(data, h265.Options{Strict: d.cfg.Strict, Logger: d.log})
	if err != nil {
		d.log.Warnf("parse SPS: %v", err)
		d.emit(sdriver.TextMsgEvent{Msg: "SPS parse error: " + err.Error()})
		return
	}
	meta := d.setSPS(info)
	for _, w := range info.Warnings {
		d.emit(sdriver.TextMsgEvent{Msg: "SPS warning: " + w.Error()})
	}
	d.emit(sdriver.SPSChangedEvent{Info: info, Meta: meta})
}

func (d *Driver) setSPS(info h265.SPSInfo) sdriver.MediaMeta {
	meta := sdriver.MediaMetaFromSPS(info, d.cfg.fps())
	d.mu.Lock()
	d.spsInfo = info
	d.mediaMeta = meta
	d.mu.Unlock()
	return meta
}

func (d *Driver) emit(e sdriver.Event) {
	select {
	case d.eventCh <- e:
	default:
		d.log.Debugf("event queue full, dropping %T", e)
	}
}

type replayReadCloser struct {
	io.Reader
	io.Closer
}
