package sagent

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"hevcprobe/sdriver"
	"hevcprobe/streamAgent/webrtcHelper"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// Agent moves one driver's H.265 stream onto a WebRTC video track and feeds
// the browser's keyframe requests back to the driver.
type Agent struct {
	sync.RWMutex
	VideoTrack *webrtc.TrackLocalStaticSample
	driver     sdriver.SDriver
	config     AgentConfig

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	peerConnection *webrtc.PeerConnection
	// RTCP from the browser arrives here
	rtpSenderVideo *webrtc.RTPSender

	videoCh <-chan sdriver.AVBox
	eventCh <-chan sdriver.Event

	baseTime        time.Time
	lastVideoPTS    time.Duration
	haveVideoPTS    bool
	defaultDuration time.Duration
	lastIDRRequest  time.Time

	closeOnce sync.Once
}

// NewAgent needs a driver that already knows its SPS, because the track's
// fmtp line is derived from the profile, tier and level.
func NewAgent(driver sdriver.SDriver, config AgentConfig, lf logging.LoggerFactory) (*Agent, error) {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	meta := driver.MediaMeta()
	if meta.CodecString == "" {
		return nil, ErrNoMediaMeta
	}
	if config.IDRInterval <= 0 {
		config.IDRInterval = defaultIDRInterval
	}

	sa := &Agent{
		driver:          driver,
		config:          config,
		loggerFactory:   lf,
		log:             lf.NewLogger("sagent"),
		defaultDuration: time.Second / 30,
	}
	if meta.FPS > 0 {
		sa.defaultDuration = time.Second / time.Duration(meta.FPS)
	}
	sa.videoCh, sa.eventCh = driver.GetReceivers()

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH265,
			ClockRate:   90000,
			SDPFmtpLine: meta.FmtpLine,
		},
		"video-track-id",
		generateStreamID(),
	)
	if err != nil {
		return nil, fmt.Errorf("sagent: create track: %w", err)
	}
	sa.VideoTrack = videoTrack
	sa.log.Infof("track ready: %s %dx%d fmtp %q", meta.CodecString, meta.Width, meta.Height, meta.FmtpLine)
	return sa, nil
}

// CreateWebRTCConnection answers the browser's offer. It can be called once per agent.
func (sa *Agent) CreateWebRTCConnection(offer string) (string, error) {
	sa.Lock()
	defer sa.Unlock()
	if sa.peerConnection != nil {
		return "", ErrAlreadyConnected
	}
	finalSDP, pc, sender, err := webrtcHelper.HandleSDP(offer, sa.VideoTrack, webrtcHelper.Options{
		ICEServers:    sa.config.ICEServers,
		BandwidthKbps: sa.config.BandwidthKbps,
		LoggerFactory: sa.loggerFactory,
	})
	if err != nil {
		return "", err
	}
	sa.peerConnection = pc
	sa.rtpSenderVideo = sender
	go sa.HandleRTCP(sender)
	return finalSDP, nil
}

func (sa *Agent) GetMediaMeta() sdriver.MediaMeta {
	return sa.driver.MediaMeta()
}

func (sa *Agent) Capabilities() sdriver.DriverCaps {
	return sa.driver.Capabilities()
}

// RequestKeyFrame forwards a keyframe request unless one went out within
// the configured interval. It reports whether the driver was asked.
func (sa *Agent) RequestKeyFrame() bool {
	return sa.requestKeyFrame(time.Now())
}

func (sa *Agent) requestKeyFrame(now time.Time) bool {
	sa.Lock()
	if !sa.lastIDRRequest.IsZero() && now.Sub(sa.lastIDRRequest) < sa.config.IDRInterval {
		sa.Unlock()
		return false
	}
	sa.lastIDRRequest = now
	sa.Unlock()
	sa.driver.RequestIDR()
	return true
}

// Close stops the driver and tears down the peer connection. Safe to call twice.
func (sa *Agent) Close() {
	sa.closeOnce.Do(func() {
		sa.driver.Stop()
		sa.RLock()
		pc := sa.peerConnection
		sa.RUnlock()
		if pc != nil {
			if err := pc.Close(); err != nil {
				sa.log.Warnf("close peer connection: %v", err)
			}
		}
	})
}

func generateStreamID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "hevcprobe-stream"
	}
	return fmt.Sprintf("hevcprobe-%x", b)
}
