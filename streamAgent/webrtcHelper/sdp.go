package webrtcHelper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// DefaultH265PayloadType matches what Chrome offers for H.265 Main.
const DefaultH265PayloadType = 49

var defaultICEServers = []string{"stun:stun.l.google.com:19302"}

type Options struct {
	ICEServers    []string // nil uses a public STUN server
	PayloadType   webrtc.PayloadType
	BandwidthKbps int // adds b=AS to the video section when > 0

	LoggerFactory logging.LoggerFactory
}

// HandleSDP answers a browser offer with vTrack attached. It waits for ICE
// gathering so the returned SDP needs no trickle ICE.
func HandleSDP(sdp string, vTrack *webrtc.TrackLocalStaticSample, opts Options) (string, *webrtc.PeerConnection, *webrtc.RTPSender, error) {
	if vTrack == nil {
		return "", nil, nil, errors.New("webrtc: no video track")
	}
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	}

	if opts.LoggerFactory == nil {
		opts.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	log := opts.LoggerFactory.NewLogger("webrtc-helper")

	m, err := CreateMediaEngine(vTrack.Codec().SDPFmtpLine, opts.PayloadType)
	if err != nil {
		return "", nil, nil, err
	}
	se := webrtc.SettingEngine{LoggerFactory: opts.LoggerFactory}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))

	iceURLs := opts.ICEServers
	if iceURLs == nil {
		iceURLs = defaultICEServers
	}
	config := webrtc.Configuration{}
	if len(iceURLs) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}

	peerConnection, err := api.NewPeerConnection(config)
	if err != nil {
		return "", nil, nil, fmt.Errorf("webrtc: new peer connection: %w", err)
	}
	fail := func(step string, err error) (string, *webrtc.PeerConnection, *webrtc.RTPSender, error) {
		peerConnection.Close()
		return "", nil, nil, fmt.Errorf("webrtc: %s: %w", step, err)
	}

	rtpSenderVideo, err := peerConnection.AddTrack(vTrack)
	if err != nil {
		return fail("add track", err)
	}
	if err := peerConnection.SetRemoteDescription(offer); err != nil {
		return fail("set remote description", err)
	}
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		return fail("create answer", err)
	}
	peerConnection.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Infof("connection state: %s", s)
		if s == webrtc.PeerConnectionStateFailed {
			peerConnection.Close()
		}
	})

	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)
	if err := peerConnection.SetLocalDescription(answer); err != nil {
		return fail("set local description", err)
	}
	<-gatherComplete

	finalSDP := peerConnection.LocalDescription().SDP
	if opts.BandwidthKbps > 0 {
		finalSDP = SetSDPBandwidth(finalSDP, opts.BandwidthKbps)
	}
	return finalSDP, peerConnection, rtpSenderVideo, nil
}

// CreateMediaEngine registers H.265 only, with the fmtp taken from the stream's SPS.
func CreateMediaEngine(fmtp string, pt webrtc.PayloadType) (*webrtc.MediaEngine, error) {
	if pt == 0 {
		pt = DefaultH265PayloadType
	}
	m := &webrtc.MediaEngine{}
	err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH265,
			ClockRate:   90000,
			SDPFmtpLine: fmtp,
			RTCPFeedback: []webrtc.RTCPFeedback{
				{Type: "nack", Parameter: ""},
				{Type: "nack", Parameter: "pli"},
				{Type: "ccm", Parameter: "fir"},
			},
		},
		PayloadType: pt,
	}, webrtc.RTPCodecTypeVideo)
	if err != nil {
		return nil, fmt.Errorf("webrtc: register H.265: %w", err)
	}
	return m, nil
}

// SetSDPBandwidth inserts b=AS:<kbps> after every video m-line.
func SetSDPBandwidth(sdp string, kbps int) string {
	lines := strings.Split(sdp, "\r\n")
	newLines := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		newLines = append(newLines, line)
		if strings.HasPrefix(line, "m=video") {
			newLines = append(newLines, fmt.Sprintf("b=AS:%d", kbps))
		}
	}
	return strings.Join(newLines, "\r\n")
}
