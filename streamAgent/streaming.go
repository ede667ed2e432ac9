package sagent

import (
	"time"

	"hevcprobe/sdriver"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

func (sa *Agent) StartStreaming() {
	sa.Lock()
	sa.baseTime = time.Now()
	sa.Unlock()
	sa.driver.StartStreaming()
	go sa.StreamingVideo()
}

// StreamingVideo writes every box to the track until the driver closes its channel.
func (sa *Agent) StreamingVideo() {
	firstPTS := time.Duration(-1)
	for vBox := range sa.videoCh {
		if firstPTS == -1 {
			firstPTS = vBox.PTS
		}
		if err := sa.VideoTrack.WriteSample(sa.sampleFor(vBox, firstPTS)); err != nil {
			sa.log.Debugf("write sample: %v", err)
			return
		}
	}
	sa.log.Debugf("video stream ended")
}

func (sa *Agent) sampleFor(vBox sdriver.AVBox, firstPTS time.Duration) media.Sample {
	sa.RLock()
	timestamp := sa.baseTime.Add(vBox.PTS - firstPTS)
	sa.RUnlock()

	// parameter sets take no time on the RTP clock
	var duration time.Duration
	if !vBox.IsConfig {
		delta := vBox.PTS - sa.lastVideoPTS
		if !sa.haveVideoPTS || delta <= 0 {
			duration = sa.defaultDuration
		} else {
			duration = delta
		}
		sa.lastVideoPTS = vBox.PTS
		sa.haveVideoPTS = true
	}
	return media.Sample{
		Data:      vBox.Data,
		Duration:  duration,
		Timestamp: timestamp,
	}
}

// HandleRTCP drains RTCP from the video sender. PLI and FIR become keyframe requests.
func (sa *Agent) HandleRTCP(sender *webrtc.RTPSender) {
	rtcpBuf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(rtcpBuf)
		if err != nil {
			return
		}
		sa.handleRTCPPacket(rtcpBuf[:n], time.Now())
	}
}

func (sa *Agent) handleRTCPPacket(b []byte, now time.Time) int {
	packets, err := rtcp.Unmarshal(b)
	if err != nil {
		sa.log.Tracef("bad RTCP packet: %v", err)
		return 0
	}
	requested := 0
	for _, p := range packets {
		switch p.(type) {
		case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
			if sa.requestKeyFrame(now) {
				requested++
			}
		}
	}
	return requested
}
