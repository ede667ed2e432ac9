package sagent

import (
	"errors"
	"time"
)

// Sources a session can stream from.
const (
	SOURCE_FILE = "file"
	SOURCE_TCP  = "tcp"
)

// minimum gap between two keyframe requests forwarded to the driver
const defaultIDRInterval = 2 * time.Second

var (
	ErrNoMediaMeta      = errors.New("sagent: driver has not seen an SPS yet")
	ErrAlreadyConnected = errors.New("sagent: peer connection already negotiated")
)

// AgentConfig is what a client sends to open a streaming session.
type AgentConfig struct {
	Source   string `json:"source"`
	FilePath string `json:"file_path"`
	Loop     bool   `json:"loop"`
	SDP      string `json:"sdp"`

	ICEServers    []string `json:"ice_servers"`
	BandwidthKbps int      `json:"bandwidth_kbps"`

	IDRInterval time.Duration `json:"-"`
}
