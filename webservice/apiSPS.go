package webservice

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"hevcprobe/h265"

	"github.com/gin-gonic/gin"
)

const (
	maxSPSBody   = 64 << 10
	maxProbeBody = 8 << 20
)

type SPSResponse struct {
	h265.SPSInfo
	ChromaFormatString string   `json:"chroma_format_string"`
	Tier               string   `json:"tier"`
	Level              string   `json:"level"`
	Warnings           []string `json:"warnings"`
}

func newSPSResponse(info h265.SPSInfo) SPSResponse {
	resp := SPSResponse{
		SPSInfo:            info,
		ChromaFormatString: info.ChromaFormat.String(),
		Tier:               info.PTL.Tier(),
		Level:              info.PTL.Level(),
		Warnings:           []string{},
	}
	for _, w := range info.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	return resp
}

func (wm *WebMaster) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /api/sps/parse
// Body is either {"hex": "..."} or the raw NAL unit. A leading start code is allowed.
func (wm *WebMaster) handleParseSPS(c *gin.Context) {
	nal, err := readSPSBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if bytes.HasPrefix(nal, []byte{0x00, 0x00, 0x01}) || bytes.HasPrefix(nal, []byte{0x00, 0x00, 0x00, 0x01}) {
		if nal, err = h265.FindSPS(nal); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h265.CheckSPS(nal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := h265.Options{
		Strict: isTrue(c.Query("strict")),
		Logger: wm.config.LoggerFactory.NewLogger("h265"),
	}
	info, err := h265.ParseSPSWithOptions(nal, opts)
	if err != nil {
		wm.log.Infof("parse SPS: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newSPSResponse(info))
}

func readSPSBody(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req struct {
			Hex string `json:"hex"`
		}
		// hex doubles the size, plus room for the envelope
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxSPSBody+1<<10)
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		clean := strings.NewReplacer(" ", "", "\n", "", ":", "").Replace(req.Hex)
		return hex.DecodeString(clean)
	}
	b, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSPSBody))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty body")
	}
	return b, nil
}

type ProbeResponse struct {
	NALCount  int            `json:"nal_count"`
	NALTypes  map[string]int `json:"nal_types"`
	Pictures  int            `json:"pictures"`
	KeyFrames int            `json:"key_frames"`
	SPS       []SPSResponse  `json:"sps"`
	Errors    []string       `json:"errors"`
}

// POST /api/stream/probe
// Body is an Annex B byte stream. Every distinct SPS in it is parsed.
func (wm *WebMaster) handleProbeStream(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxProbeBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	nals := h265.SplitAnnexB(body)
	if len(nals) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no NAL units found"})
		return
	}

	resp := ProbeResponse{
		NALTypes: make(map[string]int),
		SPS:      []SPSResponse{},
		Errors:   []string{},
	}
	opts := h265.Options{Strict: isTrue(c.Query("strict")), Logger: wm.config.LoggerFactory.NewLogger("h265")}
	var seen [][]byte
	for _, nal := range nals {
		t := h265.NALType(nal)
		resp.NALCount++
		resp.NALTypes[h265.NALTypeName(t)]++
		if h265.FirstSliceInPicture(nal) {
			resp.Pictures++
			if h265.IsIRAP(t) {
				resp.KeyFrames++
			}
		}
		if t != h265.NALTypeSPS || containsBytes(seen, nal) {
			continue
		}
		seen = append(seen, nal)
		info, err := h265.ParseSPSWithOptions(nal, opts)
		if err != nil {
			resp.Errors = append(resp.Errors, err.Error())
			continue
		}
		resp.SPS = append(resp.SPS, newSPSResponse(info))
	}
	c.JSON(http.StatusOK, resp)
}

func (wm *WebMaster) handleListSessions(c *gin.Context) {
	wm.sessionsMu.RLock()
	defer wm.sessionsMu.RUnlock()

	list := []SessionInfo{}
	for _, s := range wm.sessions {
		list = append(list, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func containsBytes(list [][]byte, b []byte) bool {
	for _, x := range list {
		if bytes.Equal(x, b) {
			return true
		}
	}
	return false
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}
