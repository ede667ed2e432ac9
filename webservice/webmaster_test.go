package webservice

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sagent "hevcprobe/streamAgent"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 1280x720 Main profile SPS from x265.
var testSPS = []byte{
	0x42, 0x01, 0x01, 0x01, 0x60, 0x00, 0x00, 0x03, 0x00, 0x90, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03,
	0x00, 0x5d, 0xa0, 0x02, 0x80, 0x80, 0x2d, 0x16, 0x59, 0x59, 0xa4, 0x93, 0x2b, 0xc0, 0x5a, 0x70,
	0x80, 0x00, 0x01, 0xf4, 0x80, 0x00, 0x3a, 0x98, 0x04,
}

func testStream() []byte {
	var b []byte
	for _, nal := range [][]byte{
		{0x40, 0x01, 0x0c, 0x01, 0xff},
		testSPS,
		{0x44, 0x01, 0xc1, 0x72},
		{0x26, 0x01, 0xaf, 0x11, 0x22},
		{0x02, 0x01, 0x9a, 0x33},
	} {
		b = append(b, 0x00, 0x00, 0x00, 0x01)
		b = append(b, nal...)
	}
	return b
}

func newTestWebMaster(t *testing.T) *WebMaster {
	t.Helper()
	gin.SetMode(gin.TestMode)
	wm := New(WebMasterConfig{MediaDir: t.TempDir(), FPS: 30})
	t.Cleanup(wm.Close)
	return wm
}

func do(wm *WebMaster, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	wm.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	wm := newTestWebMaster(t)
	w := do(wm, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", w.Code, w.Body)
	}
}

func TestParseSPS(t *testing.T) {
	wm := newTestWebMaster(t)
	hexBody, _ := json.Marshal(map[string]string{"hex": hex.EncodeToString(testSPS)})
	annexB := append([]byte{0x00, 0x00, 0x00, 0x01}, testSPS...)

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"json hex", "application/json", hexBody},
		{"raw", "application/octet-stream", testSPS},
		{"start code", "application/octet-stream", annexB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(wm, http.MethodPost, "/api/sps/parse?strict=1", tt.contentType, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status %d: %s", w.Code, w.Body)
			}
			var resp SPSResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.CodecID != "hvc1.1.60.L93.90" || resp.Width != 1280 || resp.Height != 720 {
				t.Errorf("resp = %+v", resp)
			}
			if resp.ChromaFormatString != "4:2:0" || resp.Tier != "Main" || resp.Level != "3.1" {
				t.Errorf("resp = %+v", resp)
			}
			if resp.Warnings == nil || len(resp.Warnings) != 0 {
				t.Errorf("warnings = %v", resp.Warnings)
			}
		})
	}
}

func TestParseSPSErrors(t *testing.T) {
	wm := newTestWebMaster(t)

	w := do(wm, http.MethodPost, "/api/sps/parse", "application/json", []byte(`{"hex":"zz"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad hex: %d", w.Code)
	}
	w = do(wm, http.MethodPost, "/api/sps/parse", "application/octet-stream", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body: %d", w.Code)
	}
	w = do(wm, http.MethodPost, "/api/sps/parse", "application/octet-stream", []byte{0x40, 0x01, 0x0c})
	if w.Code != http.StatusBadRequest {
		t.Errorf("VPS: %d", w.Code)
	}

	huge, _ := json.Marshal(map[string]string{"hex": strings.Repeat("00", 2*maxSPSBody)})
	w = do(wm, http.MethodPost, "/api/sps/parse", "application/json", huge)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized json: %d", w.Code)
	}

	truncated := testSPS[:12]
	w = do(wm, http.MethodPost, "/api/sps/parse?strict=1", "application/octet-stream", truncated)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("strict truncated: %d %s", w.Code, w.Body)
	}
}

func TestProbeStream(t *testing.T) {
	wm := newTestWebMaster(t)
	stream := testStream()
	// a repeated SPS is only reported once
	stream = append(stream, 0x00, 0x00, 0x01)
	stream = append(stream, testSPS...)

	w := do(wm, http.MethodPost, "/api/stream/probe", "application/octet-stream", stream)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var resp ProbeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.NALCount != 6 || resp.Pictures != 2 || resp.KeyFrames != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.NALTypes["SPS_NUT"] != 2 || resp.NALTypes["IDR_W_RADL"] != 1 || resp.NALTypes["SLICE_1"] != 1 {
		t.Errorf("nal types = %v", resp.NALTypes)
	}
	if len(resp.SPS) != 1 || resp.SPS[0].Width != 1280 {
		t.Errorf("sps = %+v", resp.SPS)
	}

	w = do(wm, http.MethodPost, "/api/stream/probe", "application/octet-stream", []byte{0x01, 0x02})
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage: %d", w.Code)
	}
}

func TestListPeersEmpty(t *testing.T) {
	wm := newTestWebMaster(t)
	w := do(wm, http.MethodGet, "/api/peers", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"peers":[]`) {
		t.Errorf("got %d %s", w.Code, w.Body)
	}
}

func TestStreamWebSocketFileSource(t *testing.T) {
	wm := newTestWebMaster(t)
	if err := os.WriteFile(filepath.Join(wm.config.MediaDir, "clip.h265"), testStream(), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(wm.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(sagent.AgentConfig{Source: sagent.SOURCE_FILE, FilePath: "clip.h265"}); err != nil {
		t.Fatal(err)
	}
	var hello struct {
		SessionID string `json:"session_id"`
		MediaMeta struct {
			CodecString string `json:"codec_string"`
			Width       int    `json:"width"`
		} `json:"media_meta"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Error != "" || hello.SessionID == "" {
		t.Fatalf("hello = %+v", hello)
	}
	if hello.MediaMeta.CodecString != "hvc1.1.60.L93.90" || hello.MediaMeta.Width != 1280 {
		t.Errorf("media meta = %+v", hello.MediaMeta)
	}

	var ev sagent.EventMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "sps" || ev.MediaMeta == nil || ev.MediaMeta.Height != 720 {
		t.Errorf("event = %+v", ev)
	}

	w := do(wm, http.MethodGet, "/api/sessions", "", nil)
	if !strings.Contains(w.Body.String(), hello.SessionID) {
		t.Errorf("sessions = %s", w.Body)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("idr")); err != nil {
		t.Error(err)
	}
}

func TestStreamWebSocketRejectsBadSource(t *testing.T) {
	wm := newTestWebMaster(t)
	srv := httptest.NewServer(wm.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws"
	for _, cfg := range []sagent.AgentConfig{
		{Source: sagent.SOURCE_FILE, FilePath: "../etc/passwd"},
		{Source: sagent.SOURCE_FILE, FilePath: "missing.h265"},
		{Source: sagent.SOURCE_TCP},
		{Source: "camera"},
	} {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		conn.WriteJSON(cfg)
		var resp map[string]any
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("%+v: %v", cfg, err)
		}
		if resp["error"] == nil {
			t.Errorf("%+v: resp = %v", cfg, resp)
		}
		conn.Close()
	}
}

func TestCloseStopsServe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, name := range []string{"close while starting", "close before serve"} {
		t.Run(name, func(t *testing.T) {
			wm := New(WebMasterConfig{HTTPAddr: "127.0.0.1:0", MediaDir: t.TempDir()})
			done := make(chan error, 1)
			if name == "close before serve" {
				wm.Close()
				go func() { done <- wm.Serve() }()
			} else {
				go func() { done <- wm.Serve() }()
				wm.Close()
			}
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Serve = %v", err)
				}
			case <-time.After(3 * time.Second):
				wm.Close()
				t.Fatal("Serve still running after Close")
			}
		})
	}
}
