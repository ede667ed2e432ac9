package webservice

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"hevcprobe/sdriver"
	"hevcprobe/sdriver/annexb"
	sagent "hevcprobe/streamAgent"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const ingestWaitTimeout = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// GET /stream/ws
// The client sends an AgentConfig first; the server answers with the media
// description and SDP, then pushes driver events. A text "idr" requests a keyframe.
func (wm *WebMaster) handleStreamWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wm.log.Warnf("failed to upgrade to websocket: %v", err)
		return
	}
	config := sagent.AgentConfig{}
	if err := conn.ReadJSON(&config); err != nil {
		wm.log.Warnf("failed to read session config: %v", err)
		conn.Close()
		return
	}

	driver, err := wm.openDriver(config)
	if err != nil {
		wm.log.Warnf("open %s source: %v", config.Source, err)
		conn.WriteJSON(gin.H{"error": err.Error()})
		conn.Close()
		return
	}
	agent, err := sagent.NewAgent(driver, config, wm.config.LoggerFactory)
	if err != nil {
		driver.Stop()
		conn.WriteJSON(gin.H{"error": err.Error()})
		conn.Close()
		return
	}

	var finalSDP string
	if config.SDP != "" {
		finalSDP, err = agent.CreateWebRTCConnection(config.SDP)
		if err != nil {
			agent.Close()
			conn.WriteJSON(gin.H{"error": err.Error()})
			conn.Close()
			return
		}
	}

	session := &StreamSession{
		SessionID: generateSessionID(),
		Source:    config.Source,
		Started:   time.Now(),
		WSConn:    conn,
		Agent:     agent,
	}
	wm.sessionsMu.Lock()
	wm.sessions[session.SessionID] = session
	wm.sessionsMu.Unlock()
	wm.log.Infof("new session %s (%s)", session.SessionID, config.Source)

	err = session.WriteJSON(gin.H{
		"session_id":   session.SessionID,
		"media_meta":   agent.GetMediaMeta(),
		"capabilities": agent.Capabilities(),
		"sdp":          finalSDP,
	})
	if err != nil {
		wm.closeSession(session.SessionID)
		return
	}

	go agent.EventFeedback(func(msg []byte) bool {
		return session.WriteText(msg) == nil
	})
	go wm.listenStreamWS(session)
	agent.StartStreaming()
}

func (wm *WebMaster) listenStreamWS(session *StreamSession) {
	defer wm.closeSession(session.SessionID)
	for {
		mType, msg, err := session.WSConn.ReadMessage()
		if err != nil {
			wm.log.Debugf("session %s: websocket read: %v", session.SessionID, err)
			return
		}
		if mType != websocket.TextMessage {
			wm.log.Debugf("session %s: unsupported message type %d", session.SessionID, mType)
			continue
		}
		switch string(msg) {
		case "idr":
			session.Agent.RequestKeyFrame()
		default:
			wm.log.Debugf("session %s: unknown command %q", session.SessionID, msg)
		}
	}
}

func (wm *WebMaster) closeSession(id string) {
	wm.sessionsMu.Lock()
	session, ok := wm.sessions[id]
	delete(wm.sessions, id)
	wm.sessionsMu.Unlock()
	if ok {
		wm.log.Infof("closing session %s", id)
		session.Close()
	}
}

func (wm *WebMaster) openDriver(config sagent.AgentConfig) (sdriver.SDriver, error) {
	switch config.Source {
	case sagent.SOURCE_FILE:
		if !filepath.IsLocal(config.FilePath) {
			return nil, fmt.Errorf("file path %q is not inside the media directory", config.FilePath)
		}
		cfg := wm.driverConfig(true)
		cfg.Loop = config.Loop
		return annexb.OpenFile(filepath.Join(wm.config.MediaDir, config.FilePath), cfg)
	case sagent.SOURCE_TCP:
		wm.mu.Lock()
		ingest := wm.ingest
		wm.mu.Unlock()
		if ingest == nil {
			return nil, errors.New("TCP ingest is disabled")
		}
		select {
		case d := <-wm.pending:
			return d, nil
		case <-time.After(ingestWaitTimeout):
			return nil, errors.New("no publisher connected")
		case <-wm.ctx.Done():
			return nil, wm.ctx.Err()
		}
	default:
		return nil, fmt.Errorf("unsupported source: %q", config.Source)
	}
}

func generateSessionID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("s%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", b)
}
