package webservice

import (
	"sync"
	"time"

	sagent "hevcprobe/streamAgent"

	"github.com/gorilla/websocket"
)

type StreamSession struct {
	SessionID string
	Source    string
	Started   time.Time
	WSConn    *websocket.Conn
	Agent     *sagent.Agent

	// gorilla connections allow one concurrent writer
	writeMu   sync.Mutex
	closeOnce sync.Once
}

type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Started   time.Time `json:"started"`
	Codec     string    `json:"codec"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

func (s *StreamSession) Info() SessionInfo {
	meta := s.Agent.GetMediaMeta()
	return SessionInfo{
		SessionID: s.SessionID,
		Source:    s.Source,
		Started:   s.Started,
		Codec:     meta.CodecString,
		Width:     meta.Width,
		Height:    meta.Height,
	}
}

func (s *StreamSession) WriteText(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.WSConn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.WSConn.WriteMessage(websocket.TextMessage, b)
}

func (s *StreamSession) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.WSConn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.WSConn.WriteJSON(v)
}

func (s *StreamSession) Close() {
	s.closeOnce.Do(func() {
		s.Agent.Close()
		s.writeMu.Lock()
		s.WSConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.WSConn.Close()
	})
}
