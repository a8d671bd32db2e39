package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Reads only detect the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcastWSMessage sends an event to every connected client. The lock is
// held for the writes since a connection allows one writer at a time.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{
		Type: messageType,
		Data: data,
	})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.SetWriteDeadline(time.Now().Add(s.wsWriteTimeout)); err != nil {
			s.log.Errorf("Failed to set WebSocket write deadline: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

// clientCount returns the number of connected websocket clients.
func (s *Server) clientCount() int {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	return len(s.wsClients)
}

func (s *Server) closeWSClients() {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	for conn := range s.wsClients {
		conn.SetWriteDeadline(time.Now().Add(s.wsWriteTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		delete(s.wsClients, conn)
	}
}
