package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/cmd/flowx/container"
	"github.com/flowx-dev/flowx/engine/pty"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SocketHandler serves the websocket endpoints.
type SocketHandler struct {
	c *container.Container
}

// NewSocketHandler creates a socket handler.
func NewSocketHandler(c *container.Container) *SocketHandler {
	return &SocketHandler{c: c}
}

// WorkflowSocket streams engine events to the client.
// GET /ws/workflow
func (h *SocketHandler) WorkflowSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := h.c.Hub.Subscribe()
	defer h.c.Hub.Unsubscribe(sub)

	// Read pump: we never expect client frames here, but reading is how
	// we learn the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

// terminalFrame is a structured client frame on the terminal socket.
type terminalFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// TerminalSocket attaches the client to an interactive PTY session.
// Client frames are raw keystroke bytes or JSON {type:"input"|"resize"}.
// GET /ws/terminal
func (h *SocketHandler) TerminalSocket(c echo.Context) error {
	rows := parseDim(c.QueryParam("rows"), 24)
	cols := parseDim(c.QueryParam("cols"), 80)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := pty.StartSession(rows, cols)
	if err != nil {
		h.c.Components.Logger.Error("failed to start terminal session", "error", err)
		conn.WriteMessage(websocket.TextMessage, []byte("failed to start terminal session\r\n"))
		return nil
	}
	defer session.Terminate()

	// Terminal → client.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := session.Read(buf)
			if n > 0 {
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				conn.Close()
				return
			}
		}
	}()

	// Client → terminal.
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		if msgType == websocket.BinaryMessage {
			if err := session.Write(payload); err != nil {
				return nil
			}
			continue
		}

		var frame terminalFrame
		if json.Unmarshal(payload, &frame) != nil {
			// Not JSON: treat text as keystrokes too.
			if err := session.Write(payload); err != nil {
				return nil
			}
			continue
		}

		switch frame.Type {
		case "input":
			if err := session.Write([]byte(frame.Data)); err != nil {
				return nil
			}
		case "resize":
			if frame.Rows > 0 && frame.Cols > 0 {
				session.Resize(frame.Rows, frame.Cols)
			}
		}
	}
}

// KeepAlive holds the connection open and discards client frames.
// GET /ws
func (h *SocketHandler) KeepAlive(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func parseDim(raw string, fallback uint16) uint16 {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > 1000 {
		return fallback
	}
	return uint16(v)
}
