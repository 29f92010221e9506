package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
)

// Preview message types
const (
	MessageRender     = "render"
	MessageNormalize  = "normalize"
	MessagePing       = "ping"
	MessageDiagram    = "diagram"
	MessageDefinition = "definition"
	MessagePong       = "pong"
	MessageError      = "error"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// PreviewRequest is a message sent by the editor
type PreviewRequest struct {
	Type string `json:"type"`

	// ID is echoed back so the editor can match replies
	ID string `json:"id,omitempty"`

	// Document is a raw editor document for normalize
	Document json.RawMessage `json:"document,omitempty"`

	// Definition or Tasks are rendered by render
	Definition *models.WorkflowDefinition `json:"definition,omitempty"`
	Tasks      []models.Task              `json:"tasks,omitempty"`

	Direction  string                       `json:"direction,omitempty"`
	ShowStatus bool                         `json:"showStatus,omitempty"`
	Statuses   map[string]models.TaskStatus `json:"statuses,omitempty"`
}

// PreviewMessage is a reply sent to the editor
type PreviewMessage struct {
	Type       string                     `json:"type"`
	ID         string                     `json:"id,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
	Diagram    string                     `json:"diagram,omitempty"`
	Definition *models.WorkflowDefinition `json:"definition,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// previewConn serializes writes to one connection
type previewConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

// PreviewManager serves live normalize and render previews over websockets
type PreviewManager struct {
	upgrader websocket.Upgrader
	server   *Server
	logger   logging.Logger

	mu          sync.RWMutex
	connections map[*previewConn]time.Time
}

// NewPreviewManager creates a preview manager backed by server
func NewPreviewManager(server *Server, logger logging.Logger) *PreviewManager {
	return &PreviewManager{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		server:      server,
		logger:      logger,
		connections: make(map[*previewConn]time.Time),
	}
}

// HandleWebSocket upgrades the request and answers preview messages until
// the client disconnects
func (pm *PreviewManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := pm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		pm.logger.Warn("websocket upgrade failed", logging.F("error", err.Error()))
		return
	}

	pc := &previewConn{conn: conn, done: make(chan struct{})}
	pm.mu.Lock()
	pm.connections[pc] = time.Now()
	pm.mu.Unlock()

	go pm.pingRoutine(pc)
	defer pm.remove(pc)

	for {
		var req PreviewRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				pm.logger.Warn("websocket read failed", logging.F("error", err.Error()))
			}
			return
		}
		if err := pm.send(pc, pm.handleMessage(req)); err != nil {
			return
		}
	}
}

// handleMessage produces the reply for one request
func (pm *PreviewManager) handleMessage(req PreviewRequest) PreviewMessage {
	reply := PreviewMessage{ID: req.ID, Timestamp: time.Now()}

	switch req.Type {
	case MessagePing:
		reply.Type = MessagePong

	case MessageRender:
		tasks := req.Tasks
		if req.Definition != nil {
			tasks = req.Definition.Tasks
		}
		diagram, err := flowchart.Render(tasks, pm.server.renderOptions(req.Direction, req.ShowStatus, req.Statuses))
		if err != nil {
			return errorReply(reply, err)
		}
		reply.Type = MessageDiagram
		reply.Diagram = diagram

	case MessageNormalize:
		if len(req.Document) == 0 {
			reply.Type = MessageError
			reply.Error = "normalize requires a document"
			return reply
		}
		doc, err := pm.server.loader.ParseEditorDocument(req.Document, loader.FormatJSON)
		if err != nil {
			return errorReply(reply, err)
		}
		def, err := normalizer.NormalizeDocument(*doc, pm.server.catalog)
		if err != nil {
			return errorReply(reply, err)
		}
		diagram, err := flowchart.RenderDefinition(def, pm.server.renderOptions(req.Direction, false, nil))
		if err != nil {
			return errorReply(reply, err)
		}
		reply.Type = MessageDefinition
		reply.Definition = def
		reply.Diagram = diagram

	default:
		reply.Type = MessageError
		reply.Error = "unknown message type: " + req.Type
	}
	return reply
}

func errorReply(reply PreviewMessage, err error) PreviewMessage {
	reply.Type = MessageError
	reply.Error = err.Error()
	return reply
}

func (pm *PreviewManager) send(pc *previewConn, msg PreviewMessage) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	_ = pc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return pc.conn.WriteJSON(msg)
}

// pingRoutine keeps idle connections alive
func (pm *PreviewManager) pingRoutine(pc *previewConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pc.done:
			return
		case <-ticker.C:
			pc.mu.Lock()
			err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			pc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (pm *PreviewManager) remove(pc *previewConn) {
	pm.mu.Lock()
	_, ok := pm.connections[pc]
	delete(pm.connections, pc)
	pm.mu.Unlock()

	if ok {
		close(pc.done)
		pc.conn.Close()
	}
}

// CloseAll closes every open preview connection
func (pm *PreviewManager) CloseAll() {
	pm.mu.RLock()
	conns := make([]*previewConn, 0, len(pm.connections))
	for pc := range pm.connections {
		conns = append(conns, pc)
	}
	pm.mu.RUnlock()

	for _, pc := range conns {
		pm.remove(pc)
	}
}

// ConnectedClients returns the number of open preview connections
func (pm *PreviewManager) ConnectedClients() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.connections)
}
