package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lvdashuaibi/votely/config"
	"github.com/lvdashuaibi/votely/internal/model"
)

const (
	inboundJoinElection  = "join-election"
	inboundLeaveElection = "leave-election"
	inboundJoinAdminRoom = "join-admin-room"

	outboundJoined = "joined"
	outboundLeft   = "left"
	outboundError  = "error"

	maxFrameSize = 4096
)

// PrincipalFunc 从升级请求中解析身份，没有凭证时返回 nil, nil
type PrincipalFunc func(r *http.Request) (*model.User, error)

// Handler 处理 WebSocket 连接，连接上的房间操作都经过 Registry
type Handler struct {
	registry  *Registry
	principal PrincipalFunc
	cfg       config.RealtimeConfig
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(registry *Registry, principal PrincipalFunc, cfg config.RealtimeConfig, logger *zap.Logger) *Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Handler{
		registry:  registry,
		principal: principal,
		cfg:       cfg,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var user *model.User
	if h.principal != nil {
		u, err := h.principal(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		user = u
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败", zap.Error(err))
		return
	}

	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		user: user,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	h.logger.Debug("WebSocket连接已建立", zap.String("conn", c.id))

	go h.writePump(c)
	h.readPump(c)
}

// Conn 单个 WebSocket 连接
type Conn struct {
	id        string
	ws        *websocket.Conn
	user      *model.User
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (h *Handler) readPump(c *Conn) {
	defer func() {
		h.registry.RemoveAll(c.id)
		c.Close()
		h.logger.Debug("WebSocket连接已断开", zap.String("conn", c.id))
	}()

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})

	for {
		var in Frame
		if err := c.ws.ReadJSON(&in); err != nil {
			if isMalformedFrame(err) {
				h.reply(c, outboundError, map[string]string{"message": "malformed frame"})
				continue
			}
			return
		}
		h.handleFrame(c, in)
	}
}

// isMalformedFrame 帧内容不是合法的 Frame，连接本身没有问题
func isMalformedFrame(err error) bool {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	// 消息被截断时解码器返回 ErrUnexpectedEOF
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *Handler) handleFrame(c *Conn, in Frame) {
	var room string
	switch in.Event {
	case inboundJoinElection, inboundLeaveElection:
		var electionID string
		if err := json.Unmarshal(in.Data, &electionID); err != nil || electionID == "" {
			h.reply(c, outboundError, map[string]string{"message": "electionId is required"})
			return
		}
		room = ElectionRoom(electionID)
	case inboundJoinAdminRoom:
		room = AdminRoom
	default:
		h.reply(c, outboundError, map[string]string{"message": "unknown event: " + in.Event})
		return
	}

	if in.Event == inboundLeaveElection {
		h.registry.Leave(c.id, room)
		h.reply(c, outboundLeft, map[string]string{"room": room})
		return
	}

	if err := h.registry.Join(c, c.user, room); err != nil {
		h.reply(c, outboundError, map[string]string{"message": err.Error(), "room": room})
		return
	}
	h.reply(c, outboundJoined, map[string]string{"room": room})
}

func (h *Handler) reply(c *Conn, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}
	c.Send(frame)
}

func (h *Handler) writePump(c *Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
