package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tailorjob/backend/internal/queue"
	"github.com/tailorjob/backend/internal/services"
	"github.com/tailorjob/backend/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsWriteWait  = 10 * time.Second
)

// Subscriber opens a pub/sub subscription on one channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) *redis.PubSub
}

type WSHandler struct {
	cvs      services.CVService
	jobs     services.JobService
	chat     services.ChatService
	sub      Subscriber
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewWSHandler(cvs services.CVService, jobs services.JobService, chat services.ChatService, sub Subscriber, allowedOrigins []string, log *logrus.Entry) *WSHandler {
	allow := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allow[o] = true
	}
	return &WSHandler{
		cvs:  cvs,
		jobs: jobs,
		chat: chat,
		sub:  sub,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allow[origin]
			},
		},
	}
}

type wsClientMsg struct {
	Type    string `json:"type"` // chat|ping
	Content string `json:"content"`
}

type wsErrorMsg struct {
	Type    string     `json:"type"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(typ int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(typ, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

func (w *wsConn) writeError(err error) {
	msg := wsErrorMsg{Type: "error", Code: utils.CodeInternal, Message: "internal error"}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg.Code, msg.Message = ae.Code, ae.Message
	}
	_ = w.writeJSON(msg)
}

// TailorWS streams tailoring progress and chat chunks for one CV/job pair.
// Clients may send {"type":"chat","content":"..."} to talk to the assistant.
func (h *WSHandler) TailorWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cvID, jobID := c.Param("cv_id"), c.Param("job_id")

	if _, err := h.cvs.Get(c.Request.Context(), userID, cvID); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.jobs.Get(c.Request.Context(), userID, jobID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := h.log.WithFields(logrus.Fields{"user_id": userID, "cv_id": cvID, "job_id": jobID})

	pubsub := h.sub.Subscribe(ctx, queue.TailorChannel(cvID, jobID))
	defer pubsub.Close()
	events := pubsub.Channel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.TailorWS", "invalid json", err))
				continue
			}
			switch msg.Type {
			case "ping":
				_ = wc.writeJSON(gin.H{"type": "pong"})
			case "chat":
				// replies stream back through the pub/sub channel
				go func(content string) {
					if _, err := h.chat.Send(ctx, userID, cvID, jobID, content); err != nil {
						log.WithError(err).Warn("ws chat failed")
						wc.writeError(err)
					}
				}(msg.Content)
			default:
				wc.writeError(utils.E(utils.CodeInvalidArgument, "WSHandler.TailorWS", "unknown message type", nil))
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-ticker.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case m, ok := <-events:
			if !ok {
				return
			}
			// payloads are JSON-encoded queue.Event values
			if err := wc.write(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
		}
	}
}
