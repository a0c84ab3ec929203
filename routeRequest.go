package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/dpapathanasiou/go-recaptcha"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var (
	websocketUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	websockEmptyClosure = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
)

// wsSession serializes writes to one client connection.
type wsSession struct {
	lock sync.Mutex
	conn *websocket.Conn
}

type wsEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func (s *wsSession) send(event string, data interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()

	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("%+v\n", errors.WithStack(err))
		return
	}
	err = jsoniter.NewEncoder(w).Encode(&wsEvent{Event: event, Data: data})
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Printf("%+v\n", errors.WithStack(err))
	}
}

func (s *wsSession) Ready()            { s.send("ready", nil) }
func (s *wsSession) Start()            { s.send("start", nil) }
func (s *wsSession) Error(msg string)  { s.send("error", msg) }
func (s *wsSession) Reorder(order int) { s.send("waiting", order) }

func (s *wsSession) Succ(raw jsoniter.RawMessage) {
	s.send("complete", raw)
}

func remoteAddrOf(c *gin.Context) string {
	if v := c.GetHeader("X-Forwarded-For"); v != "" {
		return v
	}
	if v := c.GetHeader("X-Real-Ip"); v != "" {
		return v
	}
	remoteAddr := c.Request.RemoteAddr
	if idx := strings.IndexByte(remoteAddr, ':'); idx >= 0 {
		remoteAddr = remoteAddr[:idx]
	}
	return remoteAddr
}

func routeAnalysis(c *gin.Context) {
	ws, err := websocketUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		panic(err)
	}
	defer ws.Close()

	ctx, ctxCancel := context.WithCancel(c.Request.Context())
	defer ctxCancel()

	session := &wsSession{conn: ws}

	////////////////////////////////////////////////////////////////////////////////////////////////////

	if cfg.RecaptchaSecret != "" {
		ws.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			log.Printf("%+v\n", errors.WithStack(err))
			return
		}

		ok, err := recaptcha.Confirm(remoteAddrOf(c), string(msg))
		if err != nil || !ok {
			return
		}
	}

	session.Ready()

	var req RequestData
	ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	err = ws.ReadJSON(&req)
	if err != nil {
		log.Printf("%+v\n", errors.WithStack(err))
		return
	}
	ws.SetReadDeadline(time.Time{})

	go func() {
		for {
			_, r, err := ws.NextReader()
			if err != nil {
				ctxCancel()
				return
			}

			_, err = io.Copy(io.Discard, r)
			if err != nil && err != io.EOF {
				ctxCancel()
				return
			}
		}
	}()

	if !req.CheckOptionValidation() {
		session.Error("invalid request")
		return
	}

	////////////////////////////////////////////////////////////////////////////////////////////////////

	h := req.Hash()

	var raw jsoniter.RawMessage
	if csResults.Load(h, &raw) {
		session.Succ(raw)
	} else {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second))
					if err != nil {
						if err != websocket.ErrCloseSent {
							log.Printf("%+v\n", errors.WithStack(err))
						}
						ctxCancel()
						return
					}

				case <-ctx.Done():
					return
				}
			}
		}()

		q := &queueData{
			req:   req,
			ctx:   ctx,
			start: session.Start,
			progress: func(format string, args ...interface{}) {
				session.send("progress", fmt.Sprintf(format, args...))
			},
			reorder:  session.Reorder,
			chanResp: make(chan *queueResult, 1),
		}
		enqueue(q)

		select {
		case res := <-q.chanResp:
			if res.err != nil {
				session.Error(res.err.Error())
			} else {
				session.Succ(res.data)
			}

		case <-ctx.Done():
			return
		}
	}

	time.Sleep(time.Second)

	err = ws.WriteMessage(websocket.CloseMessage, websockEmptyClosure)
	if err != nil && err != websocket.ErrCloseSent {
		log.Printf("%+v\n", errors.WithStack(err))
	}
}
