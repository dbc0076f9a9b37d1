package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/httpserver/mw"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/utils"
)

const (
	authWait    = 10 * time.Second // time allowed for the first auth frame
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingEvery   = 30 * time.Second // must stay well under pongWait
	expiryGrace = 30 * time.Second // slack past token expiry before the close
	maxFrame    = 4096
)

// Frame types on the event socket. The client sends auth frames, the
// server sends everything else.
const (
	frameAuth  = "auth"
	frameReady = "ready"
	frameEvent = "event"
)

type wsFrame struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	Op         string `json:"op,omitempty"`
	BookmarkID string `json:"bookmark_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The token is the credential here; there is no cookie for a
	// foreign origin to ride on.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Events upgrades to a WebSocket, authenticates the first frame, and
// streams the user's change events. The client may send fresh auth
// frames in place as its token rotates; if the token lapses instead,
// the server closes with a policy violation and the client re-dials.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied to the client.
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer utils.Close(conn)

		claims, ok := awaitAuth(d, conn)
		if !ok {
			return
		}
		mw.MarkUser(r.Context(), claims.UserID())

		events, cancel := d.Hub.Subscribe(claims.UserID())
		defer cancel()

		reauth := make(chan *auth.Claims, 1)
		done := make(chan struct{})
		go readFrames(d, conn, claims.UserID(), reauth, done)

		expiry := time.NewTimer(time.Until(claims.ExpiresAt.Add(expiryGrace)))
		defer expiry.Stop()
		ping := time.NewTicker(pingEvery)
		defer ping.Stop()

		for {
			select {
			case e := <-events:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(wsFrame{Type: frameEvent, Op: e.Op, BookmarkID: e.BookmarkID}); err != nil {
					return
				}

			case c := <-reauth:
				if !expiry.Stop() {
					select {
					case <-expiry.C:
					default:
					}
				}
				expiry.Reset(time.Until(c.ExpiresAt.Add(expiryGrace)))
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(wsFrame{Type: frameReady}); err != nil {
					return
				}

			case <-expiry.C:
				writeClose(conn, websocket.ClosePolicyViolation, "token expired")
				return

			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	}
}

// awaitAuth reads and verifies the opening auth frame, then acks it.
func awaitAuth(d deps.Deps, conn *websocket.Conn) (*auth.Claims, bool) {
	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(authWait))

	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		return nil, false
	}
	if f.Type != frameAuth {
		writeClose(conn, websocket.ClosePolicyViolation, "expected auth frame")
		return nil, false
	}

	claims, err := d.Tokens.Verify(f.Token)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "invalid token")
		return nil, false
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wsFrame{Type: frameReady}); err != nil {
		return nil, false
	}
	return claims, true
}

// readFrames pumps the connection for pongs and re-auth frames until
// the peer goes away. A re-auth must prove the same user; a socket
// never changes hands.
func readFrames(d deps.Deps, conn *websocket.Conn, userID string, reauth chan<- *auth.Claims, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if f.Type != frameAuth {
			continue
		}
		claims, err := d.Tokens.Verify(f.Token)
		if err != nil || claims.UserID() != userID {
			writeClose(conn, websocket.ClosePolicyViolation, "invalid token")
			return
		}
		select {
		case reauth <- claims:
		default:
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
