package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/logger"
)

const (
	dialWait    = 10 * time.Second // websocket handshake budget
	readyWait   = 10 * time.Second // server ack after the auth frame
	sendWait    = 10 * time.Second // per-frame write budget
	serverQuiet = 75 * time.Second // server pings well inside this window
	tokenLead   = 45 * time.Second // rotate this long before token expiry
)

// Frame types on the event socket, mirroring the server.
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

// Syncer is the part of the collection synchronizer the channel
// drives: reconciliation when the server reports a change, and a
// transient notice when the channel itself has trouble.
type Syncer interface {
	ReconcileNotification(ctx context.Context) error
	Notify(text string, isErr bool)
}

// Channel keeps a WebSocket subscription to the user's change events.
// It reconnects with backoff for the life of the process; losing the
// channel never breaks anything, it only delays convergence until the
// next refetch.
type Channel struct {
	url     string
	session *Session
	sync    Syncer
	logger  logger.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewChannel(cfg *Config, sess *Session, sy Syncer, log logger.Logger) *Channel {
	c := &Channel{
		url:     cfg.EventsURL(),
		session: sess,
		sync:    sy,
		logger:  log,
	}
	// Token rotations from any part of the client re-authenticate the
	// live socket in place. With no socket it is a no-op.
	sess.OnRotate(func(accessToken string) {
		c.writeAuth(accessToken)
	})
	return c
}

// Start launches the subscription loop.
func (c *Channel) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.run(ctx)
	}()
}

// Stop tears the subscription down and waits for the loop to exit.
func (c *Channel) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Channel) run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // keep trying for the life of the process

	op := func() error {
		return c.serve(ctx, bo)
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("event channel down, will retry",
			logger.Error(err),
			logger.Duration("retry_in", next),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("event channel stopped", logger.Error(err))
		}
	}
}

// serve runs one connection: dial, authenticate, then pump events
// until the socket dies. Returning an error reconnects with backoff;
// backoff.Permanent stops the loop for good.
func (c *Channel) serve(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	tok, err := c.session.Token(ctx)
	if err != nil {
		if errors.Is(err, ErrSignedOut) {
			return backoff.Permanent(err)
		}
		return err
	}

	dialer := &websocket.Dialer{HandshakeTimeout: dialWait}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(sendWait))
	if err := conn.WriteJSON(wsFrame{Type: frameAuth, Token: tok}); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(readyWait))
	var ready wsFrame
	if err := conn.ReadJSON(&ready); err != nil {
		return fmt.Errorf("await ready frame: %w", err)
	}
	if ready.Type != frameReady {
		return fmt.Errorf("unexpected %q frame before ready", ready.Type)
	}

	bo.Reset()
	c.setConn(conn)
	defer c.setConn(nil)
	c.logger.Info("event channel connected")

	_ = conn.SetReadDeadline(time.Now().Add(serverQuiet))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(serverQuiet))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(sendWait))
	})

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Change events coalesce into at most one queued reconcile; every
	// reconcile is a full refetch, so one catch-up covers any burst.
	kick := make(chan struct{}, 1)
	go c.reconcileLoop(sctx, kick)

	errCh := make(chan error, 1)
	go func() {
		for {
			var f wsFrame
			if err := conn.ReadJSON(&f); err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(serverQuiet))
			if f.Type == frameEvent {
				select {
				case kick <- struct{}{}:
				default:
				}
			}
		}
	}()

	refresh := time.NewTimer(c.untilRotate())
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(sendWait))
			return backoff.Permanent(ctx.Err())

		case err := <-errCh:
			c.sync.Notify((&domain.ChannelError{Err: err}).Error(), true)
			return err

		case <-refresh.C:
			// Rotate before the server's expiry grace runs out. The
			// OnRotate hook sends the new auth frame.
			if err := c.session.ForceRefresh(ctx); err != nil {
				if errors.Is(err, ErrSignedOut) {
					return backoff.Permanent(err)
				}
				c.logger.Warn("token rotation failed", logger.Error(err))
				refresh.Reset(10 * time.Second)
				continue
			}
			refresh.Reset(c.untilRotate())
		}
	}
}

func (c *Channel) reconcileLoop(ctx context.Context, kick <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			if err := c.sync.ReconcileNotification(ctx); err != nil {
				c.logger.Warn("reconcile after change event failed", logger.Error(err))
			}
		}
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// writeAuth re-authenticates the live socket after a token rotation.
// No socket, nothing to do; the next dial authenticates fresh.
func (c *Channel) writeAuth(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(sendWait))
	if err := c.conn.WriteJSON(wsFrame{Type: frameAuth, Token: accessToken}); err != nil {
		c.logger.Warn("re-auth frame failed", logger.Error(err))
	}
}

func (c *Channel) untilRotate() time.Duration {
	g := c.session.Grant()
	if g == nil {
		return time.Second
	}
	d := time.Until(g.AccessExpiry) - tokenLead
	if d < time.Second {
		d = time.Second
	}
	return d
}
