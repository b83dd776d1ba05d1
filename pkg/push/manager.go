package push

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codeready-toolchain/notifyd/pkg/metrics"
)

const (
	defaultAuthTimeout  = 15 * time.Second
	defaultIdleInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Client-visible handshake errors. The texts are part of the wire protocol,
// so they keep their original casing.
var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	errInvalidAuthFrame   = errors.New("Invalid authentication message")
	errAuthDisconnect     = errors.New("Client disconnected during authentication")
	errWrongPong          = errors.New("wrong pong payload")
)

// CredentialVerifier authenticates username/password pairs for sockets that
// do not present a pre-auth token.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, username, password string, forwardedFor []string) (string, error)
}

// ManagerConfig tunes the session state machine. Zero fields fall back to
// the protocol defaults; tests compress the timings.
type ManagerConfig struct {
	// AuthTimeout bounds the whole handshake: both credential frames plus
	// the verifier call.
	AuthTimeout time.Duration
	// IdleInterval is how long the sender waits for a fan-out message
	// before flushing held messages or probing with a ping.
	IdleInterval time.Duration
	// WriteTimeout bounds every socket write.
	WriteTimeout time.Duration
	// Debounce overrides the per-kind debounce intervals (nil = defaults).
	Debounce *DebounceIntervals
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = defaultAuthTimeout
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = defaultIdleInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Debounce == nil {
		d := DefaultDebounceIntervals()
		c.Debounce = &d
	}
	return c
}

// ConnectionManager drives authenticated WebSocket sessions: the credential
// handshake, admission into the fan-out index, the send/receive pumps with
// debouncing and ping liveness, and teardown.
type ConnectionManager struct {
	connections *ActiveConnections
	preAuth     *PreAuthCache
	verifier    CredentialVerifier
	metrics     *metrics.Metrics
	reset       *ResetBroadcast
	cfg         ManagerConfig
}

// NewConnectionManager wires the session state machine to its collaborators.
func NewConnectionManager(connections *ActiveConnections, preAuth *PreAuthCache, verifier CredentialVerifier, m *metrics.Metrics, reset *ResetBroadcast, cfg ManagerConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: connections,
		preAuth:     preAuth,
		verifier:    verifier,
		metrics:     m,
		reset:       reset,
		cfg:         cfg.withDefaults(),
	}
}

// Connections exposes the fan-out index for the dispatcher and tests.
func (m *ConnectionManager) Connections() *ActiveConnections {
	return m.connections
}

// HandleConnection runs one upgraded socket from handshake to close. It
// returns once the session has fully torn down; the caller owns nothing
// afterwards.
func (m *ConnectionManager) HandleConnection(ctx context.Context, conn *websocket.Conn, forwardedFor []string) {
	defer conn.Close()

	authCtx, cancel := context.WithTimeout(ctx, m.cfg.AuthTimeout)
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(m.cfg.AuthTimeout))

	userID, err := m.authenticate(authCtx, conn, forwardedFor)
	if err != nil {
		if isTimeoutError(err) {
			_ = m.writeText(conn, "Authentication timeout")
		} else {
			slog.Warn("websocket authentication failed", "error", err)
			_ = m.writeText(conn, "err: "+err.Error())
		}
		return
	}

	slog.Info("new websocket authenticated", "user_id", userID)
	if err := m.writeText(conn, "authenticated"); err != nil {
		return
	}

	sub, err := m.connections.Subscribe(userID)
	if err != nil {
		_ = m.writeText(conn, err.Error())
		return
	}

	// Admitted. From here on the connection gauge must balance exactly.
	m.metrics.ConnectionsTotal.Inc()
	m.metrics.ActiveConnections.Inc()

	connID := uuid.New().String()
	_ = conn.SetReadDeadline(time.Time{})

	// Every ping stores a fresh non-zero nonce here; the pong handler swaps
	// in 0 and verifies the echoed payload. A non-zero value at the next
	// ping means the previous one went unanswered.
	var expectPong atomic.Uint64
	conn.SetPongHandler(func(appData string) error {
		expected := expectPong.Swap(0)
		if !bytes.Equal([]byte(appData), encodeNonce(expected)) {
			return errWrongPong
		}
		return nil
	})

	done := make(chan struct{})
	defer func() {
		_ = conn.Close()
		<-done
		sub.Close()
		m.metrics.ActiveConnections.Dec()
		slog.Debug("websocket session closed", "connection_id", connID, "user_id", userID)
	}()

	go m.receivePump(conn, done, connID, userID)
	m.sendPump(conn, sub, done, connID, userID, &expectPong)
}

// authenticate reads the two credential frames and resolves a user: first
// the pre-auth cache (culled on every attempt), then the external verifier.
func (m *ConnectionManager) authenticate(ctx context.Context, conn *websocket.Conn, forwardedFor []string) (string, error) {
	username, err := readAuthFrame(conn)
	if err != nil {
		return "", err
	}
	password, err := readAuthFrame(conn)
	if err != nil {
		return "", err
	}

	if user, ok := m.preAuth.Consume(password); ok {
		slog.Debug("authenticated socket with pre-auth token", "user_id", user)
		return user, nil
	}

	if username == "" {
		return "", ErrInvalidCredentials
	}
	return m.verifier.VerifyCredentials(ctx, username, password, forwardedFor)
}

// sendPump owns all socket writes after the handshake. It relays fan-out
// messages through the debouncer and, when a 30s window passes without
// traffic, either flushes held messages or probes liveness with a ping.
// It returns when the write side fails, a ping goes unanswered, the reset
// broadcast fires, or the receive pump ends.
func (m *ConnectionManager) sendPump(conn *websocket.Conn, sub *Subscriber, done <-chan struct{}, connID, userID string, expectPong *atomic.Uint64) {
	debounce := NewDebounceMap(*m.cfg.Debounce)
	resetCh := m.reset.Watch()

	idle := time.NewTimer(m.cfg.IdleInterval)
	defer idle.Stop()

	for {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(m.cfg.IdleInterval)

		select {
		case msg := <-sub.Ch():
			if !debounce.ShouldSend(msg) {
				slog.Debug("debouncing message", "connection_id", connID, "user_id", userID, "message", msg.String())
				continue
			}
			if err := m.writeText(conn, msg.String()); err != nil {
				slog.Debug("websocket write failed", "connection_id", connID, "error", err)
				return
			}
			m.metrics.MessagesSent.Inc()

		case <-idle.C:
			if debounce.HasHeldMessages() {
				for _, msg := range debounce.DrainHeldMessages() {
					if !debounce.ShouldSend(msg) {
						continue
					}
					slog.Debug("sending debounced message", "connection_id", connID, "user_id", userID, "message", msg.String())
					if err := m.writeText(conn, msg.String()); err != nil {
						return
					}
					m.metrics.MessagesSent.Inc()
				}
				continue
			}

			nonce := randomNonce()
			if previous := expectPong.Swap(nonce); previous != 0 {
				slog.Info("client did not reply to ping, closing", "connection_id", connID, "user_id", userID)
				return
			}
			deadline := time.Now().Add(m.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, encodeNonce(nonce), deadline); err != nil {
				slog.Debug("websocket ping failed", "connection_id", connID, "error", err)
				return
			}

		case <-resetCh:
			deadline := time.Now().Add(m.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
			slog.Debug("connection closed by reset request", "connection_id", connID)
			return

		case <-done:
			return
		}
	}
}

// receivePump consumes inbound frames until the socket dies. Pongs are
// verified by the handler installed in HandleConnection; every other frame
// is ignored.
func (m *ConnectionManager) receivePump(conn *websocket.Conn, done chan<- struct{}, connID, userID string) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			switch {
			case errors.Is(err, errWrongPong):
				slog.Info("received wrong pong, closing", "connection_id", connID, "user_id", userID)
			case isBenignDisconnect(err):
				slog.Debug("websocket closed", "connection_id", connID, "error", err)
			default:
				slog.Warn("websocket error", "connection_id", connID, "error", err)
			}
			return
		}
	}
}

func (m *ConnectionManager) writeText(conn *websocket.Conn, text string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// readAuthFrame reads one text frame during the handshake.
func readAuthFrame(conn *websocket.Conn) (string, error) {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		if isTimeoutError(err) {
			return "", err
		}
		if isBenignDisconnect(err) {
			return "", errAuthDisconnect
		}
		return "", fmt.Errorf("Socket error during authentication: %w", err)
	}
	if messageType != websocket.TextMessage {
		return "", errInvalidAuthFrame
	}
	return string(data), nil
}

// randomNonce returns a non-zero nonce for the ping payload.
func randomNonce() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		if n := binary.LittleEndian.Uint64(b[:]); n != 0 {
			return n
		}
	}
}

// encodeNonce renders a nonce the way it travels in ping and pong payloads.
func encodeNonce(n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b[:]
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isBenignDisconnect separates the disconnect shapes every deployment sees
// daily (browser tab closed, laptop lid shut, proxy timeout) from errors
// worth warning about.
func isBenignDisconnect(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "connection reset by peer")
}
