// ABOUTME: STOMP session with automatic reconnect and durable subscriptions
// ABOUTME: Connection state is reported through callbacks; Connect never fails

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-stomp/stomp/v3"
	"github.com/google/uuid"
)

// Status is the connection state of a Session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

// Defaults applied when Options leave a field zero.
const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatIncoming = 10 * time.Second
	DefaultHeartbeatOutgoing = 10 * time.Second

	drainTimeout = 5 * time.Second
)

var (
	// ErrClosed is reported when an operation needs a session that was disconnected.
	ErrClosed = errors.New("transport closed")
	// ErrNotConnected is returned by Publish while no connection is up.
	ErrNotConnected = errors.New("transport not connected")
	// ErrConnectionLost is passed to OnError when an established connection drops.
	ErrConnectionLost = errors.New("connection lost")
)

// Dialer opens the byte stream a STOMP session runs over.
type Dialer interface {
	Dial(ctx context.Context, token string) (io.ReadWriteCloser, error)
}

// Handler receives the raw JSON body of a frame delivered on topic.
type Handler func(topic string, body []byte)

// Handle is a registered subscription.
type Handle interface {
	Topic() string
	Unsubscribe()
}

// Callbacks report session state. All are optional and are invoked from
// the session's connection goroutine.
type Callbacks struct {
	OnConnected func()
	OnError     func(error)
	OnStatus    func(Status)
}

// Options configure a Session.
type Options struct {
	Dialer            Dialer
	Host              string
	ReconnectDelay    time.Duration
	HeartbeatIncoming time.Duration
	HeartbeatOutgoing time.Duration
	Logger            *slog.Logger
	Callbacks         Callbacks
}

// Session is a reconnecting STOMP client.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	status  Status
	conn    *stomp.Conn
	lost    <-chan struct{}
	unwatch func() bool
	subs    map[string]*Subscription
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HeartbeatIncoming < 0 {
		opts.HeartbeatIncoming = 0
	} else if opts.HeartbeatIncoming == 0 {
		opts.HeartbeatIncoming = DefaultHeartbeatIncoming
	}
	if opts.HeartbeatOutgoing < 0 {
		opts.HeartbeatOutgoing = 0
	} else if opts.HeartbeatOutgoing == 0 {
		opts.HeartbeatOutgoing = DefaultHeartbeatOutgoing
	}
	if opts.Host == "" {
		opts.Host = "/"
	}
	return &Session{
		opts:   opts,
		logger: opts.Logger.With("component", "transport", "session_id", uuid.New().String()),
		status: StatusIdle,
		subs:   make(map[string]*Subscription),
	}
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect starts the connection loop with token. It returns immediately;
// calling it while the loop is running does nothing.
func (s *Session) Connect(token string) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		s.logger.Debug("connect ignored, session already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, token, done)
}

// Disconnect stops the connection loop, closes any live connection and
// waits for the loop to exit. Registered subscriptions are kept and will be
// re-established by a later Connect. Must not be called from a Handler or
// callback.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.setStatus(StatusIdle)
	s.logger.Info("disconnected")
}

func (s *Session) run(ctx context.Context, token string, done chan struct{}) {
	defer close(done)

	policy := backoff.NewConstantBackOff(s.opts.ReconnectDelay)
	for {
		s.setStatus(StatusConnecting)

		lost, err := s.connectOnce(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("connect failed", "error", err)
			s.setStatus(StatusError)
			s.notifyError(err)
		} else {
			select {
			case <-ctx.Done():
				s.dropConn()
				return
			case <-lost:
			}
			s.dropConn()
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("connection lost")
			s.setStatus(StatusError)
			s.notifyError(ErrConnectionLost)
		}

		delay := policy.NextBackOff()
		s.logger.Debug("reconnecting", "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectOnce dials, performs the STOMP handshake and attaches every
// registered subscription. The returned channel closes when the connection
// goes away.
func (s *Session) connectOnce(ctx context.Context, token string) (<-chan struct{}, error) {
	rwc, err := s.opts.Dialer.Dial(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	wc := newWatchedConn(rwc)
	stopAfter := context.AfterFunc(ctx, func() { _ = wc.Close() })

	conn, err := stomp.Connect(wc,
		stomp.ConnOpt.Host(s.opts.Host),
		stomp.ConnOpt.HeartBeat(s.opts.HeartbeatOutgoing, s.opts.HeartbeatIncoming),
		stomp.ConnOpt.Header("X-Auth-Token", token),
	)
	if err != nil {
		stopAfter()
		_ = wc.Close()
		return nil, fmt.Errorf("stomp handshake: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.lost = wc.lost
	s.unwatch = stopAfter
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.attach(conn, wc.lost)
	}

	s.logger.Info("connected", "subscriptions", len(subs))
	s.setStatus(StatusConnected)
	if cb := s.opts.Callbacks.OnConnected; cb != nil {
		cb()
	}
	return wc.lost, nil
}

func (s *Session) dropConn() {
	s.mu.Lock()
	conn, unwatch := s.conn, s.unwatch
	s.conn = nil
	s.lost = nil
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if conn != nil {
		_ = conn.MustDisconnect()
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()

	if changed {
		s.logger.Debug("status changed", "status", st)
		if cb := s.opts.Callbacks.OnStatus; cb != nil {
			cb(st)
		}
	}
}

func (s *Session) notifyError(err error) {
	if cb := s.opts.Callbacks.OnError; cb != nil {
		cb(err)
	}
}

// Subscribe registers handler for topic. The subscription is attached to
// the live connection, if any, and to every later one until Unsubscribe.
func (s *Session) Subscribe(topic string, handler Handler) Handle {
	sub := &Subscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		session: s,
		active:  true,
	}

	s.mu.Lock()
	s.subs[sub.id] = sub
	conn, lost := s.conn, s.lost
	s.mu.Unlock()

	if conn != nil {
		sub.attach(conn, lost)
	}
	s.logger.Debug("subscribed", "topic", topic, "sub_id", sub.id)
	return sub
}

// Subscriptions returns the number of registered subscriptions.
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Publish JSON-encodes payload and sends it to destination. Delivery is not
// confirmed. While disconnected the payload is dropped and ErrNotConnected
// returned.
func (s *Session) Publish(destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.logger.Warn("dropping publish while disconnected", "destination", destination)
		return ErrNotConnected
	}
	if err := conn.Send(destination, "application/json", body); err != nil {
		s.logger.Warn("publish failed", "destination", destination, "error", err)
		return fmt.Errorf("send to %s: %w", destination, err)
	}
	return nil
}

func (s *Session) remove(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Subscription is a topic registration on a Session.
type Subscription struct {
	id      string
	topic   string
	handler Handler
	session *Session

	mu     sync.Mutex
	active bool
	cur    *stomp.Subscription
}

// Topic returns the subscribed destination.
func (sub *Subscription) Topic() string { return sub.topic }

// Unsubscribe stops delivery. Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.mu.Lock()
	if !sub.active {
		sub.mu.Unlock()
		return
	}
	sub.active = false
	cur := sub.cur
	sub.cur = nil
	sub.mu.Unlock()

	sub.session.remove(sub.id)
	if cur != nil {
		// The library waits for the broker's receipt; never block the caller on it.
		go func() {
			if err := cur.Unsubscribe(); err != nil {
				sub.session.logger.Debug("unsubscribe failed", "topic", sub.topic, "error", err)
			}
		}()
	}
	sub.session.logger.Debug("unsubscribed", "topic", sub.topic, "sub_id", sub.id)
}

func (sub *Subscription) attach(conn *stomp.Conn, lost <-chan struct{}) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.active {
		return
	}

	ss, err := conn.Subscribe(sub.topic, stomp.AckAuto)
	if err != nil {
		sub.session.logger.Warn("subscribe failed", "topic", sub.topic, "error", err)
		return
	}
	sub.cur = ss
	go sub.pump(ss, lost)
}

func (sub *Subscription) pump(ss *stomp.Subscription, lost <-chan struct{}) {
	for {
		select {
		case <-lost:
			drain(ss.C, drainTimeout)
			return
		case msg, ok := <-ss.C:
			if !ok {
				return
			}
			if msg.Err != nil {
				sub.session.logger.Debug("subscription ended", "topic", sub.topic, "error", msg.Err)
				return
			}
			sub.deliver(msg.Body)
		}
	}
}

// drain discards what the library still pushes on a dead subscription so its
// reader goroutine can finish.
func drain(ch <-chan *stomp.Message, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func (sub *Subscription) deliver(body []byte) {
	sub.mu.Lock()
	active := sub.active
	sub.mu.Unlock()
	if !active {
		return
	}

	logger := sub.session.logger
	if !json.Valid(body) {
		logger.Warn("dropping malformed frame", "topic", sub.topic, "size", len(body))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "topic", sub.topic, "panic", r)
		}
	}()
	sub.handler(sub.topic, body)
}

// watchedConn closes lost on the first read error or Close.
type watchedConn struct {
	io.ReadWriteCloser
	once sync.Once
	lost chan struct{}
}

func newWatchedConn(rwc io.ReadWriteCloser) *watchedConn {
	return &watchedConn{ReadWriteCloser: rwc, lost: make(chan struct{})}
}

func (w *watchedConn) signal() {
	w.once.Do(func() { close(w.lost) })
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.ReadWriteCloser.Read(p)
	if err != nil {
		w.signal()
	}
	return n, err
}

func (w *watchedConn) Close() error {
	w.signal()
	return w.ReadWriteCloser.Close()
}
