// ABOUTME: Dialers for the STOMP session: native WebSocket, fallback WebSocket and raw TCP
// ABOUTME: Each returns a byte stream carrying STOMP frames

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	gws "github.com/gorilla/websocket"
)

// StompSubprotocol is the WebSocket subprotocol offered for STOMP 1.2.
const StompSubprotocol = "v12.stomp"

// Endpoint paths relative to the broker base URL.
const (
	NativePath   = "/ws"
	FallbackPath = "/ws/sockjs/websocket"
)

const maxFrameSize = 1 << 20

// Mode selects a Dialer implementation.
type Mode string

const (
	ModeWebSocket Mode = "websocket"
	ModeFallback  Mode = "fallback"
	ModeTCP       Mode = "tcp"
)

// NewDialer builds the dialer for mode. For websocket modes base is a
// ws:// or wss:// base URL; for tcp it is host:port.
func NewDialer(mode Mode, base string, timeout time.Duration) (Dialer, error) {
	switch mode {
	case ModeWebSocket, "":
		return &WebSocketDialer{URL: strings.TrimRight(base, "/") + NativePath, HandshakeTimeout: timeout}, nil
	case ModeFallback:
		return &FallbackDialer{URL: strings.TrimRight(base, "/") + FallbackPath, HandshakeTimeout: timeout}, nil
	case ModeTCP:
		return &TCPDialer{Addr: base, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown transport mode %q", mode)
	}
}

// WebSocketDialer connects to the native WebSocket endpoint and sends the
// token as an X-Auth-Token handshake header.
type WebSocketDialer struct {
	URL              string
	HandshakeTimeout time.Duration
	HTTPClient       *http.Client
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, token string) (io.ReadWriteCloser, error) {
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	if token != "" {
		header.Set("X-Auth-Token", token)
	}

	c, _, err := cws.Dial(ctx, d.URL, &cws.DialOptions{
		HTTPClient:   d.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{StompSubprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.URL, err)
	}
	c.SetReadLimit(maxFrameSize)

	// The stream outlives the dial context; Close tears it down.
	return cws.NetConn(context.Background(), c, cws.MessageText), nil
}

// FallbackDialer connects to the fallback endpoint, passing the token both
// as a query parameter and as a header, for deployments whose proxies strip
// custom upgrade headers.
type FallbackDialer struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d *FallbackDialer) Dial(ctx context.Context, token string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse fallback url: %w", err)
	}
	header := http.Header{}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		header.Set("X-Auth-Token", token)
	}

	dialer := gws.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		Subprotocols:     []string{StompSubprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("fallback dial %s: %w", d.URL, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsStream{conn: conn}, nil
}

// wsStream adapts a gorilla connection to a byte stream. Each Write is sent
// as one text message; reads concatenate incoming messages.
type wsStream struct {
	conn *gws.Conn

	rmu    sync.Mutex
	reader io.Reader

	wmu sync.Mutex
}

func (s *wsStream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.conn.WriteMessage(gws.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// TCPDialer connects to a STOMP broker over plain TCP.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

// Dial implements Dialer. The token travels only in the STOMP CONNECT frame.
func (d *TCPDialer) Dial(ctx context.Context, _ string) (io.ReadWriteCloser, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", d.Addr, err)
	}
	return conn, nil
}
