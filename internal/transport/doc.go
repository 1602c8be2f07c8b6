// Package transport keeps a STOMP 1.2 session to the notification broker.
//
// A Session dials through a pluggable Dialer (native WebSocket, WebSocket
// fallback endpoint, or raw TCP), negotiates heart-beats in the CONNECT
// frame and re-dials on a fixed delay until Disconnect is called. Callers
// never see connection errors from Connect; they observe them through the
// OnStatus, OnConnected and OnError callbacks.
//
// Subscriptions outlive individual connections: every registered topic is
// subscribed again after a reconnect. Frames whose body is not valid JSON
// are logged and skipped without affecting the subscription.
package transport
