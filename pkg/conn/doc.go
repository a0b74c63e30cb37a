// Package conn implements the persistent WebSocket connection that
// multiplexes calls and server-pushed events.
//
// # Lifecycle
//
// A Conn moves through three states:
//
//	Connecting ──dial ok──▶ Active ──read/write/decode error──▶ Closed
//	     │                                                        ▲
//	     └──────────────────────dial error────────────────────────┘
//
// Calls made while connecting are queued and written once the connection
// is active. When the connection closes, every queued and pending call
// receives the closing error.
//
// # Correlation
//
// Each written request carries a 32-bit correlation id, unique among the
// calls pending on the connection. Responses may arrive in any order.
//
// # Idle notification
//
// The connection tracks which event streams are subscribed (see
// events.Tracker). When no call is queued or pending and no subscription
// is active, the OnUnused callback fires so the owner can close it.
package conn
