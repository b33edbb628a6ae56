// Package connection owns the feed's WebSocket link.
//
// Client wraps a single gorilla/websocket connection with keepalive pings
// and a stale-connection watchdog. Session drives one Client at a time:
//   - Correlates subscribe, unsubscribe and snapshot commands by numeric id
//   - Forwards every other message to the Message Router
//   - Reconnects with exponential backoff and reports each disconnect
package connection
