// Package hub fans analyzed signals out to websocket clients.
//
// One goroutine (Hub.Run) owns the client set and each client has a single
// writer goroutine, so connections are never written concurrently.
package hub

// Message is one JSON payload queued for a client, sent as a text frame
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded JSON
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
