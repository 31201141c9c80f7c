package platforms

import "context"

const (
	Discord = "discord"
	Webhook = "webhook"
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the rendered form of one event. Data carries the raw event
// for adapters that forward structured payloads.
type Message struct {
	EventType   string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
	Data        any
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
