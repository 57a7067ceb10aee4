package domain

// MessageBus routes events from the transport to the flow dispatcher and
// replies back to the transport.
type MessageBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	SendReply(r Reply)
	OnReply(handler func(Reply))
	Close()
}
