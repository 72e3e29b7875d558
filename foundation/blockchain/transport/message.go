package transport

import (
	"fmt"
	"strings"
)

// Tag is the leading byte of a peer message identifying its kind.
type Tag uint8

// Set of peer message tags as they appear on the wire.
const (
	TagRPC        Tag = 1
	TagPing       Tag = 100
	TagPong       Tag = 101
	TagError      Tag = 200
	TagDisconnect Tag = 201
)

// ToTag maps the wire byte to a tag. Bytes that don't name a tag are
// rejected.
func ToTag(b byte) (Tag, error) {
	switch Tag(b) {
	case TagRPC, TagPing, TagPong, TagError, TagDisconnect:
		return Tag(b), nil
	}

	return 0, NewNetworkError(KindDecoding, "unknown peer message tag %d", b)
}

// String implements the fmt.Stringer interface.
func (t Tag) String() string {
	switch t {
	case TagRPC:
		return "RPC"
	case TagPing:
		return "PING"
	case TagPong:
		return "PONG"
	case TagError:
		return "ERROR"
	case TagDisconnect:
		return "DISCONNECT"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// =============================================================================

// Message is the envelope exchanged between peers. From is the address of
// the peer the message was received from and is not part of the wire form.
type Message struct {
	From    string
	Tag     Tag
	Payload []byte
}

// NewRPCMessage constructs a message carrying an encoded RPC.
func NewRPCMessage(from string, payload []byte) Message {
	return Message{From: from, Tag: TagRPC, Payload: payload}
}

// NewPingMessage constructs a heartbeat request.
func NewPingMessage(from string) Message {
	return Message{From: from, Tag: TagPing, Payload: []byte("PING")}
}

// NewPongMessage constructs a heartbeat response.
func NewPongMessage(from string) Message {
	return Message{From: from, Tag: TagPong}
}

// NewErrorMessage constructs a message reporting an error as text.
func NewErrorMessage(from string, text string) Message {
	return Message{From: from, Tag: TagError, Payload: []byte(text)}
}

// NewDisconnectMessage constructs a message telling the peer the
// connection is being closed.
func NewDisconnectMessage(from string, reason string) Message {
	return Message{From: from, Tag: TagDisconnect, Payload: []byte(reason)}
}

// DecodeMessage converts the wire form into a message. A message with an
// unknown tag is returned as an error message carrying the whole input as
// text.
func DecodeMessage(from string, data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, NewNetworkError(KindDecoding, "unable to get first byte from peer message decoding.")
	}

	tag, err := ToTag(data[0])
	if err != nil {
		return NewErrorMessage(from, strings.ToValidUTF8(string(data), "�")), nil
	}

	payload := make([]byte, len(data)-1)
	copy(payload, data[1:])

	return Message{From: from, Tag: tag, Payload: payload}, nil
}

// Bytes returns the wire form of the message, the tag followed by the
// payload.
func (m Message) Bytes() []byte {
	buf := make([]byte, 0, len(m.Payload)+1)
	buf = append(buf, byte(m.Tag))
	buf = append(buf, m.Payload...)

	return buf
}

// Text returns the payload of an error or disconnect message as text.
func (m Message) Text() string {
	return strings.ToValidUTF8(string(m.Payload), "�")
}

// String implements the fmt.Stringer interface for logging.
func (m Message) String() string {
	switch m.Tag {
	case TagError, TagDisconnect:
		return fmt.Sprintf("%s[%s]: %s", m.Tag, m.From, m.Text())
	}
	return fmt.Sprintf("%s[%s]: %d bytes", m.Tag, m.From, len(m.Payload))
}
