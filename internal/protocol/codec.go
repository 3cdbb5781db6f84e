package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat covers undecodable payloads and a missing type field
	ErrInvalidFormat = errors.New("invalid message format")
	// ErrUnknownType is returned for a well-formed message of an unknown type
	ErrUnknownType = errors.New("unknown message type")
)

// MissingFieldError reports a request without one of its required fields
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Field)
}

// Encode serializes msg as a JSON object with its type field set
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("message %s does not encode to an object", msg.MessageType())
	}

	typeField, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typeField) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(typeField)
	if rest := body[1:]; !bytes.Equal(rest, []byte("}")) {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// envelope splits a payload into raw fields and its message type
func envelope(payload []byte) (map[string]json.RawMessage, Type, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, "", ErrInvalidFormat
	}
	raw, ok := fields["type"]
	if !ok {
		return nil, "", ErrInvalidFormat
	}
	var t Type
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, "", ErrInvalidFormat
	}
	return fields, t, nil
}

// DecodeRequest parses a client payload into one of the request variants
func DecodeRequest(payload []byte) (Request, error) {
	fields, t, err := envelope(payload)
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeRegister:
		return decodeRequest[Register](payload, fields, "username", "password")
	case TypeLogin:
		return decodeRequest[Login](payload, fields, "username", "password")
	case TypeLogout:
		return decodeRequest[Logout](payload, fields, "username", "token")
	case TypeFindGame:
		return decodeRequest[FindGame](payload, fields, "username", "token")
	case TypeMove:
		return decodeRequest[Move](payload, fields, "username", "token", "game_id", "move")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func decodeRequest[T Request](payload []byte, fields map[string]json.RawMessage, required ...string) (Request, error) {
	for _, name := range required {
		raw, ok := fields[name]
		if !ok || bytes.Equal(raw, []byte("null")) {
			return nil, &MissingFieldError{Field: name}
		}
	}
	var req T
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return req, nil
}

var serverMessages = map[Type]func([]byte) (Message, error){
	TypeRegisterSuccess:      decodeMessage[RegisterSuccess],
	TypeRegisterFailed:       decodeMessage[RegisterFailed],
	TypeLoginSuccess:         decodeMessage[LoginSuccess],
	TypeLoginFailed:          decodeMessage[LoginFailed],
	TypeLogoutSuccess:        decodeMessage[LogoutSuccess],
	TypeGameStart:            decodeMessage[GameStart],
	TypeUpdate:               decodeMessage[Update],
	TypeGameEnd:              decodeMessage[GameEnd],
	TypeOpponentDisconnected: decodeMessage[OpponentDisconnected],
	TypeServerShutdown:       decodeMessage[ServerShutdown],
	TypeError:                decodeMessage[Error],
}

// DecodeMessage parses a server payload; used by clients
func DecodeMessage(payload []byte) (Message, error) {
	_, t, err := envelope(payload)
	if err != nil {
		return nil, err
	}
	decode, ok := serverMessages[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return decode(payload)
}

func decodeMessage[T Message](payload []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return msg, nil
}
