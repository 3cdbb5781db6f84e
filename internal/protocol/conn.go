package protocol

import (
	"io"
)

// WriteMessage encodes msg and writes it as one frame
func WriteMessage(w io.Writer, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame and decodes it as a server message
func ReadMessage(r io.Reader, maxSize int) (Message, error) {
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return DecodeMessage(payload)
}
