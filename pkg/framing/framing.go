package framing

import (
	"bufio"
	"fmt"
	"io"
)

// Channel carries variable-length textual messages over a duplex byte
// stream. Messages are percent-encoded so the payload can never contain the
// newline delimiter, then terminated with a single '\n'. Bytes read past a
// delimiter stay buffered for the next Recv, so message boundaries survive
// any fragmentation pattern the transport produces.
type Channel struct {
	rw io.ReadWriteCloser
	br *bufio.Reader
}

// New wraps rw in a framing channel.
func New(rw io.ReadWriteCloser) *Channel {
	return &Channel{
		rw: rw,
		br: bufio.NewReader(rw),
	}
}

// Send frames and writes one message.
func (c *Channel) Send(msg string) error {
	return c.SendBytes([]byte(msg))
}

// SendBytes frames and writes one binary-safe message.
func (c *Channel) SendBytes(payload []byte) error {
	frame := append(Encode(payload), '\n')
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Recv blocks until one full message arrives and returns its decoded payload.
func (c *Channel) Recv() (string, error) {
	b, err := c.RecvBytes()
	return string(b), err
}

// RecvBytes blocks until one full message arrives.
func (c *Channel) RecvBytes() ([]byte, error) {
	line, err := c.br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	payload, err := Decode(line[:len(line)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return payload, nil
}

// Close closes the underlying stream.
func (c *Channel) Close() error {
	return c.rw.Close()
}
