// Package mesh implements the length-framed "mesh/1" wire protocol
// described in spec §6: request/response messages carried as a sequence
// of binary frames over a stream connection. Grounded on
// _examples/original_source/mesh/transport/zmq.go's header/frame layout
// (request/response header tokens, optional context/data frames), adapted
// from ZeroMQ multipart messages to explicit length-prefixed TCP framing
// since this implementation has no message-queue socket layer to lean on.
package mesh

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version is the fixed protocol token carried in every header frame.
const Version = "mesh/1"

// Message is one wire message: either a request (Role "req", Address the
// textual address) or a response (Role "rep", Address the status name).
type Message struct {
	Role     string
	Address  string
	Mimetype string
	Context  map[string]string
	Data     []byte
}

func writeFrame(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeContext(ctx map[string]string) []byte {
	if len(ctx) == 0 {
		return nil
	}
	lines := make([]string, 0, len(ctx))
	for k, v := range ctx {
		lines = append(lines, k+": "+v)
	}
	return []byte(strings.Join(lines, "\n"))
}

func decodeContext(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	ctx := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		ctx[key] = strings.TrimSpace(value)
	}
	return ctx
}

// WriteMessage writes m as a header frame followed by an optional context
// frame and an optional data frame, per the frame layout in spec §6.
func WriteMessage(w io.Writer, role string, m Message) error {
	mimetype := m.Mimetype
	if mimetype == "" {
		mimetype = "none"
	}
	ctxBytes := encodeContext(m.Context)
	header := fmt.Sprintf("%s %s %s %s %d %d", Version, role, m.Address, mimetype, len(ctxBytes), len(m.Data))
	if err := writeFrame(w, []byte(header)); err != nil {
		return err
	}
	if len(ctxBytes) > 0 {
		if err := writeFrame(w, ctxBytes); err != nil {
			return err
		}
	}
	if len(m.Data) > 0 {
		if err := writeFrame(w, m.Data); err != nil {
			return err
		}
	}
	return nil
}

// ReadMessage reads one framed message, returning its role ("req" or
// "rep") and parsed Message.
func ReadMessage(r io.Reader) (role string, m *Message, err error) {
	headerBytes, err := readFrame(r)
	if err != nil {
		return "", nil, err
	}
	tokens := strings.Fields(string(headerBytes))
	if len(tokens) != 6 {
		return "", nil, fmt.Errorf("mesh: malformed header %q", headerBytes)
	}
	if tokens[0] != Version {
		return "", nil, fmt.Errorf("mesh: unsupported protocol version %q", tokens[0])
	}
	role = tokens[1]
	msg := &Message{Address: tokens[2], Mimetype: tokens[3]}

	contextLen, err := strconv.Atoi(tokens[4])
	if err != nil {
		return "", nil, fmt.Errorf("mesh: malformed context length: %w", err)
	}
	dataLen, err := strconv.Atoi(tokens[5])
	if err != nil {
		return "", nil, fmt.Errorf("mesh: malformed data length: %w", err)
	}

	if contextLen > 0 {
		ctxBytes, err := readFrame(r)
		if err != nil {
			return "", nil, err
		}
		msg.Context = decodeContext(ctxBytes)
	}
	if dataLen > 0 {
		data, err := readFrame(r)
		if err != nil {
			return "", nil, err
		}
		msg.Data = data
	}
	return role, msg, nil
}
