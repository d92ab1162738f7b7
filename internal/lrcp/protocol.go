// Package lrcp implements the Line-Reversal Protocol: a reliable ordered
// byte stream multiplexed over UDP datagrams, ported from
// _examples/original_source/7_line_reversal.c. Sessions are addressed by a
// decimal key; `/connect/`, `/data/`, `/ack/`, and `/close/` frames carry
// escape-encoded payloads; a background sweep retransmits unacknowledged
// data and expires idle sessions.
package lrcp

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDatagramSize is the wire limit from spec.md §4.3: any longer datagram
// is silently dropped.
const maxDatagramSize = 1000

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdData
	cmdAck
	cmdClose
)

type frame struct {
	kind cmdKind
	key  uint32
	pos  uint32  // data, ack
	data []byte  // data
}

// parseFrame decodes one inbound LRCP datagram. It returns ok=false for any
// datagram that spec.md §4.3 says to drop silently: oversized, malformed,
// or carrying an unescaped '/'.
func parseFrame(raw []byte) (frame, bool) {
	if len(raw) < 5 || len(raw) > maxDatagramSize || raw[0] != '/' {
		return frame{}, false
	}
	// Trim the single leading and trailing slash delimiting the message.
	body := raw[1:]
	if len(body) == 0 || body[len(body)-1] != '/' {
		return frame{}, false
	}
	body = body[:len(body)-1]

	parts := splitUnescaped(body, '/')
	if len(parts) < 2 {
		return frame{}, false
	}

	key, err := parseUint32(parts[1])
	if err != nil {
		return frame{}, false
	}

	switch string(parts[0]) {
	case "connect":
		if len(parts) != 2 {
			return frame{}, false
		}
		return frame{kind: cmdConnect, key: key}, true

	case "close":
		if len(parts) != 2 {
			return frame{}, false
		}
		return frame{kind: cmdClose, key: key}, true

	case "ack":
		if len(parts) != 3 {
			return frame{}, false
		}
		pos, err := parseUint32(parts[2])
		if err != nil {
			return frame{}, false
		}
		return frame{kind: cmdAck, key: key, pos: pos}, true

	case "data":
		if len(parts) != 4 {
			return frame{}, false
		}
		pos, err := parseUint32(parts[2])
		if err != nil {
			return frame{}, false
		}
		data, ok := unescape(parts[3])
		if !ok {
			return frame{}, false
		}
		return frame{kind: cmdData, key: key, pos: pos, data: data}, true

	default:
		return frame{}, false
	}
}

func parseUint32(b []byte) (uint32, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty integer")
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a digit: %q", c)
		}
	}
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// splitUnescaped splits on sep, treating `\/` and `\\` as escaped literals
// rather than delimiters — ported from split/split_all in the source,
// which instead splits first and unescapes per-field; this variant walks
// once so an escaped '/' inside the final (data) field never truncates it.
func splitUnescaped(body []byte, sep byte) [][]byte {
	var parts [][]byte
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			continue
		}
		if body[i] == sep {
			parts = append(parts, body[start:i])
			start = i + 1
		}
	}
	parts = append(parts, body[start:])
	return parts
}

// unescape decodes `\/`→`/` and `\\`→`\`, rejecting any unescaped '/' or an
// unrecognised escape — spec.md §4.3's "any data with an unescaped '/' is
// silently dropped".
func unescape(b []byte) ([]byte, bool) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '/':
			return nil, false
		case '\\':
			if i+1 >= len(b) {
				return nil, false
			}
			switch b[i+1] {
			case '/':
				out = append(out, '/')
			case '\\':
				out = append(out, '\\')
			default:
				return nil, false
			}
			i++
		default:
			out = append(out, b[i])
		}
	}
	return out, true
}

// escape encodes `/`→`\/` and `\`→`\\` for outbound data payloads.
func escape(b []byte) []byte {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch c {
		case '/':
			sb.WriteString(`\/`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteByte(c)
		}
	}
	return []byte(sb.String())
}

func connectAck(key, receivedAcked uint32) []byte {
	return []byte(fmt.Sprintf("/ack/%d/%d/", key, receivedAcked))
}

func dataAck(key, received uint32) []byte {
	return []byte(fmt.Sprintf("/ack/%d/%d/", key, received))
}

func dataFrame(key, pos uint32, payload []byte) []byte {
	return []byte(fmt.Sprintf("/data/%d/%d/%s/", key, pos, escape(payload)))
}

func closeFrame(key uint32) []byte {
	return []byte(fmt.Sprintf("/close/%d/", key))
}
