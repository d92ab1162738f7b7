package server

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ReadUint8 reads a single big-endian byte.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read u8: %w", err)
	}
	return buf[0], nil
}

// ReadUint16 reads a big-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read u16: %w", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a big-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read u32: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadString reads a u8-length-prefixed byte string ("str8" in spec.md §4.2).
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint8(r)
	if err != nil {
		return "", fmt.Errorf("read str8 length: %w", err)
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read str8 body (len %d): %w", n, err)
		}
	}
	return string(buf), nil
}

// ReadUntil reads bytes from r up to and including endch, returning the
// bytes before the delimiter. It mirrors read_until from server.h, built on
// bufio.Reader instead of a byte-at-a-time syscall loop.
func ReadUntil(r *bufio.Reader, endch byte) (string, error) {
	line, err := r.ReadString(endch)
	if err != nil {
		return "", err
	}
	return line[:len(line)-1], nil
}

// PutUint16 encodes v big-endian into a fresh 2-byte slice.
func PutUint16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// PutUint32 encodes v big-endian into a fresh 4-byte slice.
func PutUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

// PutString encodes s as a u8-length-prefixed byte string.
func PutString(s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	buf := make([]byte, 1+len(s))
	buf[0] = byte(len(s))
	copy(buf[1:], s)
	return buf
}
