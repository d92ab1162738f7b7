package server

import "net"

// Datagram is one received UDP packet, handed synchronously to a
// DatagramHandler (spec.md §3, "Datagram event").
type Datagram struct {
	Socket *net.UDPConn
	Data   []byte
	Addr   *net.UDPAddr
}

// Reply writes b back to the datagram's source address.
func (d *Datagram) Reply(b []byte) (int, error) {
	return d.Socket.WriteToUDP(b, d.Addr)
}
