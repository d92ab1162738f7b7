package speeddaemon

import (
	"net"
	"testing"
	"time"

	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/stretchr/testify/require"
)

// pipeConn wires a server.Conn to the in-process end of a net.Pipe so the
// protocol-level Handler can be driven directly, without a real socket.
func pipeConn(t *testing.T) (*server.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return server.NewConn(a), b
}

func readFrame(t *testing.T, peer net.Conn) []byte {
	t.Helper()
	peer.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 256)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

// TestHandlerRejectsSecondHeartbeatRequest is spec.md §4.2: WantHeartBeat
// "may arrive from any role but only once (second receipt is an Error)".
func TestHandlerRejectsSecondHeartbeatRequest(t *testing.T) {
	c, peer := pipeConn(t)
	go Handler(NewDaemon())(c)

	wantHeartbeat := []byte{msgWantHeartbeat, 0, 0, 0, 0} // interval=0, disabled
	_, err := peer.Write(wantHeartbeat)
	require.NoError(t, err)

	_, err = peer.Write(wantHeartbeat)
	require.NoError(t, err)

	frame := readFrame(t, peer)
	require.Equal(t, byte(msgError), frame[0])
}

// TestHandlerRejectsRoleChange is spec.md §4.2: identifying twice is a
// protocol error ("already identified").
func TestHandlerRejectsRoleChange(t *testing.T) {
	c, peer := pipeConn(t)
	go Handler(NewDaemon())(c)

	camera := []byte{msgIAmCamera, 0, 123, 0, 8, 0, 60}
	_, err := peer.Write(camera)
	require.NoError(t, err)
	_, err = peer.Write(camera)
	require.NoError(t, err)

	frame := readFrame(t, peer)
	require.Equal(t, byte(msgError), frame[0])
}

// TestHandlerRejectsPlateBeforeCamera is spec.md §4.2: "Plate is valid only
// from a Camera".
func TestHandlerRejectsPlateBeforeCamera(t *testing.T) {
	c, peer := pipeConn(t)
	go Handler(NewDaemon())(c)

	// Plate{plate:"AB", ts:0}
	_, err := peer.Write([]byte{msgPlate, 2, 'A', 'B', 0, 0, 0, 0})
	require.NoError(t, err)

	frame := readFrame(t, peer)
	require.Equal(t, byte(msgError), frame[0])
}

// TestHandlerDeliversHeartbeat exercises the heartbeat ticker end to end:
// a small interval must produce at least one 0x41 frame.
func TestHandlerDeliversHeartbeat(t *testing.T) {
	c, peer := pipeConn(t)
	go Handler(NewDaemon())(c)

	// interval=1 decisecond == 100ms.
	_, err := peer.Write([]byte{msgWantHeartbeat, 0, 0, 0, 1})
	require.NoError(t, err)

	frame := readFrame(t, peer)
	require.Equal(t, []byte{msgHeartbeat}, frame)
}
