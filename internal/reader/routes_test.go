package reader

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/librescoot/daq-bridge/internal/ipc"
	"github.com/librescoot/daq-bridge/internal/protocol"
	"github.com/librescoot/daq-bridge/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestratorForTest(t *testing.T) (*Orchestrator, net.Conn) {
	o, clientConn, _ := newOrchestratorForTestWithIPCPath(t)
	return o, clientConn
}

func newOrchestratorForTestWithIPCPath(t *testing.T) (*Orchestrator, net.Conn, string) {
	serverConn, clientConn := net.Pipe()

	mem := make([]byte, ring.Size)
	r, err := ring.Attach(mem, true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ipc.sock")
	ipcChan, err := ipc.Listen(path)
	require.NoError(t, err)
	t.Cleanup(ipcChan.Stop)

	o := New(serverConn, "serial", "/dev/ttyTEST", r, ipcChan)
	return o, clientConn, path
}

func TestRouteDataPacketWritesRingNotIPC(t *testing.T) {
	o, _ := newOrchestratorForTest(t)

	payload := protocol.EncodeDataPacket(100, 0x01, 4, map[byte][]int16{0: {1, 2, 3, 4}})
	o.handleFrame(protocol.Frame{Cmd: protocol.CmdDataPacket, Seq: 5, Payload: payload})

	assert.Equal(t, uint32(1), o.ring.PacketCount())
	pkt := o.ring.ReadSlot(0)
	assert.Equal(t, payload, pkt.Payload)
}

func TestRoutePongUpdatesMirror(t *testing.T) {
	o, _ := newOrchestratorForTest(t)

	payload := protocol.EncodePong(0x11223344AABBCCDD)
	o.handleFrame(protocol.Frame{Cmd: protocol.CmdPong, Seq: 0, Payload: payload})

	assert.True(t, o.mirror.Connected)
	assert.Equal(t, uint64(0x11223344AABBCCDD), o.mirror.UniqueID)
}

func TestRouteStatusUpdatesMirror(t *testing.T) {
	o, _ := newOrchestratorForTest(t)
	payload := protocol.EncodeStatus(protocol.ModeTrigger, protocol.StreamRunning, false, 0)
	o.handleFrame(protocol.Frame{Cmd: protocol.CmdStatus, Payload: payload})

	assert.Equal(t, protocol.ModeTrigger, o.mirror.Mode)
	assert.Equal(t, protocol.StreamRunning, o.mirror.Stream)
}

func TestRouteEventTriggeredAutoIssuesRequestBufferedData(t *testing.T) {
	o, client := newOrchestratorForTest(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := client.Read(buf)
		if err != nil {
			done <- nil
			return
		}
		done <- buf[:n]
	}()

	payload := protocol.EncodeEventTriggered(protocol.EventTriggered{TimestampMs: 1, Channel: 0, PreSamples: 1, PostSamples: 1})
	o.handleFrame(protocol.Frame{Cmd: protocol.CmdEventTriggered, Payload: payload})

	raw := <-done
	require.NotNil(t, raw)
	frame, err := protocol.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdRequestBufferedData, frame.Cmd)
}
