package ipc

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSendFailsSilentlyWithNoClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	c, err := Listen(path)
	require.NoError(t, err)
	defer c.Stop()

	ok := c.Send(Message{Type: TypeReaderStatusUpdate, Payload: StringPayload("x")})
	assert.False(t, ok)
}

func TestChannelDeliversLinesFromClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	c, err := Listen(path)
	require.NoError(t, err)
	defer c.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"FORWARD_TO_DEVICE","id":"1"}` + "\n"))
	require.NoError(t, err)

	select {
	case msg := <-c.Incoming():
		assert.Equal(t, TypeForwardToDevice, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelSplitsMultipleLinesInOneChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	c, err := Listen(path)
	require.NoError(t, err)
	defer c.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(
		`{"type":"REQUEST_READER_STATUS"}` + "\n" +
			`{"type":"SET_READER_MODE"}` + "\n",
	))
	require.NoError(t, err)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-c.Incoming():
			got = append(got, msg.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
	assert.Equal(t, []string{TypeRequestReaderStatus, TypeSetReaderMode}, got)
}

func TestChannelSendReachesClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	c, err := Listen(path)
	require.NoError(t, err)
	defer c.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	// Give the accept loop a moment to register the connection.
	require.Eventually(t, func() bool {
		return c.Send(Message{Type: TypeReaderStatusUpdate, Payload: StringPayload("hi")})
	}, 2*time.Second, 10*time.Millisecond)

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, TypeReaderStatusUpdate)
}
