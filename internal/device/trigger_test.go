package device

import (
	"testing"
	"time"

	"github.com/librescoot/daq-bridge/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerSchedulerFiresOnlyAfterDelay(t *testing.T) {
	d := newTestDevice()
	s := NewTriggerScheduler(3)
	start := time.Now()
	s.Arm(d, start)

	result := s.Tick(d, start.Add(1*time.Second))
	assert.Empty(t, result.Events)

	result = s.Tick(d, start.Add(20*time.Second))
	require.NotEmpty(t, result.Events)
	assert.True(t, d.Trigger.Occurred)
}

func TestTriggerSchedulerReplaysThenCompletes(t *testing.T) {
	d := newTestDevice()
	s := NewTriggerScheduler(3)
	start := time.Now()
	s.Arm(d, start)
	fireAt := start.Add(20 * time.Second)

	// First tick at/after the delay fires EVENT_TRIGGERED only.
	result := s.Tick(d, fireAt)
	require.NotEmpty(t, result.Events)
	assert.False(t, result.EmitDataPacket)

	sawComplete := false
	packetsEmitted := 0
	for i := 0; i < s.packetsToSend+1; i++ {
		result = s.Tick(d, fireAt.Add(time.Duration(i+1)*DataSendInterval))
		if result.EmitDataPacket {
			packetsEmitted++
		}
		for _, e := range result.Events {
			if e.Cmd == protocol.CmdBufferTransferComplete {
				sawComplete = true
			}
		}
	}
	assert.True(t, sawComplete && packetsEmitted > 0)
}

func TestEdgeTriggerFiresOnUpwardCrossing(t *testing.T) {
	d := newTestDevice()
	e := NewEdgeTrigger(100, 9)
	start := time.Now()
	e.Arm(d, start)

	e.Observe(0, 50)
	e.Observe(0, 150) // crosses upward past 100

	result := e.Tick(d, start)
	require.NotEmpty(t, result.Events)
	assert.True(t, d.Trigger.Occurred)
}

func TestEdgeTriggerIgnoresOtherChannels(t *testing.T) {
	d := newTestDevice()
	e := NewEdgeTrigger(100, 9)
	e.Arm(d, time.Now())

	e.Observe(1, 50)
	e.Observe(1, 500)

	result := e.Tick(d, time.Now())
	assert.Empty(t, result.Events)
}

func TestEdgeTriggerStaysQuietWithoutCrossing(t *testing.T) {
	d := newTestDevice()
	e := NewEdgeTrigger(1000, 9)
	e.Arm(d, time.Now())

	e.Observe(0, 10)
	e.Observe(0, 20)
	e.Observe(0, 15)

	result := e.Tick(d, time.Now())
	assert.Empty(t, result.Events)
	assert.False(t, d.Trigger.Occurred)
}
