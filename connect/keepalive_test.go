package connect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusmqtt/broker/channel"
)

func TestKeepAliveStageZeroSecondsInstallsNothing(t *testing.T) {
	fired := make(chan struct{})
	k := NewKeepAliveStage(0, 1.5, func(*channel.Channel) { close(fired) })
	ch := channel.New("device-1", false)

	k.Start(ch)

	select {
	case <-fired:
		t.Fatal("onIdle fired despite keep-alive 0")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKeepAliveStageFiresAfterTimeout(t *testing.T) {
	fired := make(chan struct{})
	k := NewKeepAliveStage(1, 0.05, func(*channel.Channel) { close(fired) }) // 0.05s rounds up to a 1s timeout
	ch := channel.New("device-1", false)

	k.Start(ch)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onIdle never fired")
	}
}

func TestKeepAliveStageResetPostponesFire(t *testing.T) {
	fired := make(chan struct{})
	k := NewKeepAliveStage(1, 0.1, func(*channel.Channel) { close(fired) }) // 0.1s rounds up to a 1s timeout
	ch := channel.New("device-1", false)

	k.Start(ch)
	time.Sleep(600 * time.Millisecond)
	k.Reset()

	// Without the reset the timer would fire 1s after Start; with it, not
	// before 1.6s.
	select {
	case <-fired:
		t.Fatal("onIdle fired before the reset timeout elapsed")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestKeepAliveStageStopPreventsFire(t *testing.T) {
	fired := make(chan struct{})
	k := NewKeepAliveStage(1, 0.05, func(*channel.Channel) { close(fired) }) // 0.05s rounds up to a 1s timeout
	ch := channel.New("device-1", false)

	k.Start(ch)
	k.Stop(ch)

	select {
	case <-fired:
		t.Fatal("onIdle fired after Stop")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestKeepAliveStageTimeoutRoundsUp(t *testing.T) {
	k := NewKeepAliveStage(10, 1.5, nil) // 15s exactly -> no rounding needed
	require.Equal(t, 15*time.Second, k.timeout())

	k2 := NewKeepAliveStage(10, 1.05, nil) // 10.5s -> rounds up to 11s
	require.Equal(t, 11*time.Second, k2.timeout())
}
