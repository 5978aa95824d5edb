package connect

import (
	"sync"
	"time"

	"github.com/nimbusmqtt/broker/channel"
)

// KeepAliveStage implements spec.md §4.7. Grounded on teacher
// internal/clients/clients.go's refreshDeadline
// (keepalive+(keepalive/2) — the MQTT-spec 1.5x grace factor applied via
// net.Conn.SetDeadline), generalized into a channel.Stage with a
// configurable grace factor and an explicit idle-fire callback instead of
// the teacher's raw connection deadline.
type KeepAliveStage struct {
	keepAliveSeconds uint16
	graceFactor      float64
	onIdle           func(ch *channel.Channel)

	mu     sync.Mutex
	timer  *time.Timer
	active bool
}

// NewKeepAliveStage returns a stage that, once started, fires onIdle if
// no Reset call arrives within ceil(keepAliveSeconds × graceFactor)
// seconds. If keepAliveSeconds is 0, Start installs nothing (spec.md
// §4.7: "If keep-alive is 0 and allowed, install nothing").
func NewKeepAliveStage(keepAliveSeconds uint16, graceFactor float64, onIdle func(ch *channel.Channel)) *KeepAliveStage {
	return &KeepAliveStage{
		keepAliveSeconds: keepAliveSeconds,
		graceFactor:      graceFactor,
		onIdle:           onIdle,
	}
}

func (k *KeepAliveStage) timeout() time.Duration {
	seconds := float64(k.keepAliveSeconds) * k.graceFactor
	if seconds != float64(int64(seconds)) {
		seconds = float64(int64(seconds)) + 1 // ceil
	}
	return time.Duration(seconds) * time.Second
}

// Start implements channel.Stage.
func (k *KeepAliveStage) Start(ch *channel.Channel) {
	if k.keepAliveSeconds == 0 {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = true
	k.timer = time.AfterFunc(k.timeout(), func() {
		if k.onIdle != nil {
			k.onIdle(ch)
		}
	})
}

// Reset restarts the idle countdown, called whenever a packet is read on
// the channel.
func (k *KeepAliveStage) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active && k.timer != nil {
		k.timer.Reset(k.timeout())
	}
}

// Stop implements channel.Stage.
func (k *KeepAliveStage) Stop(ch *channel.Channel) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timer != nil {
		k.timer.Stop()
	}
	k.active = false
}
