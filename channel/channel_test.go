package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusmqtt/broker/packets"
)

func TestNewSetsPreventLWTAndUnfiredFuture(t *testing.T) {
	ch := New("abc", false)
	require.Equal(t, "abc", ch.ID())
	require.False(t, ch.ClientIDAssigned())
	require.True(t, ch.PreventLWT())
	require.False(t, ch.Closed())
	require.False(t, ch.TakenOver())
}

func TestSetAuthenticatedRecordsPermissions(t *testing.T) {
	ch := New("abc", false)
	perms := struct{ allowAll bool }{allowAll: true}

	ch.SetAuthenticated(true, false, "SCRAM", perms, []packets.UserProperty{{Key: "k", Value: "v"}})

	require.True(t, ch.Authenticated())
	require.False(t, ch.AuthBypassed())
	require.Equal(t, "SCRAM", ch.AuthMethod())
	require.Equal(t, perms, ch.AuthPermissions())
}

func TestAuthUserPropertiesDrainsOnRead(t *testing.T) {
	ch := New("abc", false)
	ch.SetAuthenticated(true, false, "", nil, []packets.UserProperty{{Key: "k", Value: "v"}})

	got := ch.AuthUserProperties()
	require.Equal(t, []packets.UserProperty{{Key: "k", Value: "v"}}, got)
	require.Nil(t, ch.AuthUserProperties())
}

func TestAuthBufferingTogglesIndependently(t *testing.T) {
	ch := New("abc", false)
	require.False(t, ch.AuthBuffering())

	ch.SetAuthBuffering(true)
	require.True(t, ch.AuthBuffering())

	ch.SetAuthBuffering(false)
	require.False(t, ch.AuthBuffering())
}

func TestSetLimitsAllocatesAliasTable(t *testing.T) {
	ch := New("abc", false)
	ch.SetLimits(1024, 0, 60, 3600, 10)

	require.Equal(t, uint16(60), ch.KeepAlive())
	require.Equal(t, uint32(3600), ch.SessionExpiryInterval())
	require.Len(t, ch.topicAliasMapping, 10)
}

func TestMarkTakenOverIsObservable(t *testing.T) {
	ch := New("abc", false)
	require.False(t, ch.TakenOver())
	ch.MarkTakenOver()
	require.True(t, ch.TakenOver())
}

type countingStage struct {
	starts, stops *[]string
	name          string
}

func (s *countingStage) Start(ch *Channel) { *s.starts = append(*s.starts, s.name) }
func (s *countingStage) Stop(ch *Channel)  { *s.stops = append(*s.stops, s.name) }

func TestAttachStagesStartsImmediately(t *testing.T) {
	ch := New("abc", false)
	var starts, stops []string

	ch.AttachStages(&countingStage{starts: &starts, stops: &stops, name: "keepalive"})
	require.Equal(t, []string{"keepalive"}, starts)
	require.Empty(t, stops)
}

func TestCloseStopsStagesInReverseOrderAndFiresFutureOnce(t *testing.T) {
	ch := New("abc", false)
	var starts, stops []string

	ch.AttachStages(
		&countingStage{starts: &starts, stops: &stops, name: "first"},
		&countingStage{starts: &starts, stops: &stops, name: "second"},
	)

	ch.Close()
	require.Equal(t, []string{"second", "first"}, stops)
	require.True(t, ch.Closed())

	select {
	case <-ch.DisconnectFuture().Done():
	default:
		t.Fatal("disconnect future not fired after Close")
	}

	// A second Close must not re-run teardown.
	ch.Close()
	require.Equal(t, []string{"second", "first"}, stops)
}

func TestSetConnectMessageRoundTrips(t *testing.T) {
	ch := New("abc", false)
	msg := &packets.ConnectMessage{ClientIdentifier: "abc"}
	ch.SetConnectMessage(msg)
	require.Same(t, msg, ch.ConnectMessage())
}
