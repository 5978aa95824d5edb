package connect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusmqtt/broker/extauth"
	"github.com/nimbusmqtt/broker/packets"
)

func connectWithWill(topic string) *packets.ConnectMessage {
	return &packets.ConnectMessage{
		ClientIdentifier: "device-1",
		Will:             &packets.Will{Topic: topic, Qos: 1},
	}
}

func TestWillAuthDefaultEvaluatorAllowsPermittedTopic(t *testing.T) {
	w := NewWillAuthStage(extauth.NewAuthorizers())
	perms := extauth.NewPermissions()
	perms.Allow("devices/+/lwt", extauth.WriteOnly)

	result := w.Authorize(connectWithWill("devices/1/lwt"), perms)
	require.True(t, result.Authorized)
}

func TestWillAuthDefaultEvaluatorDeniesUnpermittedTopic(t *testing.T) {
	w := NewWillAuthStage(extauth.NewAuthorizers())
	perms := extauth.NewPermissions()

	result := w.Authorize(connectWithWill("devices/1/lwt"), perms)
	require.False(t, result.Authorized)
	require.Equal(t, packets.ErrNotAuthorized, result.ReasonCode)
}

type stubWillAuthorizer struct {
	result extauth.WillAuthResult
}

func (s stubWillAuthorizer) AuthorizeWill(connect *packets.ConnectMessage, permissions *extauth.Permissions) extauth.WillAuthResult {
	return s.result
}

func TestWillAuthPluginAckSuccessAuthorizes(t *testing.T) {
	authorizers := extauth.NewAuthorizers()
	authorizers.Register(stubWillAuthorizer{result: extauth.WillAuthResult{
		AckReasonCodeSet: true,
		AckReasonCode:    packets.CodeSuccess,
	}})
	w := NewWillAuthStage(authorizers)

	result := w.Authorize(connectWithWill("devices/1/lwt"), extauth.NewPermissions())
	require.True(t, result.Authorized)
}

func TestWillAuthPluginDisconnectReasonTakesPrecedenceOverAck(t *testing.T) {
	authorizers := extauth.NewAuthorizers()
	authorizers.Register(stubWillAuthorizer{result: extauth.WillAuthResult{
		AckReasonCodeSet:     true,
		AckReasonCode:        packets.ErrBadUsernameOrPassword,
		DisconnectReasonSet:  true,
		DisconnectReasonCode: packets.ErrServerBusy,
	}})
	w := NewWillAuthStage(authorizers)

	result := w.Authorize(connectWithWill("devices/1/lwt"), extauth.NewPermissions())
	require.False(t, result.Authorized)
	require.Equal(t, packets.ErrServerBusy, result.ReasonCode)
}

func TestWillAuthPluginNoDecisionFallsBackToDefaultPermissions(t *testing.T) {
	authorizers := extauth.NewAuthorizers()
	authorizers.Register(stubWillAuthorizer{result: extauth.WillAuthResult{}})
	w := NewWillAuthStage(authorizers)

	perms := extauth.NewPermissions()
	perms.Allow("devices/+/lwt", extauth.ReadWrite)

	result := w.Authorize(connectWithWill("devices/1/lwt"), perms)
	require.True(t, result.Authorized)
}

func TestWillAuthPluginNoDecisionAndEmptyPermissionsDenies(t *testing.T) {
	authorizers := extauth.NewAuthorizers()
	authorizers.Register(stubWillAuthorizer{result: extauth.WillAuthResult{}})
	w := NewWillAuthStage(authorizers)

	result := w.Authorize(connectWithWill("devices/1/lwt"), extauth.NewPermissions())
	require.False(t, result.Authorized)
}
