package connect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusmqtt/broker/channel"
	"github.com/nimbusmqtt/broker/extauth"
	"github.com/nimbusmqtt/broker/metrics"
	"github.com/nimbusmqtt/broker/packets"
)

type stubProvider struct {
	result extauth.AuthResult
}

func (s stubProvider) Authenticate(connect *packets.ConnectMessage) extauth.AuthResult {
	return s.result
}

func directSubmit(f func()) bool { f(); return true }

func refuseSubmit(func()) bool { return false }

func TestAuthenticateNoProvidersDeniesWhenRequired(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(directSubmit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, true)

	require.NoError(t, err)
	require.False(t, outcome.Authenticated)
	require.Equal(t, packets.ErrNotAuthorized, outcome.FailureCode)
}

func TestAuthenticateNoProvidersBypassesWhenAllowed(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(directSubmit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, false)

	require.NoError(t, err)
	require.True(t, outcome.Authenticated)
	require.True(t, outcome.Bypassed)
}

func TestAuthenticateFailureWinsOverSuccess(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(directSubmit)
	authers.Register("allow", stubProvider{result: extauth.AuthResult{Verdict: extauth.Success}})
	authers.Register("deny", stubProvider{result: extauth.AuthResult{
		Verdict:      extauth.Failure,
		ReasonCode:   packets.ErrBadUsernameOrPassword,
		ReasonString: "bad creds",
	}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, true)

	require.NoError(t, err)
	require.False(t, outcome.Authenticated)
	require.Equal(t, packets.ErrBadUsernameOrPassword, outcome.FailureCode)
}

func TestAuthenticateAllContinueFallsBackToPolicy(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(directSubmit)
	authers.Register("abstains", stubProvider{result: extauth.AuthResult{Verdict: extauth.Continue}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, true)

	require.NoError(t, err)
	require.False(t, outcome.Authenticated)
	require.Equal(t, packets.ErrNotAuthorized, outcome.FailureCode)
}

func TestAuthenticateRefusedSubmissionCreditedAsContinue(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(refuseSubmit)
	authers.Register("never-runs", stubProvider{result: extauth.AuthResult{Verdict: extauth.Success}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, false)

	require.NoError(t, err)
	require.True(t, outcome.Authenticated)
	require.True(t, outcome.Bypassed, "a refused submission must be credited as an abstaining CONTINUE, not a success")
}

func TestAuthenticateSuccessCarriesPermissions(t *testing.T) {
	o := NewOrchestrator(metrics.New(nil))
	authers := extauth.NewAuthenticators(directSubmit)
	perms := extauth.NewPermissions()
	perms.Allow("a/#", extauth.ReadWrite)
	authers.Register("allow", stubProvider{result: extauth.AuthResult{Verdict: extauth.Success, Permissions: perms}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	outcome, err := o.Authenticate(ctx, channel.New("device-1", false), &packets.ConnectMessage{}, authers, true)

	require.NoError(t, err)
	require.True(t, outcome.Authenticated)
	require.Same(t, perms, outcome.Permissions)
}
