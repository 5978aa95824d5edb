package extauth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusmqtt/broker/packets"
)

type stubAuthenticator struct {
	result AuthResult
}

func (s stubAuthenticator) Authenticate(connect *packets.ConnectMessage) AuthResult {
	return s.result
}

func TestAuthenticatorsRegisterAndProvidersSnapshot(t *testing.T) {
	a := NewAuthenticators(func(f func()) bool { f(); return true })
	a.Register("ledger", stubAuthenticator{result: AuthResult{Verdict: Success}})

	providers := a.Providers()
	require.Len(t, providers, 1)
	require.Contains(t, providers, "ledger")

	// Mutating the snapshot must not affect the live registry.
	delete(providers, "ledger")
	require.Len(t, a.Providers(), 1)
}

func TestAuthenticatorsSubmitDelegatesToBoundFunction(t *testing.T) {
	var ran bool
	a := NewAuthenticators(func(f func()) bool {
		f()
		ran = true
		return true
	})

	require.True(t, a.Submit(func() {}))
	require.True(t, ran)
}

func TestAuthenticatorsSubmitPropagatesRefusal(t *testing.T) {
	a := NewAuthenticators(func(func()) bool { return false })
	require.False(t, a.Submit(func() {}))
}

func TestAuthorizersAuthorizeWillEmptyReturnsFalse(t *testing.T) {
	az := NewAuthorizers()
	_, ok := az.AuthorizeWill(nil, nil)
	require.False(t, ok)
}
