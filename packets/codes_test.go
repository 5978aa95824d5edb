package packets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeSatisfiesError(t *testing.T) {
	var err error = ErrNotAuthorized
	require.EqualError(t, err, "not authorized")
	require.Equal(t, "not authorized", ErrNotAuthorized.String())
}

func TestV3ReturnCodeMapped(t *testing.T) {
	require.Equal(t, Err3IdentifierRejected, V3ReturnCode(ErrClientIdentifierNotValid))
	require.Equal(t, Err3UnacceptableProtocolVersion, V3ReturnCode(ErrUnsupportedProtocolVersion))
}

func TestV3ReturnCodeUnmappedDefaultsToNotAuthorized(t *testing.T) {
	require.Equal(t, Err3NotAuthorized, V3ReturnCode(ErrServerShuttingDown))
	require.Equal(t, Err3NotAuthorized, V3ReturnCode(ErrSessionTakenOver))
}
