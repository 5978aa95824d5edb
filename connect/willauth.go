package connect

import (
	"fmt"

	"github.com/nimbusmqtt/broker/extauth"
	"github.com/nimbusmqtt/broker/packets"
)

// WillAuthResult is the Will-Authorization Stage's outcome.
type WillAuthResult struct {
	Authorized   bool
	ReasonCode   packets.Code
	ReasonString string
}

// WillAuthStage implements spec.md §4.3. Grounded on extauth.Authorizers/
// extauth.Permissions (themselves grounded on teacher hooks/auth/ledger.go)
// plus the teacher's packets.V5CodesToV3-style reason mapping.
type WillAuthStage struct {
	Authorizers *extauth.Authorizers
}

// NewWillAuthStage returns a WillAuthStage dispatching to authorizers
// when present.
func NewWillAuthStage(authorizers *extauth.Authorizers) *WillAuthStage {
	return &WillAuthStage{Authorizers: authorizers}
}

// Authorize runs spec.md §4.3 for will against permissions, which the
// Authentication Orchestrator installed. Callers only invoke this when
// connect carries a will and authentication has already succeeded.
func (w *WillAuthStage) Authorize(connect *packets.ConnectMessage, permissions *extauth.Permissions) WillAuthResult {
	will := connect.Will

	if !w.Authorizers.Available() {
		return w.defaultEvaluate(permissions, will)
	}

	result, ok := w.Authorizers.AuthorizeWill(connect, permissions)
	if !ok {
		return w.defaultEvaluate(permissions, will)
	}

	if result.AckReasonCodeSet && result.AckReasonCode == packets.CodeSuccess {
		return WillAuthResult{Authorized: true}
	}

	if result.AckReasonCodeSet || result.DisconnectReasonSet {
		// Reason-code mapping precedence: disconnect_reason_code →
		// ack_reason_code → not-authorized (spec.md §4.3).
		code := packets.ErrNotAuthorized
		if result.DisconnectReasonSet {
			code = result.DisconnectReasonCode
		} else if result.AckReasonCodeSet {
			code = result.AckReasonCode
		}
		return WillAuthResult{
			Authorized:   false,
			ReasonCode:   code,
			ReasonString: fmt.Sprintf("will publish to %q denied", will.Topic),
		}
	}

	// No explicit decision from the authorizer: fall back to default
	// permissions if non-empty, else deny (spec.md §4.3).
	if permissions != nil && len(permissions.Filters) > 0 {
		return w.defaultEvaluate(permissions, will)
	}

	return WillAuthResult{
		Authorized:   false,
		ReasonCode:   packets.ErrNotAuthorized,
		ReasonString: fmt.Sprintf("will publish to %q denied: no authorization decision and no default permissions", will.Topic),
	}
}

// defaultEvaluate evaluates will against permissions using the default
// evaluator (spec.md §4.3 "evaluate the will publish against
// auth_permissions using the default-permissions evaluator").
func (w *WillAuthStage) defaultEvaluate(permissions *extauth.Permissions, will *packets.Will) WillAuthResult {
	if extauth.LedgerPermissions(permissions, will.Topic) {
		return WillAuthResult{Authorized: true}
	}
	return WillAuthResult{
		Authorized:   false,
		ReasonCode:   packets.ErrNotAuthorized,
		ReasonString: fmt.Sprintf("not authorized to publish will to topic %q qos=%d retain=%v", will.Topic, will.Qos, will.Retain),
	}
}
