// Package extauth implements the ExtensionAuthenticators/
// ExtensionAuthorizers collaborator interfaces spec.md §6 describes, plus
// a default-permissions evaluator. Grounded on the teacher's
// hooks/auth/ledger.go: the topic-filter matching (MatchTopic, +/#
// wildcards) and rule-precedence shape (user rules checked before global
// rules) of Ledger.AuthOk/ACLOk carry over directly; the fan-out/
// async-verdict-collection orchestration spec.md §4.2 requires has no
// analogue there (the teacher calls AuthOk/ACLOk synchronously inline)
// and lives in package connect instead.
package extauth

import (
	"strings"

	"github.com/nimbusmqtt/broker/packets"
)

// Verdict is the outcome of one authenticator or authorizer task (spec.md
// §4.2 "each task yields one of {SUCCESS, FAILURE, CONTINUE}").
type Verdict int

const (
	Continue Verdict = iota
	Success
	Failure
)

// AuthResult is what an authenticator reports back to the Authentication
// Orchestrator.
type AuthResult struct {
	Verdict        Verdict
	Permissions    *Permissions
	UserProperties []packets.UserProperty
	ReasonCode     packets.Code
	ReasonString   string
}

// Authenticator is one registered extension authenticator provider (spec.md
// §6 "ExtensionAuthenticators: providers() → map<name, provider>").
type Authenticator interface {
	Authenticate(connect *packets.ConnectMessage) AuthResult
}

// WillAuthResult is what the will-authorization plugin service returns
// (spec.md §4.3).
type WillAuthResult struct {
	AckReasonCode        packets.Code
	AckReasonCodeSet     bool
	DisconnectReasonCode packets.Code
	DisconnectReasonSet  bool
}

// Authorizer is a registered extension will-authorizer.
type Authorizer interface {
	AuthorizeWill(connect *packets.ConnectMessage, permissions *Permissions) WillAuthResult
}

// Access mirrors the teacher's ledger.Access (Deny/ReadOnly/WriteOnly/
// ReadWrite), the read/write privilege level for one filter.
type Access byte

const (
	Deny Access = iota
	ReadOnly
	WriteOnly
	ReadWrite
)

// Permissions is the default-permissions evaluator's output, installed
// into a channel's auth_permissions attribute. Grounded on teacher
// ledger.go's Filters (map[RString]Access) plus MatchTopic.
type Permissions struct {
	Filters map[string]Access
}

// NewPermissions returns an empty Permissions (deny-all: no filters
// match).
func NewPermissions() *Permissions {
	return &Permissions{Filters: make(map[string]Access)}
}

// Allow grants access for a topic filter, mirroring the teacher's Ledger
// rule construction.
func (p *Permissions) Allow(filter string, access Access) {
	p.Filters[filter] = access
}

// CanPublish reports whether permissions allow publishing to topic,
// matching filters the way teacher ledger.go's ACLOk/MatchTopic does
// (longest match wins is not modeled there either — first match wins, in
// map-iteration order, same as the teacher).
func (p *Permissions) CanPublish(topic string) bool {
	if p == nil || len(p.Filters) == 0 {
		return false
	}
	for filter, access := range p.Filters {
		if matchTopic(filter, topic) {
			return access == WriteOnly || access == ReadWrite
		}
	}
	return false
}

// matchTopic reports whether filter matches topic, accounting for the
// MQTT +/# wildcards. Ported from teacher ledger.go's MatchTopic, which
// this package grounds its wildcard semantics on.
func matchTopic(filter, topic string) bool {
	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")

	for i := 0; i < len(filterParts); i++ {
		if i >= len(topicParts) {
			return false
		}
		if filterParts[i] == "+" {
			continue
		}
		if filterParts[i] == "#" {
			return true
		}
		if filterParts[i] != topicParts[i] {
			return false
		}
	}

	return len(filterParts) == len(topicParts)
}
