package extauth

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nimbusmqtt/broker/packets"
)

// rstring is a rule value, supporting a trailing "*" prefix wildcard and
// "" / "*" meaning match-anything. Ported from teacher hooks/auth/ledger.go's
// RString.
type rstring string

func (r rstring) matches(a string) bool {
	rr := string(r)
	if r == "" || r == "*" || a == rr {
		return true
	}
	if i := strings.Index(rr, "*"); i > 0 && len(a) > i && rr[:i] == a[:i] {
		return true
	}
	return false
}

// AuthRule is one generic access rule, grounded on teacher ledger.go's
// AuthRule (Client/Username/Password/Allow), narrowed to the fields the
// Authentication Orchestrator's CONNECT-time check can evaluate (no
// Remote address, since that belongs to the out-of-scope transport
// layer).
type AuthRule struct {
	Client   string `yaml:"client,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Allow    bool   `yaml:"allow,omitempty"`
}

// ACLRule grants filter-scoped access, grounded on teacher ledger.go's
// ACLRule/Filters.
type ACLRule struct {
	Client   string            `yaml:"client,omitempty"`
	Username string            `yaml:"username,omitempty"`
	Filters  map[string]Access `yaml:"filters,omitempty"`
}

// Ledger is a declarative rule set for the default LedgerAuthenticator,
// grounded on teacher ledger.go's Ledger{Users,Auth,ACL}, minus the Users
// shortcut map (this core has one authentication path, CONNECT, not a
// broader user directory).
type Ledger struct {
	Auth []AuthRule `yaml:"auth"`
	ACL  []ACLRule  `yaml:"acl"`
}

// LoadLedger loads a Ledger from YAML bytes, mirroring teacher
// ledger.go's Unmarshal (which also accepts JSON; this core only needs
// the teacher's declared config format, YAML, since config.go already
// standardizes on gopkg.in/yaml.v3).
func LoadLedger(data []byte) (*Ledger, error) {
	l := &Ledger{}
	if len(data) == 0 {
		return l, nil
	}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, err
	}
	return l, nil
}

// LedgerAuthenticator is the default Authenticator, evaluating CONNECT
// against a Ledger's Auth rules. Grounded on teacher ledger.go's
// Ledger.AuthOk: first matching rule (by client id / username / password,
// in registration order) decides allow/deny.
type LedgerAuthenticator struct {
	ledger *Ledger
}

// NewLedgerAuthenticator returns a LedgerAuthenticator evaluating against
// ledger.
func NewLedgerAuthenticator(ledger *Ledger) *LedgerAuthenticator {
	return &LedgerAuthenticator{ledger: ledger}
}

// Authenticate implements Authenticator.
func (l *LedgerAuthenticator) Authenticate(connect *packets.ConnectMessage) AuthResult {
	for _, rule := range l.ledger.Auth {
		if rstring(rule.Client).matches(connect.ClientIdentifier) &&
			rstring(rule.Username).matches(connect.Username) &&
			rstring(rule.Password).matches(string(connect.Password)) {
			if !rule.Allow {
				return AuthResult{
					Verdict:      Failure,
					ReasonCode:   packets.ErrNotAuthorized,
					ReasonString: "denied by ledger rule",
				}
			}
			return AuthResult{
				Verdict:     Success,
				Permissions: permissionsFromACL(l.ledger.ACL, connect),
			}
		}
	}
	return AuthResult{Verdict: Continue}
}

// permissionsFromACL builds a Permissions from the ACL rules matching
// connect, grounded on teacher ledger.go's ACLOk matching shape (by
// client id / username, then filter-scoped access).
func permissionsFromACL(rules []ACLRule, connect *packets.ConnectMessage) *Permissions {
	perms := NewPermissions()
	for _, rule := range rules {
		if rstring(rule.Client).matches(connect.ClientIdentifier) &&
			rstring(rule.Username).matches(connect.Username) {
			for filter, access := range rule.Filters {
				perms.Allow(filter, access)
			}
		}
	}
	return perms
}

// LedgerPermissions is the default-permissions evaluator the
// Will-Authorization Stage falls back to when no authorizers are
// registered (spec.md §4.3 "evaluate the will publish against
// auth_permissions using the default-permissions evaluator").
func LedgerPermissions(perms *Permissions, topic string) bool {
	return perms.CanPublish(topic)
}
