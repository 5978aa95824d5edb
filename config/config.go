// Package config defines the admission core's configuration surface
// (spec.md §6 "Configuration (enumerated)"). Grounded on the teacher's
// Capabilities/Options/ensureDefaults (server.go) and OpenConfigFile
// (config.go): same YAML-tagged struct-of-fields shape and
// ensureDefaults() pattern, narrowed to the options the CONNECT admission
// core actually consults.
package config

import (
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Capabilities holds every option spec.md §6 enumerates, plus the v5
// CONNACK-advertised server capabilities it cross-references. Grounded on
// teacher server.go's Capabilities struct.
type Capabilities struct {
	MaxClientIDLength              int     `yaml:"max_client_id_length" json:"max_client_id_length"`
	MaxSessionExpiryInterval       uint32  `yaml:"max_session_expiry_interval" json:"max_session_expiry_interval"`
	TopicAliasEnabled              bool    `yaml:"topic_alias_enabled" json:"topic_alias_enabled"`
	TopicAliasMaxPerClient         uint16  `yaml:"topic_alias_max_per_client" json:"topic_alias_max_per_client"`
	TopicAliasGlobalLimit          uint32  `yaml:"topic_alias_global_limit" json:"topic_alias_global_limit"`
	KeepAliveMax                   uint16  `yaml:"keep_alive_max" json:"keep_alive_max"`
	KeepAliveAllowZero             bool    `yaml:"keep_alive_allow_zero" json:"keep_alive_allow_zero"`
	MaxMessageExpiryInterval       uint32  `yaml:"max_message_expiry_interval" json:"max_message_expiry_interval"`
	DenyUnauthenticatedConnections bool    `yaml:"deny_unauthenticated_connections" json:"deny_unauthenticated_connections"`
	MaximumQos                     byte    `yaml:"maximum_qos" json:"maximum_qos"`
	RetainedMessagesEnabled        bool    `yaml:"retained_messages_enabled" json:"retained_messages_enabled"`
	WildcardSubscriptionsEnabled   bool    `yaml:"wildcard_subscriptions_enabled" json:"wildcard_subscriptions_enabled"`
	SharedSubscriptionsEnabled     bool    `yaml:"shared_subscriptions_enabled" json:"shared_subscriptions_enabled"`
	SubscriptionIdentifiersEnabled bool    `yaml:"subscription_identifiers_enabled" json:"subscription_identifiers_enabled"`
	MaxPacketSize                  uint32  `yaml:"max_packet_size" json:"max_packet_size"`
	ServerReceiveMaximum           uint16  `yaml:"server_receive_maximum" json:"server_receive_maximum"`
	MQTTConnectionKeepAliveFactor  float64 `yaml:"mqtt_connection_keep_alive_factor" json:"mqtt_connection_keep_alive_factor"`

	// extension queue sizing, not named individually in spec.md §6 but
	// required to construct the Authentication Orchestrator's taskpool.
	ExtensionTaskWorkers int `yaml:"extension_task_workers" json:"extension_task_workers"`
	ExtensionTaskQueue   int `yaml:"extension_task_queue" json:"extension_task_queue"`
}

// NewDefaultCapabilities mirrors teacher server.go's
// NewDefaultServerCapabilities: sane defaults a broker starts with when no
// config file overrides them.
func NewDefaultCapabilities() *Capabilities {
	return &Capabilities{
		MaxClientIDLength:              65535,
		MaxSessionExpiryInterval:       math.MaxUint32,
		TopicAliasEnabled:              true,
		TopicAliasMaxPerClient:         math.MaxUint16,
		TopicAliasGlobalLimit:          math.MaxUint32,
		KeepAliveMax:                   65535,
		KeepAliveAllowZero:             true,
		MaxMessageExpiryInterval:       60 * 60 * 24,
		DenyUnauthenticatedConnections: false,
		MaximumQos:                     2,
		RetainedMessagesEnabled:        true,
		WildcardSubscriptionsEnabled:   true,
		SharedSubscriptionsEnabled:     true,
		SubscriptionIdentifiersEnabled: true,
		MaxPacketSize:                  0,
		ServerReceiveMaximum:           1024,
		MQTTConnectionKeepAliveFactor:  1.5,
		ExtensionTaskWorkers:           8,
		ExtensionTaskQueue:             1024,
	}
}

// Options is the top-level configuration loaded from file, grounded on
// teacher server.go's Options / config.go's Config{Server{Options}}.
type Options struct {
	Capabilities *Capabilities `yaml:"capabilities" json:"capabilities"`
}

// ensureDefaults fills zero-valued fields with NewDefaultCapabilities'
// values, grounded on teacher server.go's Options.ensureDefaults. Only
// MaxClientIDLength, KeepAliveMax, MaxMessageExpiryInterval,
// ServerReceiveMaximum, MQTTConnectionKeepAliveFactor,
// ExtensionTaskWorkers and ExtensionTaskQueue are filled; every other
// field, including the booleans, MaxSessionExpiryInterval, MaximumQos and
// the topic-alias limits, keeps the value it was loaded with.
func (o *Options) ensureDefaults() {
	if o.Capabilities == nil {
		o.Capabilities = NewDefaultCapabilities()
		return
	}

	d := NewDefaultCapabilities()
	if o.Capabilities.MaxClientIDLength == 0 {
		o.Capabilities.MaxClientIDLength = d.MaxClientIDLength
	}
	if o.Capabilities.KeepAliveMax == 0 {
		o.Capabilities.KeepAliveMax = d.KeepAliveMax
	}
	if o.Capabilities.MaxMessageExpiryInterval == 0 {
		o.Capabilities.MaxMessageExpiryInterval = d.MaxMessageExpiryInterval
	}
	if o.Capabilities.ServerReceiveMaximum == 0 {
		o.Capabilities.ServerReceiveMaximum = d.ServerReceiveMaximum
	}
	if o.Capabilities.MQTTConnectionKeepAliveFactor == 0 {
		o.Capabilities.MQTTConnectionKeepAliveFactor = d.MQTTConnectionKeepAliveFactor
	}
	if o.Capabilities.ExtensionTaskWorkers == 0 {
		o.Capabilities.ExtensionTaskWorkers = d.ExtensionTaskWorkers
	}
	if o.Capabilities.ExtensionTaskQueue == 0 {
		o.Capabilities.ExtensionTaskQueue = d.ExtensionTaskQueue
	}
}

// wrapper is the YAML document shape, grounded on teacher config.go's
// Config{Server{Options}}.
type wrapper struct {
	Server struct {
		Options `yaml:"options"`
	} `yaml:"server"`
}

// OpenConfigFile reads and parses a YAML config file at p, applying
// defaults, grounded on teacher config.go's OpenConfigFile.
func OpenConfigFile(p string) (*Options, error) {
	if p == "" {
		slog.Default().Debug("no config file path provided")
		opts := &Options{}
		opts.ensureDefaults()
		return opts, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	var doc wrapper
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	opts := &doc.Server.Options
	opts.ensureDefaults()
	return opts, nil
}
