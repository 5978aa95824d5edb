package connect

import (
	"github.com/nimbusmqtt/broker/channel"
	"github.com/nimbusmqtt/broker/registry"
)

// registryCleanupStage removes a channel from the registry when it
// closes (spec.md §3 "removal occurs on channel close"). It is attached
// alongside the keep-alive stage so Channel.Close tears both down in the
// same pass, in reverse installation order.
type registryCleanupStage struct {
	reg *registry.Registry
	id  string
}

func (s *registryCleanupStage) Start(ch *channel.Channel) {}

// Stop deletes id from the registry, but only if ch is still the
// occupant — registry.Delete's compare-and-delete already guards against
// removing a newer channel that has since taken id over.
func (s *registryCleanupStage) Stop(ch *channel.Channel) {
	s.reg.Delete(s.id, ch)
}

// aliasReleaseStage returns a channel's reserved topic-alias slots to the
// global limiter when it closes, so a later CONNACK's allocation can
// reuse the headroom.
type aliasReleaseStage struct {
	limiter *TopicAliasLimiter
	n       uint16
}

func (s *aliasReleaseStage) Start(ch *channel.Channel) {}

func (s *aliasReleaseStage) Stop(ch *channel.Channel) {
	s.limiter.Release(s.n)
}
