package events

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ChannelResolver determines which Redis channels to publish to
type ChannelResolver interface {
	ResolveChannels(env Envelope) []string
}

// UserChannelResolver routes chat request events to the channels of both
// parties. Anything it cannot decode goes to the system outbox channel.
type UserChannelResolver struct{}

func NewUserChannelResolver() *UserChannelResolver {
	return &UserChannelResolver{}
}

func (r *UserChannelResolver) ResolveChannels(env Envelope) []string {
	if env.AggregateType != AggregateTypeChatRequest {
		return []string{ChannelSystemOutbox}
	}

	var p ChatRequestPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return []string{ChannelSystemOutbox}
	}

	var channels []string
	seen := make(map[uuid.UUID]bool, 2)
	for _, id := range []uuid.UUID{p.SenderID, p.RecipientID} {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		channels = append(channels, ChannelPrefixUser+id.String())
	}
	if len(channels) == 0 {
		return []string{ChannelSystemOutbox}
	}
	return channels
}
