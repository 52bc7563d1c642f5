package models

// DMChannelName is the name given to direct-message conversations, which
// have no human-readable name of their own.
const DMChannelName = "dm"

// Channel is a provider conversation. ID is authoritative; Name is only
// unique for broadcast channels.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsDM reports whether the channel is a direct-message conversation.
func (c Channel) IsDM() bool {
	return c.Name == DMChannelName
}

// MergeChannels appends the channels from add whose IDs are not already in
// base, preserving order.
func MergeChannels(base []Channel, add ...Channel) []Channel {
	seen := make(map[string]struct{}, len(base)+len(add))
	out := make([]Channel, 0, len(base)+len(add))
	for _, ch := range base {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, ch)
	}
	for _, ch := range add {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, ch)
	}
	return out
}
