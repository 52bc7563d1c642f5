package models

// SlackApp binds a provider credential to the provider user it acts as.
// Bindings come from a finite, pre-provisioned pool.
type SlackApp struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Token  string `json:"-" yaml:"token"`
}

// Agent represents a registered automated participant.
type Agent struct {
	Name           string              `json:"name"`
	WorldName      string              `json:"world"`
	App            SlackApp            `json:"app"`
	Channels       []Channel           `json:"channels"`
	ExcludedHumans map[string]struct{} `json:"-"`
}

// HasChannelID reports whether the agent can already see channel id.
func (a *Agent) HasChannelID(id string) bool {
	for _, ch := range a.Channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}
