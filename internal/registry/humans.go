package registry

import (
	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// HumansInWorld returns how many humans belong to a world.
func (r *Registry) HumansInWorld(worldName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[worldName]
	if !ok {
		return 0, notFound("world", worldName, keys(r.worlds))
	}
	return len(w.Humans), nil
}

// Human returns a directory entry by id.
func (r *Registry) Human(id string) (models.Human, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.humans[id]
	if !ok {
		return models.Human{}, notFound("human", id, keys(r.humans))
	}
	return h, nil
}

// AddHumanToWorld makes a directory human a member of a world.
func (r *Registry) AddHumanToWorld(worldName, humanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[worldName]
	if !ok {
		return notFound("world", worldName, keys(r.worlds))
	}
	h, ok := r.humans[humanID]
	if !ok {
		return notFound("human", humanID, keys(r.humans))
	}
	w.Humans[humanID] = struct{}{}
	w.HumanMappings[humanID] = h.UserID
	return nil
}

// RemoveHumanFromWorld drops a human from a world. Removing a human that is
// not a member is not an error.
func (r *Registry) RemoveHumanFromWorld(worldName, humanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[worldName]
	if !ok {
		return notFound("world", worldName, keys(r.worlds))
	}
	delete(w.Humans, humanID)
	delete(w.HumanMappings, humanID)
	return nil
}

// ExcludeHuman stops agentName from interacting with humanID.
func (r *Registry) ExcludeHuman(agentName, humanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return r.agentNotFoundLocked(agentName)
	}
	if _, ok := r.humans[humanID]; !ok {
		return notFound("human", humanID, keys(r.humans))
	}
	rec.ExcludedHumans[humanID] = struct{}{}
	return nil
}

// IncludeHuman reverses ExcludeHuman.
func (r *Registry) IncludeHuman(agentName, humanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return r.agentNotFoundLocked(agentName)
	}
	delete(rec.ExcludedHumans, humanID)
	return nil
}

// CanInteract reports whether humanID is in the agent's world and not
// excluded for it.
func (r *Registry) CanInteract(agentName, humanID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canInteractLocked(agentName, humanID)
}

// HumanUserID returns the provider user id of humanID when the agent may
// interact with them.
func (r *Registry) HumanUserID(agentName, humanID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.canInteractLocked(agentName, humanID) {
		return "", apperr.New(apperr.NotFound, "human %q is not reachable by agent %q", humanID, agentName)
	}
	return r.humans[humanID].UserID, nil
}

func (r *Registry) canInteractLocked(agentName, humanID string) bool {
	rec, ok := r.agents[agentName]
	if !ok {
		return false
	}
	if _, excluded := rec.ExcludedHumans[humanID]; excluded {
		return false
	}
	_, member := r.worlds[rec.WorldName].Humans[humanID]
	return member
}

// DisplayName resolves a provider user id to the registered agent name, the
// directory human's name, or the id itself.
func (r *Registry) DisplayName(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byUser[userID]; ok {
		return name
	}
	for _, h := range r.humans {
		if h.UserID == userID && h.Name != "" {
			return h.Name
		}
	}
	return userID
}
