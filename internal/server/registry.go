// Package server defines the room registry, the authoritative table of room
// display names and access policy.
package server

// passwordExemptRoom is never password-gated, even if a password is
// configured for it.
const passwordExemptRoom = "CR1"

// RoomPolicy describes one room's display name and access requirement. An
// empty Password means the room is open.
type RoomPolicy struct {
	DisplayName string
	Password    string
}

// Registry is the immutable room table, built once at startup. Rooms absent
// from the table are still joinable: they are open and display under their
// raw identifier.
type Registry struct {
	names     map[string]string
	passwords map[string]string
}

// NewRegistry builds a Registry from display-name and password tables. Both
// maps are copied; the Registry never observes later mutation.
func NewRegistry(names, passwords map[string]string) *Registry {
	r := &Registry{
		names:     make(map[string]string, len(names)),
		passwords: make(map[string]string, len(passwords)),
	}
	for id, name := range names {
		r.names[id] = name
	}
	for id, pw := range passwords {
		r.passwords[id] = pw
	}
	return r
}

// DefaultRegistry returns the fixed room table: CR1 and CR2 open, CR3
// through CR5 password-protected.
func DefaultRegistry() *Registry {
	return NewRegistry(
		map[string]string{
			"CR1": "General",
			"CR2": "Talk",
			"CR3": "Drawing",
			"CR4": "Anime",
			"CR5": "4B",
		},
		map[string]string{
			"CR3": "inktober30",
			"CR4": "9taledfox",
			"CR5": "26Dec",
		},
	)
}

// Lookup resolves a room identifier to its policy. Unknown rooms resolve to
// an open room named after the raw identifier.
func (r *Registry) Lookup(roomID string) RoomPolicy {
	policy := RoomPolicy{DisplayName: roomID}
	if name, ok := r.names[roomID]; ok {
		policy.DisplayName = name
	}
	if roomID != passwordExemptRoom {
		policy.Password = r.passwords[roomID]
	}
	return policy
}
