package model

// PresenceRecord is the ephemeral per-actor state shown to other
// participants: cursor, selection and active tool. It is replaced wholesale
// on every presence update and pruned once LastSeen falls behind the
// registry's threshold. LastSeen is Unix milliseconds.
type PresenceRecord struct {
	ActorID   string   `json:"actorId"`
	Cursor    *Point   `json:"cursor,omitempty"`
	Selection []string `json:"selection,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	LastSeen  int64    `json:"lastSeen"`
	Name      string   `json:"name,omitempty"`
	Role      string   `json:"role,omitempty"`
	Color     string   `json:"color,omitempty"`
}
