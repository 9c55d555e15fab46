package model

// ActivityType tags what kind of board mutation an activity entry records.
type ActivityType string

const (
	ActivityElementCreated   ActivityType = "element-created"
	ActivityElementMoved     ActivityType = "element-moved"
	ActivityElementEdited    ActivityType = "element-edited"
	ActivityElementDeleted   ActivityType = "element-deleted"
	ActivityAnnotationAdded  ActivityType = "annotation-added"
	ActivityStrokeAdded      ActivityType = "stroke-added"
	ActivityStrokeErased     ActivityType = "stroke-erased"
	ActivityDocumentLocked   ActivityType = "document-locked"
	ActivityDocumentUnlocked ActivityType = "document-unlocked"
	ActivityDocumentReset    ActivityType = "document-reset"
)

// Actor identifies a participant for the duration of a session.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Color string `json:"color,omitempty"`
}

// ActivityMeta carries optional type-specific detail about an entry.
type ActivityMeta struct {
	ElementID   string `json:"elementId,omitempty"`
	ElementType string `json:"elementType,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// ActivityEntry is one immutable record in the activity ledger. Timestamp is
// Unix milliseconds and non-decreasing across a ledger. Snapshot, when
// present, is the full document captured at the instant of the mutation and
// is what time travel renders.
type ActivityEntry struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"`
	Type        ActivityType   `json:"type"`
	ActorID     string         `json:"actorId"`
	ActorName   string         `json:"actorName,omitempty"`
	ActorRole   string         `json:"actorRole,omitempty"`
	Description string         `json:"description"`
	Meta        *ActivityMeta  `json:"meta,omitempty"`
	Snapshot    *DocumentState `json:"snapshot,omitempty"`
}
