package domain

// Participant is a resolver cache entry: the human-readable presence
// of an opaque user id. Entries live for the process; an absent entry
// means "not yet resolved", not "does not exist". When an id resolves
// in neither collection its raw id doubles as the display name.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}
