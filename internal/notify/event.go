package notify

import (
	"context"
	"encoding/json"
)

const (
	// OpCreated announces a bookmark that was added
	OpCreated = "created"
	// OpDeleted announces a bookmark that was removed
	OpDeleted = "deleted"
)

// Event describes a change to one user's bookmark collection. The
// payload is advisory: subscribers treat it as "something changed"
// and refetch, they never apply it directly.
type Event struct {
	UserID     string `json:"user_id"`
	Op         string `json:"op"`
	BookmarkID string `json:"bookmark_id"`
}

// MarshalBinary lets go-redis publish an Event directly.
func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (e *Event) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// Publisher announces a change to every interested session, local or
// on another instance.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
