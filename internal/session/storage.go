package session

import "context"

// Storage keys tracked by the Store
const (
	KeyCurrentUser     = "currentUser"
	KeyToken           = "token"
	KeyBranch          = "branch"
	KeyRegisteredUsers = "registeredUsers"
)

// Change describes a write made through another handle of the same
// partition. An empty Key means the whole partition was cleared.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Storage is a string key-value partition shared by several handles
// ("tabs"). Writes through one handle are announced to every other handle
// subscribed on the same partition, never to the writer itself.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent writes only when the key does not exist yet
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
	// Subscribe streams changes until ctx is done, then closes the channel
	Subscribe(ctx context.Context) (<-chan Change, error)
}
