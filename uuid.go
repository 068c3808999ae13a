package grid

import (
	"time"

	"github.com/google/uuid"
)

// UUID identifies nodes, workers and transactions. It renders as the
// canonical hyphenated form in text encodings such as JSON and YAML.
type UUID uuid.UUID

// NilUUID is the zero UUID. No node, worker or transaction carries it.
var NilUUID UUID

// ParseUUID parses the canonical text form of a UUID.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	return UUID(u), err
}

// NewUUID returns a random UUID. Reading the random source is retried a
// few times before giving up with a panic.
func NewUUID() UUID {
	const attempts = 10
	var err error
	for range attempts {
		var u uuid.UUID
		if u, err = uuid.NewRandom(); err == nil {
			return UUID(u)
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}

// IsNil reports whether id is NilUUID.
func (id UUID) IsNil() bool { return id == NilUUID }

func (id UUID) String() string { return uuid.UUID(id).String() }

// Compare orders UUIDs bytewise, returning -1, 0 or 1.
func (id UUID) Compare(other UUID) int {
	for i := range id {
		switch {
		case id[i] < other[i]:
			return -1
		case id[i] > other[i]:
			return 1
		}
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler.
func (id UUID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *UUID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = UUID(u)
	return nil
}
