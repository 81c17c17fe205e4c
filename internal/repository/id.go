package repository

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// newMessageID returns a ULID whose time component is the message's createdAt,
// so ids sort like the messages they name.
func newMessageID(createdAt time.Time) string {
	return ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String()
}
