package primitives

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// ObjectID is the stable, opaque identity of a schema object. It never changes
// for the lifetime of the object, in particular not across renames, so every
// stored reference between objects keys on it instead of on names.
type ObjectID ulid.ULID

// ZeroObjectID is the zero value; it never identifies a live object.
var ZeroObjectID ObjectID

// NewObjectID returns a fresh, monotonically ordered identifier.
func NewObjectID() ObjectID {
	return ObjectID(ulid.Make())
}

// ParseObjectID parses the canonical string form produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(s))
	if err != nil {
		return ZeroObjectID, err
	}
	return ObjectID(id), nil
}

// IsZero reports whether the id is unset.
func (id ObjectID) IsZero() bool {
	return id == ZeroObjectID
}

// String returns the 26 character Crockford base32 form.
func (id ObjectID) String() string {
	return ulid.ULID(id).String()
}

// Short returns the last eight characters, enough to tell objects apart in logs.
func (id ObjectID) Short() string {
	s := id.String()
	return s[len(s)-8:]
}

// Compare orders ids by creation time, then by entropy.
func (id ObjectID) Compare(other ObjectID) int {
	return ulid.ULID(id).Compare(ulid.ULID(other))
}
