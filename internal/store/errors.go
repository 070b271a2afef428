package store

import "errors"

// ErrNotFound indicates a missing resource or an ownership mismatch. The two
// cases are deliberately indistinguishable so existence never leaks to
// non-owners.
var ErrNotFound = errors.New("record not found")
