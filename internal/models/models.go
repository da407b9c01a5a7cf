package models

import (
	"errors"
	"fmt"
)

// Collection is an independently keyed partition of the response cache.
type Collection string

const (
	// Searches holds UniProt search results keyed by query text.
	Searches Collection = "searches"
	// Structures holds structure payloads keyed by UniProt accession.
	Structures Collection = "structures"
)

// Collections lists every known collection.
var Collections = []Collection{Searches, Structures}

// ErrUnknownCollection is returned for a collection name outside Collections.
var ErrUnknownCollection = errors.New("unknown cache collection")

// ParseCollection validates a collection name.
func ParseCollection(name string) (Collection, error) {
	switch c := Collection(name); c {
	case Searches, Structures:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == Searches || c == Structures
}
