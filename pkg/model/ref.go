package model

import (
	"strings"

	"github.com/google/uuid"
)

const refSeparator = ";"

// NewID mints a fresh data object identifier
func NewID() string {
	return uuid.New().String()
}

// CompositeRef references a data object at a given version.
//
// It is rendered as "<id>;<major>.<minor>".
type CompositeRef struct {
	ID      string
	Version Version
}

// NewRef builds a composite reference
func NewRef(id string, v Version) CompositeRef {
	return CompositeRef{ID: id, Version: v}
}

func (r CompositeRef) String() string {
	return r.ID + refSeparator + r.Version.String()
}

// ParseRef parses a composite reference
func ParseRef(s string) (CompositeRef, error) {
	parts := strings.Split(strings.TrimSpace(s), refSeparator)
	if len(parts) != 2 || parts[0] == "" {
		return CompositeRef{}, ErrMalformedRef.WrapMessage("%q", s)
	}
	v, err := ParseVersion(parts[1])
	if err != nil {
		return CompositeRef{}, ErrMalformedRef.Wrap(err)
	}
	return CompositeRef{ID: parts[0], Version: v}, nil
}

// MarshalText renders the reference as text
func (r CompositeRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a reference from text
func (r *CompositeRef) UnmarshalText(data []byte) error {
	ref, err := ParseRef(string(data))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
