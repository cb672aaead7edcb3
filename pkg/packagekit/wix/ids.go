package wix

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultNamespace is the namespace that deterministic identifiers are
// derived from. Upgrade codes of every installer ever shipped depend
// on it. Do not change it.
var DefaultNamespace = uuid.MustParse("00dde158-c9df-4fb2-b4d0-b363906936ac")

// Identifiers derives the GUIDs used in a wix source.
type Identifiers struct {
	namespace uuid.UUID
}

// NewIdentifiers returns an Identifiers for the given namespace. A
// zero namespace means DefaultNamespace.
func NewIdentifiers(namespace uuid.UUID) Identifiers {
	if namespace == uuid.Nil {
		namespace = DefaultNamespace
	}
	return Identifiers{namespace: namespace}
}

// Deterministic returns the uppercase v5 uuid of name. It is stable
// across builds, and is used wherever windows compares ids between
// installs (upgrade codes, removal components).
func (ids Identifiers) Deterministic(name string) string {
	return strings.ToUpper(uuid.NewSHA1(ids.namespace, []byte(name)).String())
}

// Random returns a fresh v4 uuid. Never compare these across builds.
func (ids Identifiers) Random() string {
	return uuid.New().String()
}
