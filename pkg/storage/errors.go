package storage

import "errors"

// Sentinel errors for directory lookups.
var (
	// ErrNotFound is returned when no tenant or principal matches a lookup.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by provisioning writers when a unique key
	// (subdomain, virtual host, or a token within one tenant) is already taken.
	ErrConflict = errors.New("record already exists")
)
