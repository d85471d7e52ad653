// Package storage defines the read side of the tenant and principal
// directory shared by all directory backends (memory, postgres, redis).
//
// Records are owned and mutated by an external provisioning collaborator.
// Everything in this package, and every Directory implementation, is
// read-only from the point of view of request processing.
package storage
