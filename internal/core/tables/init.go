// Package tables registers every import entity with the core registry.
// Import this package for its side effects to make the entities available.
package tables

// Entity keys.
const (
	CompanyKey    = "company"
	EmissionKey   = "emission"
	TargetKey     = "target"
	CommitmentKey = "commitment"
)

// Each entity file registers itself in init(); Go runs them in file name
// order, which is also a valid load order, but the registry sorts by
// DependsOn regardless.
