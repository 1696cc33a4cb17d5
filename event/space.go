package event

import "time"

// Space is a tenant namespace with isolated event sequencing and isolated
// projection data inside shared physical storage.
type Space struct {
	// ID is the storage-assigned space id.
	ID int64
	// Name uniquely identifies the space. Spaces are created on first use of
	// a name.
	Name string
	// Metadata carries operator-supplied annotations.
	Metadata map[string]string
	// CreatedAt is when the space was first registered.
	CreatedAt time.Time
}

// Checkpoint tracks how far a projection has consumed a space's event stream.
type Checkpoint struct {
	SpaceID           int64
	LastEventID       int64
	LastSpaceSequence int64
	UpdatedAt         time.Time
}
