package ecs

import "errors"

var (
	// ErrCapacityExceeded is returned when a kind has no free slot left.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidReference is returned for destroyed, stale or foreign refs.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrPropertyTypeMismatch is returned when a descriptor value does not fit the declared property type.
	ErrPropertyTypeMismatch = errors.New("property type mismatch")
	// ErrMissingDependency is returned when a cascade-owned resource could not be created.
	ErrMissingDependency = errors.New("missing dependency")

	ErrDuplicateName      = errors.New("duplicate resource name")
	ErrEmptyName          = errors.New("empty resource name")
	ErrDuplicateComponent = errors.New("entity already has a component of this kind")
	ErrUnknownKind        = errors.New("unknown kind")
)
