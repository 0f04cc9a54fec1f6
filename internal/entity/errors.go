package entity

import "errors"

var (
	// ErrUnknownType is returned for an entity type string outside the
	// supported enumeration.
	ErrUnknownType = errors.New("entity: unknown entity type")

	// ErrWrongType is returned when a desired state does not fit the
	// entity's configured type, e.g. a fan state sent to a light entity.
	ErrWrongType = errors.New("entity: state does not match entity type")

	// ErrBelowMinimum is returned when a commanded brightness is below the
	// configured floor while the light is on. Sub-minimum "on" states are a
	// configuration error, never a valid command.
	ErrBelowMinimum = errors.New("entity: brightness below configured minimum")

	// ErrSpeedRange is returned when a fan speed exceeds the entity's
	// declared speed count.
	ErrSpeedRange = errors.New("entity: fan speed out of range")
)
