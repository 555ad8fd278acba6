// Package services defines the business logic for the recipe bot: webhook
// processing, rotation, grocery predictions, and the daily push. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Note the deliberate non-errors: a duplicate event is dropped silently, an
// exhausted pool is a normal response, and an unknown intent gets the
// fallback reply. Only genuine failures surface here.
package services

import "errors"

var (
	// ErrPoolEmpty is returned when rotation runs against an unseeded
	// candidate pool. Distinct from exhaustion, which is a normal outcome.
	ErrPoolEmpty = errors.New("recipe pool is empty")

	// ErrNoRecipient is returned when the daily push fires without a
	// configured recipient phone number.
	ErrNoRecipient = errors.New("no recipient phone number configured")

	// ErrNoPatterns is returned when prediction input produced no usable
	// purchase patterns.
	ErrNoPatterns = errors.New("no purchase patterns available")

	// ErrPredictionFailed wraps failures of the prediction collaborator.
	ErrPredictionFailed = errors.New("prediction failed")
)
