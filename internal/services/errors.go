package services

import "errors"

var (
	// ErrInvalidStatusChange is returned for unknown status or eligibility names
	ErrInvalidStatusChange = errors.New("invalid status change")

	// ErrLogResolved is returned when an amendment log was already approved
	ErrLogResolved = errors.New("amendment log already resolved")
)
