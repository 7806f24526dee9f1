// Package services defines the business logic for connection lifecycle,
// value propagation, and click aggregation. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into wire error codes is performed at the transport layer.
package services

import "errors"

// Connection lifecycle errors.
var (
	// ErrSelfConnection is returned when an identity requests a connection
	// to itself.
	ErrSelfConnection = errors.New("cannot connect to yourself")

	// ErrDuplicateConnection is returned when a non-terminal request
	// already exists for the unordered pair.
	ErrDuplicateConnection = errors.New("connection request already exists")

	// ErrConnectionBlocked is returned when the pair is blocked; no new
	// request is possible until an explicit unblock.
	ErrConnectionBlocked = errors.New("connection is blocked")

	// ErrConnectionNotFound indicates that the referenced connection does
	// not exist.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrUnauthorizedTransition is returned when the acting identity is not
	// permitted to perform the transition, or the request is not in the
	// state the transition requires.
	ErrUnauthorizedTransition = errors.New("not authorized to perform this transition")

	// ErrStaleState is returned when a concurrent writer completed a
	// conflicting transition first (first writer wins).
	ErrStaleState = errors.New("connection state changed concurrently")
)
