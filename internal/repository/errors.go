// Package repository defines error types that are reused across multiple
// repositories and services. These sentinel values allow higher layers
// such as handlers to distinguish between different failure scenarios
// with errors.Is. For example, ErrConflict signals that a seat already
// carries a live hold, while ErrInsufficientFunds tells the client the
// debit was larger than the balance.
package repository

import "errors"

// ErrNotFound is returned when a token, reservation, seat, schedule or
// balance row does not exist. Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, or presents a queue token that has not been
// admitted. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a seat already has a reservation in a
// live state (HELD or CONFIRMED). Handlers translate this into HTTP 409.
var ErrConflict = errors.New("seat already held")

// ErrInvalidState is returned when a state-machine precondition fails,
// e.g. paying for a reservation that is no longer HELD.
var ErrInvalidState = errors.New("invalid state")

// ErrExpired is returned when the target's TTL deadline has passed,
// e.g. paying for a hold past its expiry.
var ErrExpired = errors.New("expired")

// ErrInsufficientFunds is returned when a debit exceeds the current
// point balance. The whole surrounding transaction is rolled back.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvalidArgument is returned for requests that fail basic
// validation, such as a non-positive charge amount.
var ErrInvalidArgument = errors.New("invalid argument")
