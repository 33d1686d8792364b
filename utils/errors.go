package utils

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrTextTooLong       = errors.New("text exceeds maximum length of 4000 characters")
	ErrNameTooLong       = errors.New("name exceeds maximum length of 100 characters")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// SecurityRejection is returned when input matches a blocked injection
// pattern or a disallowed destination. Always surfaced to the caller.
type SecurityRejection struct {
	Field   string
	Pattern string
}

func (e *SecurityRejection) Error() string {
	return fmt.Sprintf("%s rejected: matches blocked pattern %q", e.Field, e.Pattern)
}

// StorageError wraps a tier read/write failure with the tier that failed.
type StorageError struct {
	Tier string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s tier %s failed: %v", e.Tier, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CryptoError wraps an encryption or decryption failure. Writes degrade
// to plaintext, reads degrade to absent; see the vault package.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s failed: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// ValidationError is a user-correctable input problem, surfaced verbatim.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
