package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents the high-level error categories of §7.
type ErrorCode string

const (
	// ErrOutOfMemory: a tier allocator has no free block. Surfaces only
	// through Allocate(); reaching it from within Step() indicates a
	// broken invariant and should abort the iteration.
	ErrOutOfMemory ErrorCode = "out of memory"
	// ErrDoubleFree: freeing a block whose ref_count is already 0. Always
	// a bug.
	ErrDoubleFree ErrorCode = "double free"
	// ErrUnknownSequence: looking up a seq_id with no block table. Always
	// a bug.
	ErrUnknownSequence ErrorCode = "unknown sequence"
	// ErrBlockSizeInvalid: construction-time rejection of block sizes
	// outside {8, 16, 32}.
	ErrBlockSizeInvalid ErrorCode = "invalid block size"
)

// Error is a structured error carrying the operation and identifiers
// involved.
type Error struct {
	Op      string // Operation that failed (e.g. "Allocate", "Append")
	GroupID int    // Sequence group id, 0 if not applicable
	SeqID   int    // Sequence id, -1 if not applicable
	Tier    Tier   // Memory tier involved
	HasTier bool   // Whether Tier is meaningful
	Code    ErrorCode
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.GroupID != 0 {
		parts = append(parts, fmt.Sprintf("group=%d", e.GroupID))
	}
	if e.SeqID >= 0 {
		parts = append(parts, fmt.Sprintf("seq=%d", e.SeqID))
	}
	if e.HasTier {
		parts = append(parts, fmt.Sprintf("tier=%s", e.Tier))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("pagedkv: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("pagedkv: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError creates a bare structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, SeqID: -1, Code: code, Msg: msg}
}

// NewGroupError creates an error scoped to a sequence group.
func NewGroupError(op string, groupID int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, GroupID: groupID, SeqID: -1, Code: code, Msg: msg}
}

// NewSeqError creates an error scoped to a single sequence.
func NewSeqError(op string, seqID int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, SeqID: seqID, Code: code, Msg: msg}
}

// NewTierError creates an error scoped to a tier allocator.
func NewTierError(op string, tier Tier, code ErrorCode, msg string) *Error {
	return &Error{Op: op, SeqID: -1, Tier: tier, HasTier: true, Code: code, Msg: msg}
}

// WrapError wraps inner with additional operation context, preserving code
// and identifiers if inner is already a *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if pe, ok := inner.(*Error); ok {
		return &Error{
			Op:      op,
			GroupID: pe.GroupID,
			SeqID:   pe.SeqID,
			Tier:    pe.Tier,
			HasTier: pe.HasTier,
			Code:    pe.Code,
			Msg:     pe.Msg,
			Inner:   pe.Inner,
		}
	}
	return &Error{Op: op, SeqID: -1, Msg: inner.Error(), Inner: inner}
}

// IsCode checks whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
