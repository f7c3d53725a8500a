package types

import "errors"

/*
Sentinel errors for every failure kind the dispatcher reports outward.
Callers wrap them with context (fmt.Errorf("...: %w", Err...)) and the shell
matches with errors.Is, so the taxonomy stays stable while messages stay rich.
*/

var (
	ErrNoDatabaseSelected = errors.New("no database selected")
	ErrDatabaseNotFound   = errors.New("database not found")
	ErrDatabaseExists     = errors.New("database already exists")

	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")

	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")

	ErrAttributeNotFound   = errors.New("attribute not found")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrValueLengthOverflow = errors.New("value length overflow")

	ErrPrimaryKeyConflict = errors.New("primary key conflict")

	// ErrIO is fatal to the current statement; disk state for the failing
	// block is left unchanged.
	ErrIO = errors.New("i/o error")

	ErrParse = errors.New("parse error")
)
