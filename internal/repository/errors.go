package repository

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTxConflict = errors.New("transaction conflict, retries exhausted")
	ErrCorrupt    = errors.New("corrupt value")
	ErrReadOnly   = errors.New("write in read-only transaction")
)
