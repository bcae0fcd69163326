package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidBoard      = errors.New("invalid board")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidRank       = errors.New("invalid rank")
	ErrInvalidColumnID   = errors.New("invalid column id")
	ErrInvalidRecordType = errors.New("invalid record type")
	ErrEmptyPatch        = errors.New("empty patch")
)
