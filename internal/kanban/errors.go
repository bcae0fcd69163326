package kanban

import "errors"

var (
	ErrUnknownBoard     = errors.New("unknown board")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrUnknownItem      = errors.New("unknown item")
	ErrItemBusy         = errors.New("item has an unresolved move")
	ErrDragInProgress   = errors.New("another drag is in progress")
	ErrNoDrag           = errors.New("no drag in progress")
	ErrStaleMove        = errors.New("stale move")
	ErrInvalidMoveState = errors.New("invalid move state")
	ErrNilStore         = errors.New("store is required")
)
