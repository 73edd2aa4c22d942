package membership

import (
	"fmt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

// Domain errors for memberships.
var (
	ErrNotFound         = fmt.Errorf("%w: member", shared.ErrNotFound)
	ErrDuplicateContact = fmt.Errorf("%w: a member with this phone and email already exists", shared.ErrConflict)
	ErrCannotFreeze     = fmt.Errorf("%w: only active or expiring memberships can be frozen", shared.ErrInvalidState)
	ErrNotFrozen        = fmt.Errorf("%w: membership is not frozen", shared.ErrInvalidState)
	ErrNoFreezeRecord   = fmt.Errorf("%w: frozen membership has no freeze history entry", shared.ErrInvalidState)
	ErrStaleMember      = fmt.Errorf("%w: member changed concurrently", shared.ErrConflict)
	ErrUnknownBatch     = fmt.Errorf("%w: batch does not exist", shared.ErrBadRequest)
	ErrInvalidInput     = shared.ErrBadRequest
)
