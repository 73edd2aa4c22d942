package billing

import (
	"fmt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

var (
	ErrPeriodNotFound   = fmt.Errorf("%w: billing period", shared.ErrNotFound)
	ErrAlreadyRetracted = fmt.Errorf("%w: billing period already retracted", shared.ErrConflict)
	ErrReceiptCollision = fmt.Errorf("%w: receipt number already issued", shared.ErrConflict)
	ErrMemberFrozen     = fmt.Errorf("%w: membership is frozen; unfreeze before changing payments", shared.ErrInvalidState)
	ErrDuplicateRequest = fmt.Errorf("%w: request with this idempotency key was already processed", shared.ErrConflict)
	ErrInvalidPayment   = fmt.Errorf("%w: invalid payment", shared.ErrBadRequest)
)
