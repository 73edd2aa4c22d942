package schedule

import (
	"fmt"

	"github.com/gymdesk/gymdesk/internal/shared"
)

var (
	ErrBatchNotFound = fmt.Errorf("%w: batch", shared.ErrNotFound)
	ErrInvalidBatch  = fmt.Errorf("%w: invalid batch", shared.ErrBadRequest)
)
