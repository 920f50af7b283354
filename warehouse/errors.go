package warehouse

import "errors"

// ErrNoData signals that the snapshot query returned zero rows, there is
// nothing to evaluate and the run should be retried by the scheduler
var ErrNoData = errors.New("warehouse returned no rows")
