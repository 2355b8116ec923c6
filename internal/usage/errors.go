package usage

import "errors"

// ErrLimitReached indicates the tenant reached its monthly PDF cap.
var ErrLimitReached = errors.New("limit reached")
