package tenants

import "errors"

var ErrNotFound = errors.New("tenant not found")
