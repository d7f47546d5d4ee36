package monitor

import "errors"

// ErrAlreadyMonitoring is returned by Start while a previous Start is active.
// The caller must Stop first.
var ErrAlreadyMonitoring = errors.New("already monitoring")
