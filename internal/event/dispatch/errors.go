package dispatch

import "errors"

// ErrNilFunc is reported in a Result when Execute is given a nil function.
var ErrNilFunc = errors.New("nil handler function")
