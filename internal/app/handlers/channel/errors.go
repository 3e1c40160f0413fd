package channel

import "errors"

// ErrDatesClash marks an import whose dates are already taken on the
// property. Unlike a duplicate import this is a validation failure the
// channel must resolve, not a conflict on the external id.
var ErrDatesClash = errors.New("channel: requested dates are unavailable")
