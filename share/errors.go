package share

import (
	"context"
	"errors"
)

// IsContextClosedError reports whether err stems from a cancelled or timed
// out context, including wrapped transport errors.
func IsContextClosedError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
