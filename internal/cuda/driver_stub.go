//go:build !cuda

package cuda

import (
	"fmt"

	"devicequery/internal/logging"
)

// Open reports the driver as unavailable when CUDA support is not
// compiled in.
func Open(logger *logging.Logger) (Session, error) {
	logger.Info("cuda.disabled", "CUDA driver support not built in", nil)
	return nil, fmt.Errorf("%w: built without CUDA support, rebuild with -tags cuda", ErrInitFailed)
}
