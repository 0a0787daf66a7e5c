package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
)

// backendError reduces a driver or SDK failure to ErrorBackendTimeout or
// ErrorBackend, keeping the original message.
func backendError(op, collection, key string, err error) error {
	kind := common.ErrorBackend
	if errors.Is(err, context.DeadlineExceeded) {
		kind = common.ErrorBackendTimeout
	}
	if key == "" {
		return fmt.Errorf("%w: %s %s: %v", kind, op, collection, err)
	}
	return fmt.Errorf("%w: %s %s/%s: %v", kind, op, collection, key, err)
}

func notFound(collection, key string) error {
	return fmt.Errorf("%w: %s/%s", common.ErrorNotFound, collection, key)
}
