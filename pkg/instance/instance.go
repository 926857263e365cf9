package instance

import "github.com/angelmondragon/getsum-node/pkg/env"

const defaultID = "getsum-worker-0"

// GetID returns the worker instance identifier stamped on published messages.
func GetID() string {
	return env.Get("GETSUM_WORKER_ID", defaultID)
}
