//go:build !consul

package deploy

import (
	"go.uber.org/zap"
)

// NewConsulLock falls back to the local flock when the binary was built
// without the consul tag. The warning is deliberate: operators who asked
// for a distributed lock should know they are not getting one.
func NewConsulLock(addr, key string, log *zap.Logger) (StagingLock, error) {
	log.Warn("consul lock requested but binary built without consul support; using local flock",
		zap.String("addr", addr), zap.String("key", key))
	return NewFlockLock("/var/lock/autonet"), nil
}
