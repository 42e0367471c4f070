//go:build consul

package deploy

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"autonet/pkg/errdefs"
)

// ConsulLock holds a Consul session lock so runs on different hosts
// exclude each other (requires build tag consul).
type ConsulLock struct {
	lock *consulapi.Lock
}

func NewConsulLock(addr, key string, log *zap.Logger) (StagingLock, error) {
	log.Info("using consul staging lock", zap.String("addr", addr), zap.String("key", key))
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w: %v", errdefs.ErrConnection, err)
	}
	lock, err := cli.LockKey(key)
	if err != nil {
		return nil, fmt.Errorf("consul lock %s: %w: %v", key, errdefs.ErrConnection, err)
	}
	return &ConsulLock{lock: lock}, nil
}

func (l *ConsulLock) Acquire() error {
	ch, err := l.lock.Lock(nil)
	if err != nil {
		return fmt.Errorf("consul lock acquire: %w: %v", errdefs.ErrConnection, err)
	}
	if ch == nil {
		return fmt.Errorf("consul lock held by another run: %w", errdefs.ErrUpload)
	}
	return nil
}

func (l *ConsulLock) Release() error {
	return l.lock.Unlock()
}
