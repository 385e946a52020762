// Package sudoloop keeps sudo credentials fresh for the duration of a
// packaging run. The daemon packaging variant starts it once; the loop
// is cancelled unconditionally when the run ends, on every exit path.
package sudoloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
	"github.com/magicbot/signal-rpm-packager/internal/utils/shell"
)

// DefaultInterval is comfortably inside the sudo timestamp timeout.
const DefaultInterval = 60 * time.Second

// Keepalive refreshes sudo credentials on a fixed interval.
type Keepalive struct {
	// Interval between refreshes; zero means DefaultInterval.
	Interval time.Duration
	// Refresh runs one credential refresh. Defaults to `sudo -v`;
	// replaceable in tests.
	Refresh func() error

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (k *Keepalive) refreshFunc() func() error {
	if k.Refresh != nil {
		return k.Refresh
	}
	return func() error {
		_, err := shell.ExecCmd("sudo -v", false, nil)
		return err
	}
}

// Start validates credentials once, then refreshes them in the
// background until Stop is called.
func (k *Keepalive) Start() error {
	log := logger.Logger()

	if err := k.refreshFunc()(); err != nil {
		return fmt.Errorf("acquiring sudo credentials: %w", err)
	}

	interval := k.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	k.done = make(chan struct{})

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := k.refreshFunc()(); err != nil {
					log.Warnf("sudo credential refresh failed: %v", err)
				}
			}
		}
	}()

	log.Debugf("Started sudo keepalive (interval %s)", interval)
	return nil
}

// Stop terminates the refresh loop. Safe to call multiple times and
// before Start.
func (k *Keepalive) Stop() {
	k.once.Do(func() {
		if k.cancel != nil {
			k.cancel()
			<-k.done
		}
	})
}
