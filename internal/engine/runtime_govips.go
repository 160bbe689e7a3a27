//go:build govips && cgo

package engine

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup(opts Options) error {
	startupOnce.Do(func() {
		cacheMB := opts.CacheMB
		if cacheMB <= 0 {
			cacheMB = 128
		}
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   cacheMB * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newEngine(opts Options) (Engine, error) {
	return &vipsEngine{opts: opts}, nil
}
