package kerberos

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/labgate/internal/logger"
)

// keytabPollInterval is the interval at which the keytab file is polled for changes.
const keytabPollInterval = 60 * time.Second

// reloader swaps in a freshly loaded keytab.
type reloader interface {
	ReloadKeytab() error
}

// KeytabManager polls a keytab file and reloads it when its modification
// time changes. Polling survives the rename-based replacement done by
// kadmin and k5srvutil.
type KeytabManager struct {
	path     string
	target   reloader
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	lastMod  time.Time
}

// NewKeytabManager creates a new keytab file manager (not yet started).
func NewKeytabManager(path string, target reloader) *KeytabManager {
	return &KeytabManager{
		path:     path,
		target:   target,
		interval: keytabPollInterval,
		stopCh:   make(chan struct{}),
	}
}

// Start records the current modification time and begins polling.
func (km *KeytabManager) Start() error {
	km.mu.Lock()
	defer km.mu.Unlock()

	info, err := os.Stat(km.path)
	if err != nil {
		return fmt.Errorf("keytab file not accessible: %w", err)
	}
	km.lastMod = info.ModTime()

	go km.pollLoop()

	logger.Info("Keytab hot-reload started",
		logger.Path(km.path),
		"poll_interval", km.interval.String())
	return nil
}

// Stop stops polling. It is safe to call more than once.
func (km *KeytabManager) Stop() {
	km.stopOnce.Do(func() { close(km.stopCh) })
}

func (km *KeytabManager) pollLoop() {
	ticker := time.NewTicker(km.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			km.checkAndReload()
		case <-km.stopCh:
			return
		}
	}
}

// checkAndReload reloads the keytab if the file changed. It reports
// whether a reload happened.
func (km *KeytabManager) checkAndReload() bool {
	km.mu.Lock()
	defer km.mu.Unlock()

	info, err := os.Stat(km.path)
	if err != nil {
		logger.Error("Keytab file stat failed", logger.Path(km.path), logger.Err(err))
		return false
	}

	modTime := info.ModTime()
	if modTime.Equal(km.lastMod) {
		return false
	}

	if err := km.target.ReloadKeytab(); err != nil {
		logger.Error("Keytab reload failed", logger.Path(km.path), logger.Err(err))
		return false
	}

	km.lastMod = modTime
	logger.Info("Keytab reloaded", logger.Path(km.path))
	return true
}

// loadKeytab reads and parses a keytab file.
func loadKeytab(path string) (*keytab.Keytab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keytab file: %w", err)
	}

	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab: %w", err)
	}
	return kt, nil
}
