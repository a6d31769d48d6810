package docstore

import (
	"fmt"

	"github.com/msalah0e/mindmap/internal/config"
)

// Open returns the store selected by cfg. token is forwarded to remote
// backends and ignored by local ones.
func Open(cfg *config.Config, token string) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite, "":
		return OpenSQLite(cfg.StorePath())
	case config.BackendRemote:
		if cfg.Store.URL == "" {
			return nil, fmt.Errorf("store.url is required for the remote backend")
		}
		return NewRemote(cfg.Store.URL, token, cfg.SyncTimeout()), nil
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
