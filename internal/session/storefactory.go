package session

import (
	"fmt"
	"log"
)

// NewStore builds a session store from configuration. Supported types are
// "memory" and "redis".
func NewStore(storeType, address string) (Store, error) {
	switch storeType {
	case "", "memory":
		log.Print("using in-memory session store")
		return NewMemoryStore(), nil
	case "redis":
		store, err := NewRedisStore(address)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis session store: %w", err)
		}
		log.Printf("using redis session store at %s", address)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", storeType)
	}
}
