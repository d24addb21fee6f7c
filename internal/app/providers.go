package app

import (
	"fmt"

	"github.com/pulsefeed/pulsefeed-backend/internal/platform/envutil"
)

// StateProvider selects the backing for cache, engagement counters and
// viewed sets. Memory mode exists for local runs and tests; redis is the
// production default.
type StateProvider string

const (
	StateProviderRedis  StateProvider = "redis"
	StateProviderMemory StateProvider = "memory"
)

type VectorProvider string

const (
	VectorProviderQdrant VectorProvider = "qdrant"
	VectorProviderMemory VectorProvider = "memory"
)

func resolveStateProvider() (StateProvider, error) {
	mode := StateProvider(envutil.String("STATE_PROVIDER", string(StateProviderRedis)))
	switch mode {
	case StateProviderRedis, StateProviderMemory:
		return mode, nil
	}
	return "", fmt.Errorf("invalid STATE_PROVIDER %q (want %q or %q)", mode, StateProviderRedis, StateProviderMemory)
}

func resolveVectorProvider() (VectorProvider, error) {
	mode := VectorProvider(envutil.String("VECTOR_PROVIDER", string(VectorProviderQdrant)))
	switch mode {
	case VectorProviderQdrant, VectorProviderMemory:
		return mode, nil
	}
	return "", fmt.Errorf("invalid VECTOR_PROVIDER %q (want %q or %q)", mode, VectorProviderQdrant, VectorProviderMemory)
}
