package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry[RankingStrategy]()
	registry.Register("WSJF", WSJFStrategy{})
	registry.Register("CostOfDelayStrategy", WSJFStrategy{})

	tests := []struct {
		name    string
		lookup  string
		wantErr bool
	}{
		{"exact name", "WSJF", false},
		{"case insensitive", "wsjf", false},
		{"strategy suffix added", "CostOfDelay", false},
		{"strategy suffix stripped", "WSJFStrategy", false},
		{"unknown name", "LIFO", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Resolve(tt.lookup)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "CONFIGURATION_ERROR", apperrors.ToDomainError(err).Code)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistryReplacesOnReRegister(t *testing.T) {
	type named struct{ name string }
	registry := NewRegistry[named]()
	registry.Register("x", named{"first"})
	registry.Register("X", named{"second"})

	got, err := registry.Resolve("x")
	require.NoError(t, err)
	assert.Equal(t, "second", got.name)
}

func TestExecuteStrategy(t *testing.T) {
	registry := NewRegistry[RankingStrategy]()
	registry.Register("WSJF", WSJFStrategy{})

	name, err := ExecuteStrategy(registry, "wsjf", func(s RankingStrategy) (string, error) {
		return s.Name(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "WSJF", name)

	_, err = ExecuteStrategy(registry, "missing", func(s RankingStrategy) (string, error) {
		return s.Name(), nil
	})
	assert.Error(t, err)
}
