package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeContentHash(t *testing.T) {
	base := ComputeContentHash("My printer is  broken", "user-1")

	tests := []struct {
		name        string
		description string
		requester   string
		wantEqual   bool
	}{
		{"identical input", "My printer is  broken", "user-1", true},
		{"case differences collapse", "MY PRINTER IS BROKEN", "user-1", true},
		{"whitespace runs collapse", "  my   printer\tis broken  ", "user-1", true},
		{"leading whitespace collapses", "   My printer is  broken", "user-1", true},
		{"trailing whitespace collapses", "My printer is  broken\n", "user-1", true},
		{"different requester", "My printer is broken", "user-2", false},
		{"different description", "My monitor is broken", "user-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeContentHash(tt.description, tt.requester)
			assert.Len(t, got, 64)
			if tt.wantEqual {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}
