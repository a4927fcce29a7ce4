package chain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCProvider_Failover(t *testing.T) {
	p, err := NewRPCProvider("https://primary.example", "https://secondary.example")
	require.NoError(t, err)

	url, err := p.GetCurrentURL()
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example", url)

	require.NoError(t, p.Failover())
	url, _ = p.GetCurrentURL()
	assert.Equal(t, "https://secondary.example", url)

	// Failover from secondary flips back to primary
	require.NoError(t, p.Failover())
	url, _ = p.GetCurrentURL()
	assert.Equal(t, "https://primary.example", url)
}

func TestRPCProvider_FailoverWithoutSecondary(t *testing.T) {
	p, err := NewRPCProvider("https://primary.example", "")
	require.NoError(t, err)

	assert.Error(t, p.Failover())
}

func TestRPCProvider_RequiresPrimary(t *testing.T) {
	_, err := NewRPCProvider("", "https://secondary.example")
	assert.Error(t, err)
}

func TestRPCProvider_HealthTracking(t *testing.T) {
	p, err := NewRPCProvider("https://primary.example", "https://secondary.example")
	require.NoError(t, err)

	assert.True(t, p.IsHealthy())

	for i := 0; i < 5; i++ {
		p.RecordFailure(errors.New("boom"))
	}
	assert.False(t, p.IsHealthy())

	// One success resets the consecutive failure count
	p.RecordSuccess(10 * time.Millisecond)
	assert.True(t, p.IsHealthy())

	health := p.GetHealth()
	assert.Equal(t, int64(6), health.TotalRequests)
	assert.Equal(t, int64(1), health.SuccessfulReqs)
	assert.Equal(t, int64(5), health.FailedReqs)
}

func TestShouldFailover(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", errors.New("429 Too Many Requests"), true},
		{"timeout", errors.New("context deadline exceeded"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"revert", errors.New("execution reverted: insufficient balance"), false},
		{"nonce", errors.New("nonce too low"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldFailover(tt.err))
		})
	}
}
