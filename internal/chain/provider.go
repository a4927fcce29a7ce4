package chain

import (
	"fmt"
	"sync"
	"time"
)

// RPCProvider tracks primary and secondary RPC endpoints with health
// accounting, and flips between them on failover.
type RPCProvider struct {
	mu sync.RWMutex

	primaryURL   string
	secondaryURL string
	currentURL   string

	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	consecutiveFails int

	maxConsecutiveFails int
	minSuccessRate      float64
}

// ProviderHealth represents the health status of an RPC provider
type ProviderHealth struct {
	CurrentURL       string        `json:"currentUrl"`
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	LastSuccess      time.Time     `json:"lastSuccess"`
	LastFailure      time.Time     `json:"lastFailure"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
}

// NewRPCProvider creates a new RPC provider with primary and optional secondary URLs
func NewRPCProvider(primaryURL, secondaryURL string) (*RPCProvider, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary URL cannot be empty")
	}

	return &RPCProvider{
		primaryURL:          primaryURL,
		secondaryURL:        secondaryURL,
		currentURL:          primaryURL,
		maxConsecutiveFails: 5,
		minSuccessRate:      0.5,
	}, nil
}

// GetCurrentURL returns the currently active RPC endpoint URL
func (p *RPCProvider) GetCurrentURL() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.currentURL == "" {
		return "", fmt.Errorf("no active URL configured")
	}

	return p.currentURL, nil
}

// Failover switches between the primary and secondary endpoint
func (p *RPCProvider) Failover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentURL == p.primaryURL {
		if p.secondaryURL == "" {
			return fmt.Errorf("no secondary provider configured")
		}
		p.currentURL = p.secondaryURL
		return nil
	}

	p.currentURL = p.primaryURL
	return nil
}

// RecordSuccess records a successful request for health tracking
func (p *RPCProvider) RecordSuccess(duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRequests++
	p.successfulReqs++
	p.totalLatency += duration
	p.lastSuccess = time.Now()
	p.consecutiveFails = 0
}

// RecordFailure records a failed request for health tracking
func (p *RPCProvider) RecordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRequests++
	p.failedReqs++
	p.lastFailure = time.Now()
	p.consecutiveFails++
}

// GetHealth returns the current health status of the provider
func (p *RPCProvider) GetHealth() *ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var successRate float64
	if p.totalRequests > 0 {
		successRate = float64(p.successfulReqs) / float64(p.totalRequests)
	}

	var avgLatency time.Duration
	if p.successfulReqs > 0 {
		avgLatency = p.totalLatency / time.Duration(p.successfulReqs)
	}

	return &ProviderHealth{
		CurrentURL:       p.currentURL,
		TotalRequests:    p.totalRequests,
		SuccessfulReqs:   p.successfulReqs,
		FailedReqs:       p.failedReqs,
		SuccessRate:      successRate,
		AverageLatency:   avgLatency,
		LastSuccess:      p.lastSuccess,
		LastFailure:      p.lastFailure,
		ConsecutiveFails: p.consecutiveFails,
		IsHealthy:        p.isHealthyLocked(),
	}
}

// IsHealthy returns true if the provider is considered healthy
func (p *RPCProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.isHealthyLocked()
}

// isHealthyLocked checks health status (must be called with lock held)
func (p *RPCProvider) isHealthyLocked() bool {
	if p.consecutiveFails >= p.maxConsecutiveFails {
		return false
	}

	if p.totalRequests >= 10 {
		successRate := float64(p.successfulReqs) / float64(p.totalRequests)
		if successRate < p.minSuccessRate {
			return false
		}
	}

	return true
}

// Reset resets the provider to use the primary endpoint
func (p *RPCProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentURL = p.primaryURL
	p.consecutiveFails = 0
}
