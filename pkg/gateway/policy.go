package gateway

import (
	"slices"
	"sync"
)

// Verdict is the policy decision for one outcome.
type Verdict int

const (
	// Pass keeps the breaker closed.
	Pass Verdict = iota
	// Trip asks the Admin to open the breaker.
	Trip
)

// String returns the verdict name.
func (v Verdict) String() string {
	if v == Trip {
		return "trip"
	}
	return "pass"
}

// Outcome keys of the api_error family.
const (
	KeyTimeout = "timeout"
	KeyError   = "error"
)

// Outcome families a continuous run belongs to.
const (
	FamilyStatusCode = "status_code"
	FamilyAPIError   = "api_error"
)

// RunRule trips the breaker after Threshold consecutive outcomes whose key is
// in Keys.
type RunRule struct {
	Keys      []string `yaml:"keys"`
	Threshold int      `yaml:"threshold"`
}

// PolicyConfig configures an UnavailabilityPolicy.
type PolicyConfig struct {
	// Critical status codes trip on their first occurrence.
	Critical   []string  `yaml:"critical"`
	StatusRuns []RunRule `yaml:"status_runs"`
	ErrorRuns  []RunRule `yaml:"error_runs"`
}

// DefaultPolicyConfig returns the breaker rules used when none are configured.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Critical: []string{StatusUnauthorized},
		StatusRuns: []RunRule{{
			Keys:      []string{StatusBadRequest, StatusUnauthorized, StatusInternalError, StatusServiceUnavailable},
			Threshold: 3,
		}},
		ErrorRuns: []RunRule{{
			Keys:      []string{KeyTimeout, KeyError},
			Threshold: 3,
		}},
	}
}

// runCounter is one continuous run with its shared counter.
type runCounter struct {
	keys      []string
	threshold int
	count     int
}

// UnavailabilityPolicy decides when a stream of outcomes should open the
// breaker.
type UnavailabilityPolicy struct {
	mu       sync.Mutex
	critical []string
	families map[string][]*runCounter
}

// NewUnavailabilityPolicy builds a policy from cfg.
func NewUnavailabilityPolicy(cfg PolicyConfig) *UnavailabilityPolicy {
	p := &UnavailabilityPolicy{
		critical: slices.Clone(cfg.Critical),
		families: map[string][]*runCounter{
			FamilyStatusCode: newRunCounters(cfg.StatusRuns),
			FamilyAPIError:   newRunCounters(cfg.ErrorRuns),
		},
	}
	return p
}

// newRunCounters converts rules into zeroed counters.
func newRunCounters(rules []RunRule) []*runCounter {
	counters := make([]*runCounter, 0, len(rules))
	for _, rule := range rules {
		counters = append(counters, &runCounter{keys: slices.Clone(rule.Keys), threshold: rule.Threshold})
	}
	return counters
}

// PushStatusCode records a response status.
func (p *UnavailabilityPolicy) PushStatusCode(code string) Verdict {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.critical, code) {
		return Trip
	}
	return p.push(FamilyStatusCode, code)
}

// PushTimeout records an upstream timeout.
func (p *UnavailabilityPolicy) PushTimeout() Verdict {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.push(FamilyAPIError, KeyTimeout)
}

// PushError records a transport or client error.
func (p *UnavailabilityPolicy) PushError() Verdict {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.push(FamilyAPIError, KeyError)
}

// Reset zeroes every counter.
func (p *UnavailabilityPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// Counters returns the current count of every run, keyed by family.
func (p *UnavailabilityPolicy) Counters() map[string][]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]int, len(p.families))
	for family, runs := range p.families {
		counts := make([]int, len(runs))
		for i, run := range runs {
			counts[i] = run.count
		}
		out[family] = counts
	}
	return out
}

// push applies key to the first run of family that lists it. A key matching
// no run resets every counter in every family.
func (p *UnavailabilityPolicy) push(family, key string) Verdict {
	for _, run := range p.families[family] {
		if !slices.Contains(run.keys, key) {
			continue
		}
		run.count++
		if run.count >= run.threshold {
			return Trip
		}
		return Pass
	}
	p.resetLocked()
	return Pass
}

// resetLocked zeroes counters. Callers hold p.mu.
func (p *UnavailabilityPolicy) resetLocked() {
	for _, runs := range p.families {
		for _, run := range runs {
			run.count = 0
		}
	}
}
