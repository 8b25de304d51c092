//go:build cucumber

package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"quotagate/internal/fakeupstream"
	"quotagate/pkg/gateway"
)

// TestGatewayFeatures executes the gateway feature scenarios via godog.
func TestGatewayFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "gateway",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("testdata", "features")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires step definitions for the gateway feature tests.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &gatewayState{}
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		state.close()
		return ctx, nil
	})

	ctx.Step(`^a gateway with quota (\d+) per (\d+) milliseconds over (\d+) cores$`, state.givenGateway)
	ctx.Step(`^the upstream answers "([^"]+)" to the next call$`, state.upstreamAnswers)
	ctx.Step(`^the upstream times out on the next (\d+) calls$`, state.upstreamTimesOut)
	ctx.Step(`^I make (\d+) calls$`, state.makeCalls)
	ctx.Step(`^(\d+) tokens are left$`, state.tokensLeft)
	ctx.Step(`^the next call succeeds after at least (\d+) milliseconds$`, state.nextCallWaits)
	ctx.Step(`^every call succeeded$`, state.everyCallSucceeded)
	ctx.Step(`^the gateway state is "([^"]+)" with sub-state "([^"]+)"$`, state.stateIs)
	ctx.Step(`^the gateway becomes "([^"]+)"$`, state.becomes)
	ctx.Step(`^the next call fails with "([^"]+)"$`, state.nextCallFails)
	ctx.Step(`^the service status is checked$`, state.checkStatus)
	ctx.Step(`^every core has its full lease$`, state.fullLeases)
	ctx.Step(`^every policy counter is (\d+)$`, state.policyCounters)
}

// gatewayState holds scenario state for the feature tests.
type gatewayState struct {
	admin *gateway.Admin
	up    *fakeupstream.Upstream
	errs  []error
}

func (s *gatewayState) close() {
	if s.admin != nil {
		_ = s.admin.Close()
	}
	*s = gatewayState{}
}

func (s *gatewayState) givenGateway(count, windowMs, cores int) error {
	s.up = fakeupstream.NewUpstream()
	admin, err := gateway.New(gateway.Config{
		Quota:            gateway.Quota{Count: count, Window: time.Duration(windowMs) * time.Millisecond},
		Cores:            cores,
		Policy:           gateway.DefaultPolicyConfig(),
		Probe:            s.up.Probe(),
		SyncPollInterval: 5 * time.Millisecond,
	}, s.up.Factory())
	if err != nil {
		return err
	}
	s.admin = admin
	return admin.Init(context.Background())
}

func (s *gatewayState) upstreamAnswers(code string) error {
	s.up.PushCalls(fakeupstream.Status(code))
	return nil
}

func (s *gatewayState) upstreamTimesOut(n int) error {
	for i := 0; i < n; i++ {
		s.up.PushCalls(fakeupstream.Timeout())
	}
	return nil
}

func (s *gatewayState) makeCalls(n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		_, err := s.admin.GetData(ctx, s.up.Method())
		s.errs = append(s.errs, err)
	}
	return nil
}

func (s *gatewayState) tokensLeft(n int) error {
	if got := s.admin.Snapshot().Left(); got != n {
		return fmt.Errorf("expected %d tokens left, got %d", n, got)
	}
	return nil
}

func (s *gatewayState) nextCallWaits(ms int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	if _, err := s.admin.GetData(ctx, s.up.Method()); err != nil {
		return err
	}
	if elapsed := time.Since(start); elapsed < time.Duration(ms)*time.Millisecond {
		return fmt.Errorf("call returned after %s", elapsed)
	}
	return nil
}

func (s *gatewayState) everyCallSucceeded() error {
	for i, err := range s.errs {
		if err != nil {
			return fmt.Errorf("call %d failed: %w", i, err)
		}
	}
	return nil
}

func (s *gatewayState) stateIs(state, sub string) error {
	snap := s.admin.Snapshot()
	if snap.State.String() != state || snap.SubState.String() != sub {
		return fmt.Errorf("expected %s/%s, got %s/%s", state, sub, snap.State, snap.SubState)
	}
	return nil
}

func (s *gatewayState) becomes(state string) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.admin.State().String() == state {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("expected state %s, got %s", state, s.admin.State())
}

func (s *gatewayState) nextCallFails(message string) error {
	_, err := s.admin.GetData(context.Background(), s.up.Method())
	if err == nil || !strings.Contains(err.Error(), message) {
		return fmt.Errorf("expected error containing %q, got %v", message, err)
	}
	if !errors.Is(err, gateway.ErrServiceUnavailable) {
		return fmt.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	return nil
}

func (s *gatewayState) checkStatus() error {
	if !s.admin.CheckServiceStatus(context.Background()) {
		return fmt.Errorf("service status check failed")
	}
	return nil
}

func (s *gatewayState) fullLeases() error {
	for _, core := range s.admin.Snapshot().Cores {
		if core.Left != core.Capacity {
			return fmt.Errorf("core %d has %d of %d", core.Index, core.Left, core.Capacity)
		}
	}
	return nil
}

func (s *gatewayState) policyCounters(want int) error {
	for family, counts := range s.admin.Snapshot().Policy {
		for i, count := range counts {
			if count != want {
				return fmt.Errorf("%s[%d] = %d", family, i, count)
			}
		}
	}
	return nil
}
