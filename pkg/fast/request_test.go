package fast

import (
	"context"
	"slices"
	"testing"

	"quotagate/pkg/gateway"
)

func noopMethod(context.Context, gateway.Client, ...any) (gateway.Response, error) {
	return gateway.Response{Status: gateway.Status{Code: gateway.StatusOK}}, nil
}

func TestRequestAddAssignsNumericNames(t *testing.T) {
	req := NewRequest()
	first := req.Add(noopMethod, "a")
	second := req.Add(noopMethod, "b")
	if first != "0" || second != "1" {
		t.Fatalf("expected names 0 and 1, got %q and %q", first, second)
	}
	if req.Len() != 2 {
		t.Fatalf("expected 2 calls, got %d", req.Len())
	}
}

func TestRequestAddSkipsTakenNames(t *testing.T) {
	req := NewRequest()
	req.AddNamed("0", noopMethod)
	req.AddNamed("1", noopMethod)
	name := req.Add(noopMethod)
	if name != "2" {
		t.Fatalf("expected name 2, got %q", name)
	}
}

func TestRequestAddNamedReplaces(t *testing.T) {
	req := NewRequest()
	req.AddNamed("users", noopMethod, 1)
	req.AddNamed("orders", noopMethod, 2)
	req.AddNamed("users", noopMethod, 3)
	if req.Len() != 2 {
		t.Fatalf("expected 2 calls, got %d", req.Len())
	}
	if got := req.Names(); !slices.Equal(got, []string{"users", "orders"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if args := req.calls["users"].args; len(args) != 1 || args[0] != 3 {
		t.Fatalf("expected replaced args, got %v", args)
	}
}
