package main

import (
	"context"
	"strings"
	"testing"
)

func TestNewCompareCmd(t *testing.T) {
	cmd := NewCompareCmd()

	if !strings.HasPrefix(cmd.Use, "compare") {
		t.Errorf("use = %q, want compare prefix", cmd.Use)
	}
	for _, name := range []string{"list", "latest", "json"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s missing", name)
		}
	}
}

func TestResolveSessionIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("two positional IDs", func(t *testing.T) {
		base, target, err := resolveSessionIDs(ctx, nil, []string{"3", "7"}, false)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if base != 3 || target != 7 {
			t.Errorf("got (%d, %d), want (3, 7)", base, target)
		}
	})

	t.Run("missing arguments", func(t *testing.T) {
		if _, _, err := resolveSessionIDs(ctx, nil, nil, false); err == nil {
			t.Error("no IDs and no --latest should fail")
		}
	})

	t.Run("non-numeric ID", func(t *testing.T) {
		if _, _, err := resolveSessionIDs(ctx, nil, []string{"three", "7"}, false); err == nil {
			t.Error("non-numeric session ID should fail")
		}
	})
}
