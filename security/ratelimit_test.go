package security

import (
	"fmt"
	"testing"
)

func TestGuardAllowsWithinBurst(t *testing.T) {
	g := NewGuard(6, 3, nil)

	for i := 0; i < 3; i++ {
		if !g.Allow("client-a") {
			t.Fatalf("call %d within burst was denied", i+1)
		}
	}
	if g.Allow("client-a") {
		t.Error("call beyond burst was allowed")
	}
}

func TestGuardPerClientIsolation(t *testing.T) {
	g := NewGuard(6, 1, nil)

	if !g.Allow("client-a") {
		t.Fatal("first call for client-a denied")
	}
	if g.Allow("client-a") {
		t.Error("second immediate call for client-a allowed")
	}
	if !g.Allow("client-b") {
		t.Error("client-b should have its own bucket")
	}
}

func TestGuardDisabled(t *testing.T) {
	g := NewGuard(0, 1, nil)
	for i := 0; i < 100; i++ {
		if !g.Allow("client-a") {
			t.Fatal("disabled guard denied a call")
		}
	}
}

func TestGuardReset(t *testing.T) {
	g := NewGuard(6, 1, nil)

	if !g.Allow("client-a") {
		t.Fatal("first call denied")
	}
	if g.Allow("client-a") {
		t.Fatal("second call should be denied before reset")
	}

	g.Reset("client-a")
	if !g.Allow("client-a") {
		t.Error("call after Reset denied")
	}
}

func TestGuardEntryLimit(t *testing.T) {
	g := NewGuard(6, 1, nil)

	for i := 0; i < guardMaxEntries; i++ {
		if !g.Allow(fmt.Sprintf("client-%d", i)) {
			t.Fatalf("call for client-%d denied before limit", i)
		}
	}
	if g.Allow("client-overflow") {
		t.Error("guard accepted an identifier beyond the entry limit")
	}
}
