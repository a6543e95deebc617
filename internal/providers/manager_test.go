package providers

import (
	"testing"
)

func TestNewManagerDefaultsToMock(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("empty provider list should yield 1 provider, got %d", m.Count())
	}
	_, ref := m.ByIndex(0)
	if ref.Name != "mock" {
		t.Fatalf("default provider = %s, want mock", ref.Name)
	}
}

func TestNewManagerPreservesConfiguredOrder(t *testing.T) {
	m, err := NewManager("mock|openai:primary")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Count() != 2 {
		t.Fatalf("expected 2 providers, got %d", m.Count())
	}
	if _, ref := m.ByIndex(0); ref.Name != "mock" {
		t.Fatalf("provider 0 = %s, want mock", ref.Name)
	}
	if _, ref := m.ByIndex(1); ref.Name != "openai" {
		t.Fatalf("provider 1 = %s, want openai", ref.Name)
	}
}

func TestManagerByIndexOutOfRangeFallsBackToFirst(t *testing.T) {
	m, err := NewManager("mock")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for _, i := range []int{-1, 5} {
		if _, ref := m.ByIndex(i); ref.Name != "mock" {
			t.Fatalf("ByIndex(%d) = %s, want first provider", i, ref.Name)
		}
	}
}

func TestNewManagerRejectsUnknownProvider(t *testing.T) {
	if _, err := NewManager("anthropic"); err == nil {
		t.Fatal("unsupported provider should fail construction")
	}
}
