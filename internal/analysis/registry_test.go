package analysis

import (
	"context"
	"testing"
	"time"

	"agendawatch/internal/blobstore"
)

func TestRegistryDefaultProfile(t *testing.T) {
	store, err := blobstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store, time.Minute)
	p := r.Profile("springfield")
	if p.CriteriaKey != "criteria/springfield.txt" {
		t.Fatalf("unexpected default criteria key: %s", p.CriteriaKey)
	}
}

func TestRegistryRegisteredProfileWins(t *testing.T) {
	store, err := blobstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store, time.Minute)
	r.Register(Profile{Municipality: "springfield", CriteriaKey: "custom/criteria.txt", PropertyContext: "lot 12"})
	p := r.Profile("springfield")
	if p.CriteriaKey != "custom/criteria.txt" || p.PropertyContext != "lot 12" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestRegistryCriteriaCached(t *testing.T) {
	store, err := blobstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "criteria/springfield.txt", []byte("flag rezonings")); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store, time.Minute)
	got, err := r.Criteria(ctx, "springfield")
	if err != nil {
		t.Fatal(err)
	}
	if got != "flag rezonings" {
		t.Fatalf("unexpected criteria: %q", got)
	}

	// Overwrite the blob; the cached copy should still be served within TTL.
	if _, err := store.Put(ctx, "criteria/springfield.txt", []byte("changed")); err != nil {
		t.Fatal(err)
	}
	got, err = r.Criteria(ctx, "springfield")
	if err != nil {
		t.Fatal(err)
	}
	if got != "flag rezonings" {
		t.Fatalf("expected cached criteria, got %q", got)
	}
}

func TestRegistryCriteriaMissing(t *testing.T) {
	store, err := blobstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(store, time.Minute)
	if _, err := r.Criteria(context.Background(), "nowhere"); err == nil {
		t.Fatal("expected error for missing criteria document")
	}
}
