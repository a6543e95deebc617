package blobstore

import (
	"context"
	"strings"
	"testing"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("agenda bytes")
	res, err := store.Put(ctx, "agendas/co/meeting.pdf", data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != int64(len(data)) || res.Hash == "" {
		t.Fatalf("unexpected put result: %+v", res)
	}

	got, err := store.Get(ctx, "agendas/co/meeting.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	ok, err := store.Exists(ctx, "agendas/co/meeting.pdf")
	if err != nil || !ok {
		t.Fatalf("expected blob to exist, ok=%v err=%v", ok, err)
	}
	ok, err = store.Exists(ctx, "agendas/co/missing.pdf")
	if err != nil || ok {
		t.Fatalf("expected missing blob, ok=%v err=%v", ok, err)
	}
}

func TestFilesystemStoreConfinesKeys(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(context.Background(), "../escape.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	// Traversal components are cleaned away; the blob stays under the root.
	if !strings.HasPrefix(store.path("../escape.txt"), root) {
		t.Fatalf("key escaped root: %s", store.path("../escape.txt"))
	}
}

func TestFilesystemStorePresignedURL(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	url, err := store.PresignedURL(context.Background(), "agendas/a.pdf", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "agendas/a.pdf") {
		t.Fatalf("unexpected url: %s", url)
	}
}
