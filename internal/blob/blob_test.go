package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStorePutGet(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "exports/a.zip", strings.NewReader("payload"), PutOptions{
		ContentType: "application/zip",
		Metadata:    map[string]string{"stages": "12"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/a.zip" || info.Size != int64(len("payload")) {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err := store.Put(ctx, "exports/a.zip", strings.NewReader("other"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate key, got %v", err)
	}

	got, rc, err := store.Get(ctx, "exports/a.zip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", body)
	}
	if got.ContentType != "application/zip" || got.Metadata["stages"] != "12" {
		t.Fatalf("metadata lost: %+v", got)
	}

	head, err := store.Head(ctx, "exports/a.zip")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != info.Size {
		t.Fatalf("head size %d, want %d", head.Size, info.Size)
	}

	if _, err := store.Head(ctx, "exports/missing.zip"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func testStoreListDelete(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	for _, key := range []string{"exports/b.zip", "exports/c.zip", "other/d.zip"} {
		if _, err := store.Put(ctx, key, strings.NewReader(key), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 keys under exports/, got %d", len(infos))
	}
	if infos[0].Key > infos[1].Key {
		t.Fatalf("list not sorted: %q before %q", infos[0].Key, infos[1].Key)
	}

	existed, err := store.Delete(ctx, "exports/b.zip")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}

	infos, err = store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 key after delete, got %d", len(infos))
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store.Driver() != DriverMemory {
		t.Fatalf("driver %q", store.Driver())
	}
	testStorePutGet(t, store)
	// List expectations assume a store holding only the helper's keys.
	testStoreListDelete(t, NewMemoryStore())

	// Deleting a missing key is a no-op, not an error.
	existed, err := store.Delete(context.Background(), "nope")
	if err != nil || existed {
		t.Fatalf("delete missing: existed=%v err=%v", existed, err)
	}
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver %q", store.Driver())
	}
	testStorePutGet(t, store)

	fresh, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	testStoreListDelete(t, fresh)

	existed, err := store.Delete(context.Background(), "nope")
	if err != nil || existed {
		t.Fatalf("delete missing: existed=%v err=%v", existed, err)
	}
}

func TestFSStoreComputesETag(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	info, err := store.Put(context.Background(), "a.txt", strings.NewReader("content"), PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(info.ETag) != 64 {
		t.Fatalf("expected sha256 hex etag, got %q", info.ETag)
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"exports/file.zip", true},
		{"file.zip", true},
		{"", false},
		{"   ", false},
		{"../escape", false},
		{"/absolute", false},
		{"a/../../b", false},
	}
	for _, tc := range cases {
		_, err := sanitizeKey(tc.key)
		if tc.ok && err != nil {
			t.Fatalf("key %q rejected: %v", tc.key, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("key %q accepted", tc.key)
		}
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv("LIFECYCLE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver %q, want memory", store.Driver())
	}

	t.Setenv("LIFECYCLE_BLOB_DRIVER", "fs")
	t.Setenv("LIFECYCLE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver %q, want fs", store.Driver())
	}

	t.Setenv("LIFECYCLE_BLOB_DRIVER", "bogus")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	t.Setenv("LIFECYCLE_BLOB_DRIVER", "s3")
	t.Setenv("LIFECYCLE_BLOB_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected error when s3 bucket is unset")
	}
}
