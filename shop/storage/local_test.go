package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dfryer1193/storefront/shop/domain"
)

func TestLocalStore_PutExistsDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	up, err := store.Put(ctx, "mug.png", strings.NewReader("png bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if up.Path != "/uploads/mug.png" {
		t.Errorf("Path = %q, want %q", up.Path, "/uploads/mug.png")
	}
	if up.Size != int64(len("png bytes")) {
		t.Errorf("Size = %d, want %d", up.Size, len("png bytes"))
	}

	content, err := os.ReadFile(filepath.Join(dir, "mug.png"))
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(content) != "png bytes" {
		t.Errorf("content = %q, want %q", content, "png bytes")
	}

	exists, err := store.Exists(ctx, up.Path)
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true, nil", exists, err)
	}

	if err := store.Delete(ctx, up.Path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	exists, err = store.Exists(ctx, up.Path)
	if err != nil || exists {
		t.Errorf("Exists() after delete = %v, %v, want false, nil", exists, err)
	}

	// deleting a missing blob is not an error
	if err := store.Delete(ctx, up.Path); err != nil {
		t.Errorf("Delete() of missing blob error = %v", err)
	}
}

func TestLocalStore_PutDoesNotOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "a.png", strings.NewReader("one"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := store.Put(ctx, "a.png", strings.NewReader("two"), ""); err == nil {
		t.Error("Expected error when name already exists, got nil")
	}
}

func TestLocalStore_RejectsEscapingReferences(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	refs := []string{
		"/uploads/../secret",
		"/uploads/",
		"/uploads/a/b.png",
		"/etc/passwd",
		"mug.png",
		`/uploads/..\x.png`,
	}

	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			if err := store.Delete(ctx, ref); err == nil {
				t.Errorf("Delete(%q) expected error, got nil", ref)
			}
		})
	}

	if _, err := store.Put(ctx, "../x.png", strings.NewReader("x"), ""); err == nil {
		t.Error("Put() with path separator expected error, got nil")
	}
}

func TestLocalStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{"a.png", "b.gif"} {
		if _, err := store.Put(ctx, name, strings.NewReader(name), ""); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	blobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(blobs))
	}
	if blobs[0].Ref != "/uploads/a.png" || blobs[1].Ref != "/uploads/b.gif" {
		t.Errorf("refs = %q, %q", blobs[0].Ref, blobs[1].Ref)
	}
	if blobs[0].ModTime.IsZero() {
		t.Error("ModTime should be set")
	}
}

func TestLocalStore_Open(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR0000"
	up, err := store.Put(ctx, "mug.png", strings.NewReader(png), "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rc, info, err := store.Open(ctx, up.Path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != png {
		t.Errorf("body = %q, want the stored bytes", body)
	}
	if info.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", info.ContentType)
	}
	if info.Size != int64(len(png)) {
		t.Errorf("Size = %d, want %d", info.Size, len(png))
	}

	for _, ref := range []string{"/uploads/missing.png", "/uploads/../secret", "not-a-ref"} {
		_, _, err := store.Open(ctx, ref)
		var notFound *domain.NotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("Open(%q) error = %v, want NotFoundError", ref, err)
		}
	}
}
