package icons

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

var (
	_ Store = (*DirStore)(nil)
	_ Store = (*S3Store)(nil)
)

func TestDirStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "icons")
	s := NewDirStore(dir)
	ctx := context.Background()

	if _, err := os.Stat(s.Path("com.example.app")); !os.IsNotExist(err) {
		t.Fatalf("empty store has an icon: %v", err)
	}
	if err := s.Put(ctx, "com.example.app", []byte("png")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "com.example.app", []byte("png")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "com.example.app.png"))
	if err != nil || string(data) != "png" {
		t.Fatalf("unexpected file contents %q, %v", data, err)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	tests := []S3Config{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for _, cfg := range tests {
		if _, err := NewS3Store(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestS3Store_Key(t *testing.T) {
	s, err := NewS3Store(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "feed",
		Prefix:    "/assets/icons/",
	})
	if err != nil {
		t.Fatalf("NewS3Store failed: %v", err)
	}
	if got := s.Key("com.example.app"); got != "assets/icons/com.example.app.png" {
		t.Errorf("Key = %q", got)
	}
}
