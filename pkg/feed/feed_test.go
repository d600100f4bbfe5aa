package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
	"github.com/aluedeke/go-appfeed/pkg/releases"
	"github.com/aluedeke/go-appfeed/pkg/resolver"
)

func TestDocument_PreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.json")
	original := `{"name": "My Repo", "identifier": "org.example.repo", "apps": [{"name": "Old"}]}`
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Apps) != 1 || doc.Apps[0].Name != "Old" {
		t.Fatalf("unexpected apps %+v", doc.Apps)
	}

	doc.Apps = []App{{
		Name: "MyApp", BundleIdentifier: "com.example.myapp", Version: "1.0",
		VersionDate: "2024-05-01", Size: 10, DownloadURL: "https://example.invalid/a.ipa",
		LocalizedDescription: "Injected with None", IconURL: "https://example.invalid/i.png", Type: 1,
	}}
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["name"] != "My Repo" || out["identifier"] != "org.example.repo" {
		t.Errorf("top-level keys lost: %v", out)
	}
	if !strings.Contains(string(data), "\n    \"apps\": [") {
		t.Errorf("expected four space indentation:\n%s", data)
	}
}

func TestDocument_MissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "apps.json"))
	if err != nil || len(doc.Apps) != 0 {
		t.Fatalf("Load = %+v, %v", doc, err)
	}
	data, err := doc.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(data); err != nil {
		t.Errorf("empty feed should validate: %v", err)
	}
}

func TestValidate_RejectsBadEntries(t *testing.T) {
	bad := []string{
		`{}`,
		`{"apps": [{"name": "x"}]}`,
		`{"apps": [{"name": "x", "bundleIdentifier": "a", "version": "1", "versionDate": "yesterday", "size": 1, "downloadURL": "u", "localizedDescription": "", "iconURL": "", "type": 1}]}`,
		`{"apps": [{"name": "x", "bundleIdentifier": "a", "version": "1", "versionDate": "2024-01-01", "size": 1, "downloadURL": "u", "localizedDescription": "", "iconURL": "", "type": 3}]}`,
	}
	for _, doc := range bad {
		if err := Validate([]byte(doc)); err == nil {
			t.Errorf("expected validation error for %s", doc)
		}
	}
}

type fakeSource struct {
	assets  []releases.Asset
	deleted []int64
}

func (f *fakeSource) Assets(context.Context) ([]releases.Asset, error) {
	return f.assets, nil
}

func (f *fakeSource) DeleteAsset(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeResolver map[string]resolver.Result

func (f fakeResolver) Resolve(_ context.Context, name, _ string) resolver.Result {
	if res, ok := f[name]; ok {
		return res
	}
	return resolver.Result{Outcome: resolver.Rejected, Reason: resolver.ReasonBadArchive, Err: errors.New("bad")}
}

func TestGenerator_Build(t *testing.T) {
	created := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	src := &fakeSource{assets: []releases.Asset{
		{ID: 1, Name: "MyApp_2.3.1_Tweak1_Tweak2@x.ipa", CreatedAt: created, Size: 100, DownloadURL: "https://dl/1"},
		{ID: 2, Name: "checksums.txt", CreatedAt: created},
		{ID: 3, Name: "Evil_1.0_Bad.ipa", CreatedAt: created, DownloadURL: "https://dl/3"},
		{ID: 4, Name: "MyApp_2.3.0_Tweak1.ipa", CreatedAt: created, Size: 90, DownloadURL: "https://dl/4"},
	}}
	res := fakeResolver{
		"MyApp": {Outcome: resolver.Resolved, BundleID: "com.example.myapp", Genre: catalog.GenreGame},
		"Evil":  {Outcome: resolver.Rejected, Reason: resolver.ReasonUnsafe, Err: errors.New("marker")},
	}
	pruner, err := releases.NewPruner(src, releases.PolicyAuto, []string{string(resolver.ReasonUnsafe)}, nil)
	if err != nil {
		t.Fatal(err)
	}

	g := &Generator{
		Source:     src,
		Resolver:   res,
		Pruner:     pruner,
		Repository: "owner/repo",
		Logger:     log.New(io.Discard, "", 0),
	}
	apps, stats, err := g.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %+v", apps)
	}
	want := App{
		Name:                 "MyApp",
		BundleIdentifier:     "com.example.myapp",
		Version:              "2.3.1",
		VersionDate:          "2024-05-01",
		Size:                 100,
		DownloadURL:          "https://dl/1",
		LocalizedDescription: "Injected with Tweak1 Tweak2",
		IconURL:              "https://raw.githubusercontent.com/owner/repo/main/icons/com.example.myapp.png",
		Type:                 2,
	}
	if apps[0] != want {
		t.Errorf("got %+v\nwant %+v", apps[0], want)
	}
	if apps[1].Version != "2.3.0" {
		t.Errorf("unexpected second entry %+v", apps[1])
	}

	wantStats := Stats{Assets: 4, Skipped: 1, Resolved: 2, Rejected: 1, Deleted: 1}
	if stats != wantStats {
		t.Errorf("stats = %+v, want %+v", stats, wantStats)
	}
	if len(src.deleted) != 1 || src.deleted[0] != 3 {
		t.Errorf("deleted = %v", src.deleted)
	}
}

func TestGenerator_IconURLTemplate(t *testing.T) {
	g := &Generator{Repository: "o/r", IconURL: "https://cdn.example/{repo}/{bundleId}.png"}
	if got := g.iconURL("com.a"); got != "https://cdn.example/o/r/com.a.png" {
		t.Errorf("iconURL = %q", got)
	}
}
