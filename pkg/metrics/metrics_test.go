package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromCounters(t *testing.T) {
	p := NewProm("appfeed")
	p.IncResolution("resolved")
	p.IncResolution("resolved")
	p.IncResolution("unsafe")
	p.IncCatalogLookup("miss")
	p.IncIconWritten("archive")

	if got := testutil.ToFloat64(p.resolutions.WithLabelValues("resolved")); got != 2 {
		t.Errorf("resolved = %v", got)
	}
	if got := testutil.ToFloat64(p.resolutions.WithLabelValues("unsafe")); got != 1 {
		t.Errorf("unsafe = %v", got)
	}

	// separate registries must not collide
	NewProm("appfeed")
}

func TestWriteTextfile(t *testing.T) {
	p := NewProm("appfeed")
	p.IncCatalogLookup("hit")

	path := filepath.Join(t.TempDir(), "appfeed.prom")
	if err := p.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `appfeed_catalog_lookups_total{result="hit"} 1`) {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}
