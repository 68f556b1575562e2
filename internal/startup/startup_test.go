package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// =============================================================================
// Build info
// =============================================================================

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("GoVersion = %s, want %s", info.GoVersion, GoVersion)
	}
	if !strings.Contains(info.String(), info.Version) {
		t.Errorf("String() = %q, missing version", info.String())
	}
}

// =============================================================================
// Configuration
// =============================================================================

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	v := NewViper()
	v.Set(KeyDataDir, dataDir)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	checks := []struct {
		name      string
		got, want interface{}
	}{
		{"LibraryDir", cfg.LibraryDir, filepath.Join(dataDir, "gifs")},
		{"TagsFile", cfg.TagsFile, filepath.Join(dataDir, "tags.json")},
		{"DatabasePath", cfg.DatabasePath, filepath.Join(dataDir, "tags.db")},
		{"StoreBackend", cfg.StoreBackend, BackendJSON},
		{"IntakeDir", cfg.IntakeDir, ""},
		{"Extensions", strings.Join(cfg.Extensions, ","), ".gif"},
		{"Quiescence", cfg.Quiescence, 1500 * time.Millisecond},
		{"IntakeQuiescence", cfg.IntakeQuiescence, 2 * time.Second},
		{"SearchDebounce", cfg.SearchDebounce, 300 * time.Millisecond},
		{"Port", cfg.Port, 7373},
		{"MetricsEnabled", cfg.MetricsEnabled, false},
		{"MetricsPort", cfg.MetricsPort, 9393},
		{"ThumbnailCacheSize", cfg.ThumbnailCacheSize, 256},
		{"Addr", cfg.Addr(), "127.0.0.1:7373"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if entries, _ := os.ReadDir(dataDir); len(entries) != 0 {
		t.Errorf("LoadConfig created %d entries in the data directory", len(entries))
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("GIFFER_DATA_DIR", dataDir)
	t.Setenv("GIFFER_STORE_BACKEND", "SQLite")
	t.Setenv("GIFFER_EXTENSIONS", ".gif,.webp")
	t.Setenv("GIFFER_QUIESCENCE", "250ms")
	t.Setenv("GIFFER_PORT", "8088")
	t.Setenv("GIFFER_INTAKE_DIR", filepath.Join(dataDir, "inbox"))

	cfg, err := LoadConfig(NewViper())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %s, want %s", cfg.DataDir, dataDir)
	}
	if cfg.StoreBackend != BackendSQLite {
		t.Errorf("StoreBackend = %s, want sqlite", cfg.StoreBackend)
	}
	if got := strings.Join(cfg.Extensions, ","); got != ".gif,.webp" {
		t.Errorf("Extensions = %s", got)
	}
	if cfg.Quiescence != 250*time.Millisecond {
		t.Errorf("Quiescence = %v", cfg.Quiescence)
	}
	if cfg.Port != 8088 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.IntakeDir != filepath.Join(dataDir, "inbox") {
		t.Errorf("IntakeDir = %s", cfg.IntakeDir)
	}
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	yaml := "library_dir: " + filepath.Join(dataDir, "collection") + "\nsearch_debounce: 1s\nmetrics_enabled: true\n"
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFileName), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewViper()
	v.Set(KeyDataDir, dataDir)
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ConfigFile == "" {
		t.Error("expected ConfigFile to be recorded")
	}
	if cfg.LibraryDir != filepath.Join(dataDir, "collection") {
		t.Errorf("LibraryDir = %s", cfg.LibraryDir)
	}
	if cfg.SearchDebounce != time.Second {
		t.Errorf("SearchDebounce = %v", cfg.SearchDebounce)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"unknown backend", KeyStoreBackend, "postgres"},
		{"port out of range", KeyPort, 70000},
		{"zero quiescence", KeyQuiescence, "0s"},
		{"negative debounce", KeySearchDebounce, "-1s"},
		{"zero cache", KeyThumbnailCacheSize, 0},
		{"negative thumbnail workers", KeyThumbnailWorkers, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(KeyDataDir, t.TempDir())
			v.Set(tt.key, tt.value)
			if _, err := LoadConfig(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfig_IntakeMustDifferFromLibrary(t *testing.T) {
	dataDir := t.TempDir()
	v := NewViper()
	v.Set(KeyDataDir, dataDir)
	v.Set(KeyIntakeDir, filepath.Join(dataDir, "gifs"))

	if _, err := LoadConfig(v); err == nil {
		t.Error("expected error when intake_dir equals library_dir")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{".gif, .webp", "", " .png "})
	if strings.Join(got, "|") != ".gif|.webp|.png" {
		t.Errorf("splitList = %q", got)
	}
}

func TestPrepareDirectories(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "giffer")
	cfg := &Config{
		DataDir:    dataDir,
		LibraryDir: filepath.Join(dataDir, "gifs"),
		IntakeDir:  filepath.Join(dataDir, "inbox"),
	}

	if err := PrepareDirectories(cfg); err != nil {
		t.Fatalf("PrepareDirectories: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.LibraryDir, cfg.IntakeDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
	entries, _ := os.ReadDir(cfg.LibraryDir)
	if len(entries) != 0 {
		t.Errorf("write test left %d files in the library", len(entries))
	}
}

func TestPrepareDirectories_LibraryIsFile(t *testing.T) {
	dataDir := t.TempDir()
	libPath := filepath.Join(dataDir, "gifs")
	if err := os.WriteFile(libPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := PrepareDirectories(&Config{DataDir: dataDir, LibraryDir: libPath})
	if err == nil {
		t.Error("expected error when the library path is a file")
	}
}

// =============================================================================
// Instance lock
// =============================================================================

func TestAcquireLock_Exclusive(t *testing.T) {
	dataDir := t.TempDir()

	first, err := AcquireLock(dataDir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if filepath.Base(first.Path()) != LockFileName {
		t.Errorf("lock path = %s", first.Path())
	}

	if _, err := AcquireLock(dataDir); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second AcquireLock error = %v, want ErrAlreadyRunning", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := AcquireLock(dataDir)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = again.Release()
}

// =============================================================================
// Routes
// =============================================================================

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/health", noop).Methods("GET")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tags/{filename}", noop).Methods("PUT")
	api.HandleFunc("/tags", noop).Methods("GET")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}

	var got []string
	for _, route := range routes {
		got = append(got, route.Method+" "+route.Path)
	}
	want := "GET /api/tags,PUT /api/tags/{filename},GET /health"
	if strings.Join(got, ",") != want {
		t.Errorf("routes = %v, want %s", got, want)
	}
}
