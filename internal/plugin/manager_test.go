package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/<name>/plugin.json.
func writeManifest(t *testing.T, dir string, m Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, m.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "serial-drive",
		Version:     "1.0.0",
		Description: "A test hook",
		Executable:  "serial-drive",
		Actions:     []string{"STOP", "FORWARD"},
		Config:      json.RawMessage(`{"dry_run":true}`),
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "serial-drive" {
		t.Errorf("expected plugin name 'serial-drive', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "A test hook" {
		t.Errorf("expected description 'A test hook', got %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Actions) != 2 {
		t.Errorf("expected 2 actions, got %d", len(plugin.Manifest.Actions))
	}
	if string(plugin.Manifest.Config) != `{"dry_run":true}` {
		t.Errorf("expected config to be kept, got %s", plugin.Manifest.Config)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "serial-drive") {
		t.Errorf("unexpected executable path %q", plugin.Executable)
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "good", Executable: "good", Actions: []string{"*"}})
	writeManifest(t, tmpDir, Manifest{Name: "no-exec", Actions: []string{"*"}})

	badDir := filepath.Join(tmpDir, "bad-json")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, ManifestFile), []byte("{invalid"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "stray-file"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Errorf("expected only 'good' to be discovered, got %d plugins", len(plugins))
	}
}

func TestManager_Discover_NoDir(t *testing.T) {
	for _, dir := range []string{"", "/nonexistent/signpost/hooks"} {
		manager := NewManager(dir)
		if err := manager.Discover(); err != nil {
			t.Errorf("Discover(%q) failed: %v", dir, err)
		}
		if len(manager.List()) != 0 {
			t.Errorf("Discover(%q) found plugins", dir)
		}
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "announce", Executable: "announce", Actions: []string{"*"}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("announce"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if _, err := manager.Get("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_ForAction(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "b-stop", Executable: "x", Actions: []string{"STOP"}})
	writeManifest(t, tmpDir, Manifest{Name: "a-all", Executable: "x", Actions: []string{AllActions}})
	writeManifest(t, tmpDir, Manifest{Name: "c-turns", Executable: "x", Actions: []string{"TURN LEFT", "TURN RIGHT"}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	tests := []struct {
		action string
		want   []string
	}{
		{"STOP", []string{"a-all", "b-stop"}},
		{"TURN LEFT", []string{"a-all", "c-turns"}},
		{"FORWARD", []string{"a-all"}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got := manager.ForAction(tt.action)
			if len(got) != len(tt.want) {
				t.Fatalf("ForAction(%q) returned %d plugins, want %d", tt.action, len(got), len(tt.want))
			}
			for i, p := range got {
				if p.Manifest.Name != tt.want[i] {
					t.Errorf("ForAction(%q)[%d] = %q, want %q", tt.action, i, p.Manifest.Name, tt.want[i])
				}
			}
		})
	}
}

func TestManifest_Handles(t *testing.T) {
	m := Manifest{Actions: []string{"STOP"}}
	if !m.Handles("STOP") || m.Handles("FORWARD") {
		t.Error("Handles() should match listed actions only")
	}
	if (Manifest{}).Handles("STOP") {
		t.Error("an empty action list handles nothing")
	}
}

func TestManager_PluginDir(t *testing.T) {
	if got := NewManager("/some/path").PluginDir(); got != "/some/path" {
		t.Errorf("expected plugin dir '/some/path', got %q", got)
	}
}
