package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signpost/internal/app"
	"github.com/ayusman/signpost/internal/calibration"
	"github.com/ayusman/signpost/internal/capture"
	"github.com/ayusman/signpost/internal/clock"
	"github.com/ayusman/signpost/internal/detector"
	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/dwell"
	"github.com/ayusman/signpost/internal/pipeline"
	"github.com/ayusman/signpost/internal/plugin"
	"github.com/ayusman/signpost/internal/server"
	"github.com/ayusman/signpost/internal/store"
)

// tick advances the mock clock after every presented frame.
type tick struct {
	clock *clock.Mock
	step  time.Duration
}

func (t tick) Present(display.View) error {
	t.clock.Advance(t.step)
	return nil
}

// installHook writes a hook that appends every request it receives to a log.
func installHook(t *testing.T, dir string) string {
	t.Helper()

	hookDir := filepath.Join(dir, "recorder")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"hook.sh","actions":["STOP"]}`
	if err := os.WriteFile(filepath.Join(hookDir, plugin.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	logPath := filepath.Join(hookDir, "requests.log")
	script := "#!/bin/sh\ncat >> " + logPath + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(hookDir, "hook.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return logPath
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("hook script needs a POSIX shell")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	pluginDir := filepath.Join(tmpDir, "plugins")
	hookLog := installHook(t, pluginDir)
	mgr := plugin.NewManager(pluginDir)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := plugin.NewDispatcher(mgr, plugin.NewExecutor(5000), 4)
	hooks.Start(ctx)

	queue := calibration.NewQueue(4)
	hub := server.NewHub(1000)
	defer hub.Close()

	ts := httptest.NewServer(server.New(server.Config{Store: s, Hub: hub, Commands: queue}))
	defer ts.Close()
	client := ts.Client()

	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetMarkers([]detector.Marker{detector.StopMarker(90)})

	clk := clock.NewMock(time.Now())
	application, err := app.New(app.Config{
		Camera:       capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector:     det,
		Clock:        clk,
		Sinks:        []app.Sink{hub, tick{clock: clk, step: 100 * time.Millisecond}},
		Commands:     queue,
		Store:        s,
		Hooks:        hooks,
		SnapshotPath: filepath.Join(tmpDir, "steps.png"),
		Source:       "e2e",
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	status := func() pipeline.Report {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()
		var r pipeline.Report
		if resp.StatusCode == http.StatusOK {
			json.NewDecoder(resp.Body).Decode(&r)
		}
		return r
	}

	post := func(command string) {
		resp, err := client.Post(ts.URL+"/api/commands", "application/json",
			strings.NewReader(`{"command":"`+command+`"}`))
		if err != nil {
			t.Fatalf("POST /api/commands error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST %s status = %d, want %d", command, resp.StatusCode, http.StatusAccepted)
		}
	}

	t.Run("StopConfirmed", func(t *testing.T) {
		waitFor(t, "STOP confirmation", func() bool {
			return status().Dwell.Phase == dwell.Confirmed
		})
		r := status()
		if r.Action != "STOP" || r.Distance != "100.0cm" {
			t.Errorf("status = %s at %s, want STOP at 100.0cm", r.Action, r.Distance)
		}
	})

	t.Run("RemoteCalibration", func(t *testing.T) {
		post("increase")
		waitFor(t, "focal change", func() bool { return status().Focal == 1010 })
		if d := status().Distance; d != "101.0cm" {
			t.Errorf("distance after increase = %s, want 101.0cm", d)
		}
		post("snapshot")
		waitFor(t, "snapshot", func() bool {
			_, err := os.Stat(filepath.Join(tmpDir, "steps.png"))
			return err == nil
		})
	})

	t.Run("Quit", func(t *testing.T) {
		post("quit")
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("loop did not stop after quit")
		}
		hooks.Close()
	})

	t.Run("Journal", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/events?session=" + application.Session())
		if err != nil {
			t.Fatalf("GET /api/events error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Events []store.Event `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
			t.Fatalf("decode events: %v", err)
		}

		kinds := map[store.EventKind]int{}
		for _, e := range listed.Events {
			kinds[e.Kind]++
		}
		want := map[store.EventKind]int{
			store.EventAction:        1,
			store.EventStopConfirmed: 1,
			store.EventCalibration:   1,
			store.EventSnapshot:      1,
		}
		for kind, n := range want {
			if kinds[kind] != n {
				t.Errorf("%s events = %d, want %d", kind, kinds[kind], n)
			}
		}

		sess, err := s.Sessions().GetByID(application.Session())
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if sess.EndedAt == nil || sess.FocalEnd == nil || *sess.FocalEnd != 1010 {
			t.Errorf("session not closed with the final focal: %+v", sess)
		}
	})

	t.Run("HookReceivedConfirmation", func(t *testing.T) {
		data, err := os.ReadFile(hookLog)
		if err != nil {
			t.Fatalf("read hook log: %v", err)
		}
		if strings.Count(string(data), `"event":"stop_confirmed"`) != 1 {
			t.Errorf("hook log = %s", data)
		}
	})
}
