//go:build smoke

package smoke

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/testutil"
)

func TestServerStartup(t *testing.T) {
	repoRoot := findRepoRoot(t)
	tempDir := t.TempDir()

	binPath := filepath.Join(tempDir, "slotwise-server")
	buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/server")
	buildCmd.Dir = repoRoot
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build server: %v\n%s", err, buildOutput)
	}

	// Seed a provider, customer and resource before the server opens the file.
	dbPath := filepath.Join(tempDir, "db", "smoke.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("failed to create db dir: %v", err)
	}
	seedDB, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open seed db: %v", err)
	}
	var windows []models.AvailabilityWindow
	for day := time.Sunday; day <= time.Saturday; day++ {
		windows = append(windows, testutil.Window(day, "00:00", "23:59"))
	}
	fx := testutil.Seed(t, seedDB, 30, windows...)
	seedDB.Close()

	port := reservePort(t)
	configPath := filepath.Join(tempDir, "config.yaml")
	configBody := fmt.Sprintf(`app:
  name: "Slotwise"
  environment: "development"
  port: %d
  base_url: "http://localhost:%d"
  timezone: "UTC"

database:
  driver: "sqlite"
  filename: "%s"

features:
  enable_metrics: true
  enable_debug: true
`, port, port, filepath.ToSlash(dbPath))

	if err := os.WriteFile(configPath, []byte(configBody), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cmd := exec.Command(binPath)
	cmd.Dir = tempDir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	waitDone := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(waitDone)
	}()

	t.Cleanup(func() {
		if cmd.Process == nil {
			return
		}
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-waitDone:
			return
		case <-time.After(5 * time.Second):
		}
		_ = cmd.Process.Kill()
		select {
		case <-waitDone:
		case <-time.After(5 * time.Second):
			t.Logf("server process did not exit after kill")
		}
	})

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(10 * time.Second)

	for {
		select {
		case <-waitDone:
			t.Fatalf("server exited before health check: %v\nstdout:\n%s\nstderr:\n%s", waitErr, stdout.String(), stderr.String())
		default:
		}

		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for health check\nstdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
		}

		time.Sleep(100 * time.Millisecond)
	}

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	body := fmt.Sprintf(`{"resourceId":%d,"userId":%d,"startTime":%q}`, fx.Resource.ID, fx.Customer.ID, start.Format(time.RFC3339))
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		resp, err := client.Post(baseURL+"/api/v1/bookings", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("create booking %d: %v", i, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("create booking %d status = %d, want %d\nstderr:\n%s", i, resp.StatusCode, want, stderr.String())
		}
	}

	resp, err := client.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	metricsBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(metricsBody), "slotwise_http_requests_total") {
		t.Fatalf("metrics missing request counter:\n%s", metricsBody)
	}

	select {
	case <-waitDone:
		t.Fatalf("server exited unexpectedly: %v\nstdout:\n%s\nstderr:\n%s", waitErr, stdout.String(), stderr.String())
	default:
	}
}

func reservePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatal("failed to locate repo root with go.mod")
	return ""
}

func TestMigrationsApplied(t *testing.T) {
	db := testutil.NewTestDB(t)

	expectedTables := []string{
		"users",
		"resources",
		"availability_windows",
		"exception_periods",
		"cyclic_bookings",
		"bookings",
		"notifications",
		"verification_tokens",
	}

	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
			table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			t.Fatalf("missing expected table %q after migrations", table)
		}
		if err != nil {
			t.Fatalf("query table %q existence: %v", table, err)
		}
	}
}

func TestBookingForeignKeys(t *testing.T) {
	db := testutil.NewTestDB(t)

	_, err := db.Exec(
		`INSERT INTO bookings (resource_id, user_id, start_time, end_time, status, notes, created_at, updated_at)
		 VALUES (9999, 9999, '2024-03-05T10:00:00Z', '2024-03-05T11:00:00Z', 'PENDING', '', '2024-03-01T00:00:00Z', '2024-03-01T00:00:00Z')`,
	)
	if err == nil {
		t.Fatal("expected foreign key constraint failure for unknown resource and user")
	}
}
