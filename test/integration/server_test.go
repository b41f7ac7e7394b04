package integration

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roomcast/roomcast/internal/server"
	"github.com/roomcast/roomcast/test/testhelpers"
)

func writeStaticFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write static file: %v", err)
	}
}

// TestHealthEndpointIntegration verifies the health endpoint through the
// full routing stack.
func TestHealthEndpointIntegration(t *testing.T) {
	testServer := testhelpers.CreateTestServer(server.SetupRoutes())
	defer testServer.Close()

	resp := testhelpers.MakeRequest(t, http.MethodGet, testServer.URL+"/healthz")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/plain")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if string(body) != "Roomcast server is running!" {
		t.Errorf("Unexpected health body: %q", body)
	}
}

// TestTestPageEndpointIntegration verifies the test page is served as HTML.
func TestTestPageEndpointIntegration(t *testing.T) {
	testServer := testhelpers.CreateTestServer(server.SetupRoutes())
	defer testServer.Close()

	resp := testhelpers.MakeRequest(t, http.MethodGet, testServer.URL+"/test")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/html")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if !strings.Contains(string(body), "joinRoom") {
		t.Error("Test page does not speak the room protocol")
	}
}

// TestStaticDirServing verifies a configured static directory is served at
// the root.
func TestStaticDirServing(t *testing.T) {
	staticDir := t.TempDir()
	writeStaticFile(t, staticDir, "index.html", "<html><body>welcome</body></html>")

	cfg := server.NewConfig()
	cfg.StaticDir = staticDir
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	testServer := testhelpers.CreateTestServer(server.SetupRoutes())
	defer testServer.Close()

	resp := testhelpers.MakeRequest(t, http.MethodGet, testServer.URL+"/")
	defer func() { _ = resp.Body.Close() }()

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if !strings.Contains(string(body), "welcome") {
		t.Errorf("Expected static index content, got %q", body)
	}
}
