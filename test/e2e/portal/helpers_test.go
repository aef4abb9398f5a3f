package portal_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared helpers for the portal end-to-end tests.
 */

const (
	testImageName = "ledgerdesk-portal-test:latest"

	bootstrapToken = "test-bootstrap-token-12345"
	adminEmail     = "admin@firm.example"
	adminPassword  = "Admin123!portal"
	clientPassword = "Client123!portal"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building portal Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up portal Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/portal/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// setupPortalContainer starts the portal with relaxed rate limits and
// returns its base URL.
func setupPortalContainer(t *testing.T, extraEnv map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"PORTAL_BOOTSTRAP_TOKEN": bootstrapToken,
		"PORTAL_DOCUMENT_KEY":    "e2e-document-master-key",
		"PORTAL_JWT_SECRET":      "e2e-jwt-secret-0123456789abcdef0123",
		"PORTAL_SECURE_COOKIES":  "false",
		"PORTAL_MAIL_MODE":       "log",
		"PORTAL_ENV":             "test",
		"PORTAL_LOG_LEVEL":       "info",
		"PORTAL_LOG_FORMAT":      "json",
		// Tests make many rapid requests that would hit the production limits.
		"PORTAL_RATELIMIT_STRICT_REQUESTS":   "1000",
		"PORTAL_RATELIMIT_STRICT_WINDOW_SEC": "60",
		"PORTAL_RATELIMIT_STRICT_BURST":      "1000",
		"PORTAL_RATELIMIT_MODERATE_REQUESTS": "1000",
		"PORTAL_RATELIMIT_MODERATE_BURST":    "1000",
		"PORTAL_RATELIMIT_PUBLIC_REQUESTS":   "1000",
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// bootstrapAdmin creates the first admin and signs in as them.
func bootstrapAdmin(t *testing.T, client *portalsdk.Client) *portalsdk.Session {
	t.Helper()

	u, err := client.Bootstrap(t.Context(), bootstrapToken, portalsdk.BootstrapRequest{
		Email:       adminEmail,
		DisplayName: "Administrator",
		Password:    adminPassword,
	})
	require.NoError(t, err, "Bootstrap should succeed")
	require.Equal(t, "ADMIN", u.Role)

	session, err := client.Login(t.Context(), adminEmail, adminPassword)
	require.NoError(t, err, "Admin login should succeed")
	return session
}

// createClient creates a CLIENT account and signs in as it.
func createClient(t *testing.T, client *portalsdk.Client, admin *portalsdk.Session, email string) (*portalsdk.UserResponse, *portalsdk.Session) {
	t.Helper()

	u, err := admin.CreateUser(t.Context(), portalsdk.CreateUserRequest{
		Email:       email,
		DisplayName: "Client " + email,
		Role:        "CLIENT",
		Password:    clientPassword,
	})
	require.NoError(t, err)

	session, err := client.Login(t.Context(), email, clientPassword)
	require.NoError(t, err)
	return u, session
}

func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *portalsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code)
}
