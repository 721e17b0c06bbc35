package support

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/labelkit/internal/remote"
)

// StartServer starts "labelkit serve" with the given command.
func (testCtx *TestContext) StartServer(command string) error {
	parts, err := testCtx.commandParts(command)
	if err != nil {
		return err
	}
	if err := testCtx.parseServerCommand(parts); err != nil {
		return err
	}

	if testCtx.isPortInUse(testCtx.ServerPort) {
		return fmt.Errorf("port %d is already in use", testCtx.ServerPort)
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServerProcess(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// StopServerProcess stops the running server process.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerProcess == nil {
		return nil
	}

	// SIGTERM lets the server drain; fall back to a kill.
	if err := testCtx.ServerProcess.Signal(syscall.SIGTERM); err != nil {
		if killErr := testCtx.ServerProcess.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}

	_, err := testCtx.ServerProcess.Wait()
	testCtx.ServerProcess = nil
	return err
}

// parseServerCommand reads host and port from the serve flags.
func (testCtx *TestContext) parseServerCommand(parts []string) error {
	testCtx.ServerPort = 8080
	testCtx.ServerHost = "localhost"

	for i := 0; i < len(parts); i++ {
		var name, value string
		switch p := parts[i]; {
		case p == "--port" || p == "-p" || p == "--host" || p == "-H":
			if i+1 >= len(parts) {
				return fmt.Errorf("flag %s needs a value", p)
			}
			name, value = p, parts[i+1]
			i++
		case len(p) > 7 && p[:7] == "--port=":
			name, value = "--port", p[7:]
		case len(p) > 7 && p[:7] == "--host=":
			name, value = "--host", p[7:]
		default:
			continue
		}

		switch name {
		case "--port", "-p":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid port: %s", value)
			}
			testCtx.ServerPort = port
		default:
			testCtx.ServerHost = value
		}
	}
	return nil
}

// isPortInUse checks if a port is already in use.
func (testCtx *TestContext) isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(testCtx.ServerHost, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// waitForServerReady polls the health endpoint until it answers 200.
func (testCtx *TestContext) waitForServerReady() error {
	client := &http.Client{Timeout: time.Second}
	url := testCtx.GetServerURL() + remote.PathHealth

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("server did not become ready within 15s")
}

// GetServerURL returns the base URL of the running server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil {
		return testCtx.HTTPTestServer.Server.URL
	}
	return "http://" + net.JoinHostPort(testCtx.ServerHost, strconv.Itoa(testCtx.ServerPort))
}
