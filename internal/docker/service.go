// Package docker starts a local calculator service container so a run can
// be measured without the public endpoint.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"

	"github.com/signalnine/calcbench/internal/logging"
)

// Label marks containers started by calcbench.
const Label = "calcbench"

const defaultStartTimeout = 30 * time.Second

type ServiceOpts struct {
	Image string
	// Port the service listens on. The container shares the host network,
	// so this is also the host port.
	Port int
	// Path of the SOAP endpoint, e.g. /calculator.asmx.
	Path         string
	Env          map[string]string
	StartTimeout time.Duration
	Logger       *slog.Logger
}

// Service is a running calculator container.
type Service struct {
	cli      *client.Client
	id       string
	endpoint string
	logger   *slog.Logger
}

// BuildConfig returns the container and host configuration for opts.
func BuildConfig(opts ServiceOpts) (*container.Config, *container.HostConfig) {
	env := map[string]string{"PORT": strconv.Itoa(opts.Port)}
	for k, v := range opts.Env {
		env[k] = v
	}
	envSlice := make([]string, 0, len(env))
	for k, v := range env {
		envSlice = append(envSlice, k+"="+v)
	}
	sort.Strings(envSlice)

	initTrue := true
	return &container.Config{
			Image:  opts.Image,
			Env:    envSlice,
			Labels: map[string]string{Label: "true"},
		}, &container.HostConfig{
			NetworkMode: "host",
			Init:        &initTrue,
		}
}

// EndpointURL is the SOAP endpoint of a service listening on localhost:port.
func EndpointURL(port int, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://localhost:%d%s", port, path)
}

// StartService creates and starts the container and waits until its port
// accepts connections. The caller must Stop the returned service.
func StartService(ctx context.Context, opts ServiceOpts) (*Service, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("service image is required")
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	containerCfg, hostCfg := BuildConfig(opts)
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating container from %s: %w", opts.Image, err)
	}

	s := &Service{
		cli:      cli,
		id:       createResp.ID,
		endpoint: EndpointURL(opts.Port, opts.Path),
		logger:   logger,
	}
	if _, err := cli.ContainerStart(ctx, s.id, client.ContainerStartOptions{}); err != nil {
		s.Stop()
		return nil, fmt.Errorf("starting container: %w", err)
	}
	logger.Info("calculator container started", "image", opts.Image, "id", shortID(s.id), "endpoint", s.endpoint)

	if err := WaitForPort(ctx, net.JoinHostPort("localhost", strconv.Itoa(opts.Port)), opts.StartTimeout); err != nil {
		s.Stop()
		return nil, err
	}
	return s, nil
}

func (s *Service) Endpoint() string { return s.endpoint }

// Stop kills and removes the container. Its recent logs go to the debug log.
func (s *Service) Stop() {
	defer s.cli.Close()
	bg := context.Background()
	cli := s.cli

	cli.ContainerKill(bg, s.id, client.ContainerKillOptions{Signal: "SIGKILL"})
	logReader, _ := cli.ContainerLogs(bg, s.id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: "100"})
	if logReader != nil {
		logData, _ := io.ReadAll(logReader)
		logReader.Close()
		if len(logData) > 0 {
			s.logger.Debug("calculator container logs", "id", shortID(s.id), "logs", string(logData))
		}
	}
	cli.ContainerRemove(bg, s.id, client.ContainerRemoveOptions{Force: true})
	s.logger.Info("calculator container removed", "id", shortID(s.id))
}

// WaitForPort polls addr until it accepts a TCP connection, timeout elapses
// or ctx is done.
func WaitForPort(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready after %s: %w", addr, timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
