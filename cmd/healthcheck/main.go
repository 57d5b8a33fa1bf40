// Command healthcheck probes the repomover health endpoint and exits 0 when
// the server reports ok or degraded. It is meant for container HEALTHCHECK
// instructions in images that carry no shell or curl.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	addr := os.Getenv("REPOMOVER_LISTEN_ADDR")
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	os.Exit(check(healthURL(addr)))
}

func check(url string) int {
	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 1
	}
	if body.Status != "ok" && body.Status != "degraded" {
		return 1
	}

	return 0
}

func healthURL(addr string) string {
	return fmt.Sprintf("http://%s/api/v1/health", normalizeAddr(addr))
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address, since it runs inside the same container as the server.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
