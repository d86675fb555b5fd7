package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rental-calendar/backend/internal/config"
)

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Query a running server's health endpoint (for container HEALTHCHECK)",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := addrFlag
		if addr == "" {
			cfg := config.DefaultConfig()
			if loaded, err := config.Load(configPath); err == nil {
				cfg = loaded
			}
			cfg.ApplyEnv()
			addr = cfg.Listen
		}
		return runHealthCheck(addr)
	},
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}
