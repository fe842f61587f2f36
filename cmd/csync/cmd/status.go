package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend health",
	Long: `Probe the backend health endpoint and report whether it is reachable.
Exits non-zero when the backend is down.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newAPIClient()
	defer client.Close()

	start := time.Now()
	healthy := client.CheckHealth(ctx)
	latency := time.Since(start)

	result := struct {
		Backend string `json:"backend"`
		Mode    string `json:"mode"`
		Healthy bool   `json:"healthy"`
		Latency string `json:"latency"`
	}{
		Backend: backendURL,
		Mode:    string(client.Resolver().Mode()),
		Healthy: healthy,
		Latency: latency.Round(time.Millisecond).String(),
	}

	if handled, err := printStructured(result); handled {
		if !healthy {
			os.Exit(1)
		}
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Backend", result.Backend)
	table.Append("Mode", result.Mode)
	table.Append("Healthy", fmt.Sprintf("%t", result.Healthy))
	table.Append("Latency", result.Latency)
	table.Render()

	if !healthy {
		return fmt.Errorf("backend at %s is not responding", backendURL)
	}
	fmt.Println("✓ Backend is healthy")
	return nil
}
