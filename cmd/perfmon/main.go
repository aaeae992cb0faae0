package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/perfmon"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "init":
		err = initCommand(os.Args[2:], os.Stdout)
	case "export":
		err = exportCommand(os.Args[2:], os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("perfmon %s: %v", cmd, err)
	}
}

// loadConfig falls back to defaults when path is empty.
func loadConfig(path string) (*perfmon.Config, error) {
	if path == "" {
		return perfmon.DefaultConfig(), nil
	}
	return perfmon.LoadConfig(path)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file (defaults apply when empty)")
	simulate := fs.Bool("simulate", false, "Use simulated readings instead of the host")
	interval := fs.Duration("interval", 0, "Override sampling.interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *simulate {
		cfg.Hardware.Source = "simulated"
	}
	if *interval > 0 {
		cfg.Sampling.Interval = *interval
	}

	m, err := perfmon.NewMonitor(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return m.Run(ctx)
}

func validateCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./configs/perfmon.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := perfmon.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "config %s looks good\n", *cfgPath)
	return nil
}

func initCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	cfgPath := fs.String("config", "./configs/perfmon.yaml", "Where to write the default configuration")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*cfgPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", *cfgPath)
	}
	if err := perfmon.SaveConfig(*cfgPath, perfmon.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", *cfgPath)
	return nil
}

func exportCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file (defaults apply when empty)")
	output := fs.String("out", "abnormal.csv", "CSV file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := perfmon.NewMonitor(cfg, perfmon.WithoutAPI())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := m.ExportAbnormalCSV(ctx, *output)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d abnormal records to %s\n", n, *output)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100", "Base URL of a running perfmon API")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimSuffix(*url, "/")

	fmt.Printf("Streaming stats from %s (Ctrl+C to stop)\n", base)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printStatsSnapshot(os.Stdout, client, base); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var counterKeys = []string{
	"perfmon_samples_collected_total",
	"perfmon_abnormal_samples_total",
	"perfmon_store_failures_total",
}

func printStatsSnapshot(out io.Writer, client *http.Client, base string) error {
	var sum perfmon.Summary
	if err := getJSON(client, base+"/api/v1/stats", &sum); err != nil {
		return err
	}

	resp, err := client.Get(base + "/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics: unexpected status %s", resp.Status)
	}
	counters, err := scanCounters(resp.Body, counterKeys)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] samples=%d abnormal=%d cpu_avg=%.1f mem_avg=%.1f disk_avg=%.1f temp_avg=%.1f store_failures=%.0f\n",
		time.Now().Format(time.RFC3339),
		sum.Count,
		sum.AbnormalCount,
		sum.Metrics["cpu"].Average,
		sum.Metrics["memory"].Average,
		sum.Metrics["disk"].Average,
		sum.Metrics["temperature"].Average,
		counters["perfmon_store_failures_total"],
	)
	return nil
}

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// scanCounters picks unlabelled samples out of Prometheus text output.
func scanCounters(r io.Reader, keys []string) (map[string]float64, error) {
	out := make(map[string]float64, len(keys))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range keys {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					out[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Join(errors.New("read metrics"), err)
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `perfmon CLI

Usage:
  perfmon <command> [flags]

Commands:
  run        Sample this machine until interrupted, serving the API on api.addr
  validate   Load and validate a config file without starting the monitor
  init       Write a default config file
  export     Write persisted abnormal samples to a CSV file
  stats      Poll a running monitor and print live statistics

Examples:
  perfmon run -config ./configs/perfmon.yaml
  perfmon run -simulate -interval 500ms
  perfmon validate -config ./configs/perfmon.yaml
  perfmon export -out ./abnormal.csv
  perfmon stats -url http://localhost:9100 -interval 1s
`)
}
