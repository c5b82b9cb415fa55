package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/joho/godotenv"

	"github.com/feral-file/ff-link-preview/internal/domain"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	maxConcurrency = 20
	previewPath    = "/api/v1/previews"

	envAPIURL = "LINK_PREVIEW_API_URL"
	envAPIKey = "LINK_PREVIEW_API_KEY"
)

type Config struct {
	APIURL      string
	APIKey      string
	URLsFile    string
	Repeat      int           // Number of passes over the URL list
	Concurrency int           // Number of concurrent requests
	Timeout     time.Duration // Timeout for each preview request
	OutputFile  string        // Output markdown file path (optional)
	Debug       bool
}

// Sample is the outcome of one preview request
type Sample struct {
	URL        string
	Latency    time.Duration
	StatusCode int
	Result     *domain.Result
	Err        error
}

// TypeGroup aggregates successful samples of one preview type
type TypeGroup struct {
	Type      domain.PreviewType
	Count     int
	Latencies []time.Duration
}

// BenchmarkStats summarizes a benchmark run
type BenchmarkStats struct {
	StartTime       time.Time
	Duration        time.Duration
	Total           int
	Succeeded       int
	Failed          int
	TransportErrors int
	Latencies       []time.Duration
	Types           map[domain.PreviewType]*TypeGroup
	ErrorKinds      map[domain.ErrorKind]int
}

func main() {
	cfg := parseFlags()

	if cfg.URLsFile == "" {
		fmt.Println("Error: urls is required")
		flag.Usage()
		os.Exit(1)
	}

	urls, err := readURLs(cfg.URLsFile)
	if err != nil {
		fmt.Printf("Error reading URLs: %v\n", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Println("Error: no URLs to preview")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	fmt.Printf("Target API: %s\n", cfg.APIURL)
	fmt.Printf("Previewing %d URLs x %d passes with concurrency %d\n\n", len(urls), cfg.Repeat, cfg.Concurrency)

	client := &http.Client{Timeout: cfg.Timeout}
	stats := runBenchmark(ctx, client, cfg, urls)

	fmt.Println("\n\n" + strings.Repeat("=", 80))
	if ctx.Err() != nil {
		fmt.Println("INTERRUPTED - PARTIAL RESULTS")
	} else {
		fmt.Println("BENCHMARK RESULTS")
	}
	fmt.Println(strings.Repeat("=", 80))
	printStats(stats)

	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, stats); err != nil {
			fmt.Printf("\n⚠️  Warning: Failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("\n✓ Report written to: %s\n", cfg.OutputFile)
		}
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.APIURL, "api-url", defaultAPIURL, "Link preview API base URL")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key sent as 'ApiKey <key>' (optional)")
	flag.StringVar(&cfg.URLsFile, "urls", "", "File with one URL per line (required)")
	flag.StringVar(&cfg.OutputFile, "output", "", "Output markdown file path (optional)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Print every sample")
	flag.IntVar(&cfg.Repeat, "repeat", 1, "Number of passes over the URL list (default: 1)")
	flag.IntVar(&cfg.Concurrency, "concurrency", 5, "Number of concurrent requests (default: 5)")

	var timeoutSeconds int
	flag.IntVar(&timeoutSeconds, "timeout", 30, "Timeout for each preview request in seconds (default: 30)")

	credentials := flag.String("credentials", defaultCredentialsPath(), "Env file holding API URL and key (optional)")
	saveCredentials := flag.Bool("save-credentials", false, "Write api-url and api-key to the credentials file")

	flag.Parse()

	cfg.Timeout = time.Duration(timeoutSeconds) * time.Second
	if cfg.Repeat <= 0 {
		cfg.Repeat = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Concurrency > maxConcurrency {
		cfg.Concurrency = maxConcurrency // Upstream providers rate limit the service anyway
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *saveCredentials {
		if err := writeCredentials(*credentials, cfg.APIURL, cfg.APIKey); err != nil {
			fmt.Printf("Warning: failed to save credentials: %v\n", err)
		}
	} else {
		file, err := godotenv.Read(*credentials)
		if err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: failed to read credentials: %v\n", err)
		}
		applyCredentials(cfg, explicit, file)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg
}

// defaultCredentialsPath is benchmark.env under the user config directory
func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "benchmark.env"
	}
	return filepath.Join(dir, "link-preview", "benchmark.env")
}

// applyCredentials fills the API URL and key that were not given as flags.
// Environment variables win over the credentials file.
func applyCredentials(cfg *Config, explicit map[string]bool, file map[string]string) {
	lookup := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(file[key])
	}

	if !explicit["api-url"] {
		if v := lookup(envAPIURL); v != "" {
			cfg.APIURL = v
		}
	}
	if !explicit["api-key"] {
		if v := lookup(envAPIKey); v != "" {
			cfg.APIKey = v
		}
	}
}

// writeCredentials stores the API URL and key as an env file only the owner can read
func writeCredentials(path, apiURL, apiKey string) error {
	values := map[string]string{envAPIURL: apiURL}
	if apiKey != "" {
		values[envAPIKey] = apiKey
	}
	content, err := godotenv.Marshal(values)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content+"\n"), 0o600)
}

// readURLs reads one URL per line, skipping blank lines and # comments
func readURLs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	return parseURLs(file)
}

func parseURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// runBenchmark previews every URL Repeat times through a bounded pool and aggregates the samples
func runBenchmark(ctx context.Context, client *http.Client, cfg *Config, urls []string) *BenchmarkStats {
	pool := pond.NewPool(cfg.Concurrency, pond.WithContext(ctx))
	defer pool.StopAndWait()

	var mu sync.Mutex
	var samples []Sample
	total := len(urls) * cfg.Repeat

	start := time.Now()
	group := pool.NewGroup()
	for pass := 0; pass < cfg.Repeat; pass++ {
		for _, u := range urls {
			group.Submit(func() {
				sample := previewOnce(ctx, client, cfg, u)
				if cfg.Debug {
					fmt.Printf("[DEBUG] %s %s %s\n", formatDuration(sample.Latency), describeSample(sample), sample.URL)
				}

				mu.Lock()
				samples = append(samples, sample)
				done := len(samples)
				mu.Unlock()

				if !cfg.Debug {
					fmt.Printf("\r⏳ Previewing... (%d/%d, elapsed: %s)    ", done, total, formatDuration(time.Since(start)))
				}
			})
		}
	}
	_ = group.Wait()

	stats := summarize(samples)
	stats.StartTime = start
	stats.Duration = time.Since(start)
	return stats
}

// previewOnce posts a single URL to the preview endpoint
func previewOnce(ctx context.Context, client *http.Client, cfg *Config, rawURL string) Sample {
	sample := Sample{URL: rawURL}

	body, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		sample.Err = err
		return sample
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL+previewPath, bytes.NewReader(body))
	if err != nil {
		sample.Err = err
		return sample
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+cfg.APIKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		sample.Latency = time.Since(start)
		sample.Err = err
		return sample
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result domain.Result
	err = json.NewDecoder(resp.Body).Decode(&result)
	sample.Latency = time.Since(start)
	sample.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		sample.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return sample
	}
	if err != nil {
		sample.Err = fmt.Errorf("failed to decode result: %w", err)
		return sample
	}
	sample.Result = &result
	return sample
}

func describeSample(s Sample) string {
	switch {
	case s.Err != nil:
		return "❌ " + s.Err.Error()
	case s.Result.Success && s.Result.Metadata != nil:
		return "✅ " + string(s.Result.Metadata.Type)
	case s.Result.Error != nil:
		return "⚠️ " + string(s.Result.Error.Kind)
	default:
		return "⚠️ unknown"
	}
}

// summarize aggregates samples by preview type and error kind
func summarize(samples []Sample) *BenchmarkStats {
	stats := &BenchmarkStats{
		Total:      len(samples),
		Types:      make(map[domain.PreviewType]*TypeGroup),
		ErrorKinds: make(map[domain.ErrorKind]int),
	}

	for _, s := range samples {
		stats.Latencies = append(stats.Latencies, s.Latency)

		switch {
		case s.Err != nil:
			stats.Failed++
			stats.TransportErrors++
		case s.Result.Success && s.Result.Metadata != nil:
			stats.Succeeded++
			t := s.Result.Metadata.Type
			group, ok := stats.Types[t]
			if !ok {
				group = &TypeGroup{Type: t}
				stats.Types[t] = group
			}
			group.Count++
			group.Latencies = append(group.Latencies, s.Latency)
		default:
			stats.Failed++
			kind := domain.ErrorKindNetwork
			if s.Result.Error != nil {
				kind = s.Result.Error.Kind
			}
			stats.ErrorKinds[kind]++
		}
	}

	return stats
}

// percentile returns the nearest-rank percentile of the given latencies
func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := int(p/100*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func sortedTypes(stats *BenchmarkStats) []*TypeGroup {
	groups := make([]*TypeGroup, 0, len(stats.Types))
	for _, group := range stats.Types {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Type < groups[j].Type
	})
	return groups
}

func sortedErrorKinds(stats *BenchmarkStats) []domain.ErrorKind {
	kinds := make([]domain.ErrorKind, 0, len(stats.ErrorKinds))
	for kind := range stats.ErrorKinds {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func printStats(stats *BenchmarkStats) {
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%s Summary\n", statusEmoji(stats.Succeeded, stats.Failed))
	fmt.Printf("  Start Time:  %s\n", stats.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration:    %s\n", formatDuration(stats.Duration))
	fmt.Printf("  Requests:    %d\n", stats.Total)
	fmt.Printf("  Succeeded:   %d (%s)\n", stats.Succeeded, percentageString(stats.Succeeded, stats.Total))
	if stats.Failed > 0 {
		fmt.Printf("  Failed:      %d (%s)\n", stats.Failed, percentageString(stats.Failed, stats.Total))
	}
	if stats.TransportErrors > 0 {
		fmt.Printf("  Transport:   %d\n", stats.TransportErrors)
	}
	fmt.Printf("  Throughput:  %s\n", formatRate(stats.Total, stats.Duration))
	fmt.Printf("  Latency:     p50 %s, p95 %s, max %s\n",
		formatDuration(percentile(stats.Latencies, 50)),
		formatDuration(percentile(stats.Latencies, 95)),
		formatDuration(percentile(stats.Latencies, 100)))
	fmt.Println()

	if len(stats.Types) > 0 {
		fmt.Println("Previews by Type:")
		fmt.Println()
		for _, group := range sortedTypes(stats) {
			fmt.Printf("  ✅ %s\n", group.Type)
			fmt.Printf("    Count:          %d (%s)\n", group.Count, percentageString(group.Count, stats.Total))
			fmt.Printf("    p50 Latency:    %s\n", formatDuration(percentile(group.Latencies, 50)))
			fmt.Printf("    p95 Latency:    %s\n", formatDuration(percentile(group.Latencies, 95)))
			fmt.Println()
		}
	}

	if len(stats.ErrorKinds) > 0 {
		fmt.Println("Failures by Kind:")
		fmt.Println()
		for _, kind := range sortedErrorKinds(stats) {
			fmt.Printf("  ❌ %-16s %d (%s)\n", kind, stats.ErrorKinds[kind], percentageString(stats.ErrorKinds[kind], stats.Total))
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("-", 80))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// writeMarkdownReport writes a markdown report of the benchmark stats
func writeMarkdownReport(path string, stats *BenchmarkStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "# Link Preview Benchmark\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(w, "| Start Time | %s |\n", stats.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| Duration | %s |\n", formatDuration(stats.Duration))
	fmt.Fprintf(w, "| Requests | %d |\n", stats.Total)
	fmt.Fprintf(w, "| Succeeded | %d (%s) |\n", stats.Succeeded, percentageString(stats.Succeeded, stats.Total))
	fmt.Fprintf(w, "| Failed | %d (%s) |\n", stats.Failed, percentageString(stats.Failed, stats.Total))
	fmt.Fprintf(w, "| Throughput | %s |\n", formatRate(stats.Total, stats.Duration))
	fmt.Fprintf(w, "| p50 Latency | %s |\n", formatDuration(percentile(stats.Latencies, 50)))
	fmt.Fprintf(w, "| p95 Latency | %s |\n", formatDuration(percentile(stats.Latencies, 95)))

	if len(stats.Types) > 0 {
		fmt.Fprintf(w, "\n## Previews by Type\n\n")
		fmt.Fprintf(w, "| Type | Count | p50 | p95 |\n|---|---|---|---|\n")
		for _, group := range sortedTypes(stats) {
			fmt.Fprintf(w, "| %s | %d | %s | %s |\n", group.Type, group.Count,
				formatDuration(percentile(group.Latencies, 50)),
				formatDuration(percentile(group.Latencies, 95)))
		}
	}

	if len(stats.ErrorKinds) > 0 || stats.TransportErrors > 0 {
		fmt.Fprintf(w, "\n## Failures\n\n")
		fmt.Fprintf(w, "| Kind | Count |\n|---|---|\n")
		for _, kind := range sortedErrorKinds(stats) {
			fmt.Fprintf(w, "| %s | %d |\n", kind, stats.ErrorKinds[kind])
		}
		if stats.TransportErrors > 0 {
			fmt.Fprintf(w, "| transport | %d |\n", stats.TransportErrors)
		}
	}

	return w.Flush()
}
