package kv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/planet/cmd/util"
	"github.com/ValentinKolb/planet/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for planet nodes",
		Long:    "Runs parallel benchmarks against the kv and system servants of a node and prints throughput and latency per benchmark.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// perfRegistry holds one latency timer per benchmark
	perfRegistry = gometrics.NewRegistry()
)

// perfBenchmark is a single benchmark. With setup all keys are set before the run.
type perfBenchmark struct {
	name  string
	setup bool
	op    func(i int, key string) error
}

type perfResult struct {
	name   string
	result testing.BenchmarkResult
	timer  gometrics.Timer
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large and upload tests should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for planet nodes")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	system := rpcClient.System()

	benchmarks := []perfBenchmark{
		{name: "set", op: func(_ int, k string) error {
			return rpcStore.Set(k, []byte("test"))
		}},
		{name: "set-large", op: func(_ int, k string) error {
			return rpcStore.Set(k, largeValue)
		}},
		{name: "get", setup: true, op: func(_ int, k string) error {
			_, _, err := rpcStore.Get(k)
			return err
		}},
		{name: "has", setup: true, op: func(_ int, k string) error {
			_, err := rpcStore.Has(k)
			return err
		}},
		{name: "has-not", op: func(_ int, k string) error {
			_, err := rpcStore.Has(k)
			return err
		}},
		{name: "delete", setup: true, op: func(_ int, k string) error {
			return rpcStore.Delete(k)
		}},
		{name: "upload", op: func(_ int, k string) error {
			_, err := rpcStore.Upload(k, bytes.NewReader(largeValue))
			return err
		}},
		{name: "ping", op: func(int, string) error {
			_, err := system.Ping()
			return err
		}},
		{name: "mixed", setup: true, op: mixedOp},
	}

	results := make([]perfResult, 0, len(benchmarks))
	for _, bm := range benchmarks {
		r := runBenchmark(bm)
		results = append(results, r)
		printResult(r)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func runBenchmark(bm perfBenchmark) perfResult {
	timer := gometrics.GetOrRegisterTimer(bm.name, perfRegistry)
	if shouldSkip(bm.name) {
		return perfResult{name: bm.name, timer: timer}
	}

	result := testing.Benchmark(func(b *testing.B) {
		// prepare keys
		getKey, iter := getKeys(bm.name)

		if bm.setup {
			iter(func(k string) {
				if err := rpcStore.Set(k, []byte("test")); err != nil {
					log.Printf("(%s) - error setting key: %v\n", bm.name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := rpcStore.Delete(k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", bm.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := bm.op(counter, getKey(counter)); err != nil {
					log.Printf("(%s) - error: %v\n", bm.name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	return perfResult{name: bm.name, result: result, timer: timer}
}

// mixedOp cycles through set, get, delete and has
func mixedOp(i int, k string) error {
	var err error
	switch i % 4 {
	case 0: // set
		err = rpcStore.Set(k, []byte("test"))
	case 1: // get
		_, _, err = rpcStore.Get(k)
	case 2: // delete
		err = rpcStore.Delete(k)
	case 3: // has
		_, err = rpcStore.Has(k)
	}
	return err
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r perfResult) {
	if r.result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", r.name)
		return
	}

	nsPerOp := math.Max(float64(r.result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	latency := r.timer.Snapshot()

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tlatency mean=%s p99=%s\n",
		r.name, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(latency.Mean()), time.Duration(latency.Percentile(0.99)))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "MeanLatency", "P99Latency", "Skipped",
		"Peer", "Network", "Encoder", "CallTimeout", "BlockSize", "BufferCount",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	transport := config.Transport.WithDefaults()

	// Write test results
	for _, r := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if r.result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(r.result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		latency := r.timer.Snapshot()

		row := []string{
			r.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(latency.Mean()).String(),
			time.Duration(latency.Percentile(0.99)).String(),
			skipped,
			config.Peer,
			config.Network,
			viper.GetString("encoder"),
			config.Session.CallTimeout.String(),
			strconv.Itoa(transport.BlockSize),
			strconv.Itoa(transport.BufferCount),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	return nil
}
