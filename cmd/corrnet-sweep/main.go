package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/config"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/prices"
)

// sweepRow is the network at one threshold
type sweepRow struct {
	Threshold   float64
	Edges       int
	Isolated    int
	Components  int
	Communities int
	Largest     int
	Modularity  float64
	Elapsed     time.Duration
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	pricesFile := flag.String("prices", "", "Wide price CSV; overrides data.prices_file")
	from := flag.Float64("from", 0.1, "First threshold")
	to := flag.Float64("to", 0.9, "Last threshold")
	step := flag.Float64("step", 0.01, "Threshold increment")
	out := flag.String("out", "", "Write the sweep as CSV to this file")
	flag.Parse()

	if *step <= 0 || *from < 0 || *to > 1 || *from > *to {
		log.Fatalf("Invalid sweep: need 0 <= from <= to <= 1 and step > 0")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *pricesFile != "" {
		cfg.Data.PricesFile, cfg.Data.PricesDir = *pricesFile, ""
	}
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel())

	fmt.Printf("🔍 Correlation Threshold Sweep\n")
	fmt.Printf("=============================\n\n")

	cm, err := correlate(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to compute correlations: %v", err)
	}
	fmt.Printf("✅ %d assets, %d defined pairs, %d undefined\n\n",
		cm.Size(), cm.DefinedPairs(), len(cm.UndefinedPairs()))

	detector, err := algorithms.NewLouvain(cfg.PipelineConfig().Community)
	if err != nil {
		log.Fatalf("Invalid community options: %v", err)
	}

	steps := int(math.Round((*to - *from) / *step))
	rows := make([]sweepRow, 0, steps+1)

	fmt.Printf("%6s %7s %8s %10s %11s %7s %10s\n", "τ", "edges", "isolated", "components", "communities", "largest", "modularity")
	for i := 0; i <= steps; i++ {
		tau := math.Round((*from+float64(i)*(*step))*1e6) / 1e6

		row, err := sweep(cm, cfg.PipelineConfig().Network, tau, detector)
		if err != nil {
			log.Fatalf("τ = %.2f: %v", tau, err)
		}
		rows = append(rows, row)
		fmt.Printf("%6.2f %7d %8d %10d %11d %7d %10.4f\n",
			row.Threshold, row.Edges, row.Isolated, row.Components, row.Communities, row.Largest, row.Modularity)
	}

	best := rows[0]
	for _, r := range rows[1:] {
		if r.Modularity > best.Modularity {
			best = r
		}
	}
	fmt.Printf("\n🎯 Highest modularity %.4f at τ = %.2f (%d communities)\n",
		best.Modularity, best.Threshold, best.Communities)

	if *out != "" {
		if err := writeCSV(*out, rows); err != nil {
			log.Fatalf("Failed to write %s: %v", *out, err)
		}
		fmt.Printf("💾 Sweep written to %s\n", *out)
	}
}

// correlate computes the matrix once; only the threshold changes per step
func correlate(cfg *config.Config, logger logging.Logger) (*correlation.Matrix, error) {
	loader, err := prices.NewLoader(prices.Options{Start: cfg.Start(), End: cfg.End()}, logger)
	if err != nil {
		return nil, err
	}

	var pm *market.PriceMatrix
	if cfg.Data.PricesFile != "" {
		pm, err = loader.LoadWideFile(cfg.Data.PricesFile)
	} else {
		tickers := cfg.Data.Tickers
		if cfg.Data.TickersFile != "" {
			if tickers, err = prices.LoadTickers(cfg.Data.TickersFile); err != nil {
				return nil, err
			}
		}
		pm, err = loader.LoadDir(cfg.Data.PricesDir, tickers)
	}
	if err != nil {
		return nil, err
	}

	pcfg := cfg.PipelineConfig()
	rc, err := market.NewReturnsComputer(pcfg.Returns)
	if err != nil {
		return nil, err
	}
	rm, excluded, err := rc.Compute(pm)
	for _, e := range excluded {
		logger.Warn("asset excluded", logging.Ticker(e.Ticker), logging.Error(e))
	}
	if err != nil {
		return nil, err
	}

	engine, err := correlation.NewEngine(pcfg.Correlation)
	if err != nil {
		return nil, err
	}
	return engine.Compute(rm.Tail(pcfg.Window))
}

func sweep(cm *correlation.Matrix, policy network.Policy, tau float64, detector *algorithms.Louvain) (sweepRow, error) {
	start := time.Now()
	policy.Threshold = tau

	builder, err := network.NewBuilder(policy)
	if err != nil {
		return sweepRow{}, err
	}
	g, err := builder.Build(cm)
	if err != nil {
		return sweepRow{}, err
	}
	detection, _ := g.NonNegative()
	partition, err := detector.Detect(detection)
	if err != nil {
		return sweepRow{}, err
	}

	largest := 0
	for _, c := range partition.Communities {
		if c.Size > largest {
			largest = c.Size
		}
	}
	return sweepRow{
		Threshold:   tau,
		Edges:       g.EdgeCount(),
		Isolated:    len(g.Isolated()),
		Components:  algorithms.ConnectedComponents(g).NumCommunities(),
		Communities: partition.NumCommunities(),
		Largest:     largest,
		Modularity:  partition.Modularity,
		Elapsed:     time.Since(start),
	}, nil
}

func writeCSV(path string, rows []sweepRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write([]string{"threshold", "edges", "isolated", "components", "communities", "largest", "modularity", "elapsed_ms"})
	for _, r := range rows {
		w.Write([]string{
			strconv.FormatFloat(r.Threshold, 'f', 2, 64),
			strconv.Itoa(r.Edges),
			strconv.Itoa(r.Isolated),
			strconv.Itoa(r.Components),
			strconv.Itoa(r.Communities),
			strconv.Itoa(r.Largest),
			strconv.FormatFloat(r.Modularity, 'f', 6, 64),
			strconv.FormatFloat(float64(r.Elapsed.Microseconds())/1000, 'f', 3, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
