package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-corrnet/pkg/artifact"
	"github.com/dd0wney/cluso-corrnet/pkg/config"
	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/metrics"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
	"github.com/dd0wney/cluso-corrnet/pkg/prices"
)

// options are the command-line flags; set ones override the config file
type options struct {
	configPath string
	pricesFile string
	pricesDir  string
	output     string
	threshold  float64
	workers    int
	logLevel   string
	quiet      bool

	thresholdSet bool
}

func parseOptions(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("corrnet", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (defaults are used when empty)")
	fs.StringVar(&o.pricesFile, "prices", "", "Wide price CSV (Date,T1,T2,...); overrides data.prices_file")
	fs.StringVar(&o.pricesDir, "prices-dir", "", "Directory of per-ticker CSVs; overrides data.prices_dir")
	fs.StringVar(&o.output, "output", "", "Output directory; overrides run.output_dir")
	fs.Float64Var(&o.threshold, "threshold", 0, "Correlation threshold in [0, 1]; overrides network.threshold")
	fs.IntVar(&o.workers, "workers", 0, "Correlation workers; overrides correlation.workers")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error; overrides logging.level")
	fs.BoolVar(&o.quiet, "quiet", false, "Do not print the run summary")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// 0 is a valid threshold, so presence decides
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			o.thresholdSet = true
		}
	})
	return o, nil
}

// apply copies the given flags into cfg. Validation is left to cfg.Validate.
func (o *options) apply(cfg *config.Config) {
	if o.pricesFile != "" {
		cfg.Data.PricesFile, cfg.Data.PricesDir = o.pricesFile, ""
	}
	if o.pricesDir != "" {
		cfg.Data.PricesDir, cfg.Data.PricesFile = o.pricesDir, ""
	}
	if o.output != "" {
		cfg.Run.OutputDir = o.output
	}
	if o.thresholdSet {
		cfg.Network.Threshold = o.threshold
	}
	if o.workers != 0 {
		cfg.Correlation.Workers = o.workers
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closer := newLogger(cfg)
	defer closer.Close()
	logger = logger.With(logging.String("run", cfg.Run.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, opts.quiet); err != nil {
		logger.Error("run failed", logging.Error(err))
		closer.Close()
		log.Fatalf("Run failed: %v", err)
	}
}

func newLogger(cfg *config.Config) (logging.Logger, io.Closer) {
	if cfg.Logging.File == "" {
		return logging.NewJSONLogger(os.Stderr, cfg.LogLevel()), io.NopCloser(nil)
	}
	logger, closer := logging.NewFileLogger(cfg.FileOptions(), cfg.LogLevel())
	return logger, closer
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger, quiet bool) error {
	pm, err := loadPrices(cfg, logger)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	p, err := pipeline.New(cfg.PipelineConfig(),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(reg))
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, pm)
	if cfg.Metrics.Textfile != "" {
		if werr := reg.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("metrics not written", logging.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	writer, err := artifact.NewWriter(store, cfg.Export.Formats, logger)
	if err != nil {
		return err
	}
	written, err := writer.Write(ctx, res)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if !quiet {
		fmt.Println(renderSummary(cfg, res, written))
	}
	return nil
}

func loadPrices(cfg *config.Config, logger logging.Logger) (*market.PriceMatrix, error) {
	loader, err := prices.NewLoader(prices.Options{Start: cfg.Start(), End: cfg.End()}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Data.PricesFile != "" {
		return loader.LoadWideFile(cfg.Data.PricesFile)
	}

	tickers := cfg.Data.Tickers
	if cfg.Data.TickersFile != "" {
		tickers, err = prices.LoadTickers(cfg.Data.TickersFile)
		if err != nil {
			return nil, err
		}
	}
	return loader.LoadDir(cfg.Data.PricesDir, tickers)
}

func newStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	if cfg.Export.S3Bucket == "" {
		return artifact.NewLocalStore(cfg.Run.OutputDir)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return artifact.NewS3Store(ctx, artifact.S3Options{
		Bucket:          cfg.Export.S3Bucket,
		Prefix:          cfg.Export.S3Prefix,
		Region:          cfg.Export.S3Region,
		Endpoint:        cfg.Export.S3Endpoint,
		PathStyle:       cfg.Export.S3PathStyle,
		AccessKeyID:     cfg.Export.S3AccessKeyID,
		SecretAccessKey: cfg.Export.S3SecretAccessKey,
	})
}
