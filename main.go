package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"election-coordinator/api"
	"election-coordinator/app"
	"election-coordinator/config"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	listen     string
	driver     string
	dataDir    string
	seedFile   string
	difficulty uint8
	logLevel   string
	jsonOutput bool
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:           "electionctl",
	Short:         "Coordinate an election recorded on a Hyperledger Fabric ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&opts.listen, "listen", "", "HTTP listen address")
	flags.StringVar(&opts.driver, "driver", "", "Ledger driver (fabric or local)")
	flags.StringVar(&opts.dataDir, "storage", "", "Directory for the development ledger")
	flags.StringVar(&opts.seedFile, "seed", "", "Seed file for the development ledger")
	flags.Uint8Var(&opts.difficulty, "difficulty", 0, "Mining difficulty for the development ledger")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print command results as JSON")
}

// loadConfig reads the config file and applies any flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = opts.listen
	}
	if flags.Changed("driver") {
		cfg.Ledger.Driver = opts.driver
	}
	if flags.Changed("storage") {
		cfg.Ledger.Local.DataDir = opts.dataDir
	}
	if flags.Changed("seed") {
		cfg.Ledger.Local.SeedFile = opts.seedFile
	}
	if flags.Changed("difficulty") {
		cfg.Ledger.Local.Difficulty = opts.difficulty
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// openApp builds the application for one command invocation.
func openApp(cmd *cobra.Command, appOpts ...app.Option) (*app.App, *log.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger, appOpts...)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voting API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer stop()

		var chain api.ChainInspector
		if a.Chain != nil {
			chain = a.Chain
		}
		server := api.NewServer(a.Service, chain, logger)
		if err := server.Run(ctx, a.Config.Listen); err != nil {
			return err
		}

		metrics := a.Service.Metrics()
		for _, op := range metrics.OperationNames() {
			m := metrics.GetOperationMetrics(op)
			logger.WithFields(log.Fields{
				"op":                 op,
				"count":              m.Count,
				"failures":           m.Failures,
				"processing_time_ms": m.ProcessingTime,
			}).Info("operation metrics")
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes an unknown vote outcome so scripts know to re-query.
func exitCode(err error) int {
	if errors.Is(err, errAmbiguous) {
		return 3
	}
	return 1
}
