// Package app assembles the coordinator from its configuration.
package app

import (
	"context"
	"path/filepath"

	"election-coordinator/config"
	"election-coordinator/ledger"
	"election-coordinator/ledger/fabric"
	"election-coordinator/ledger/local"
	"election-coordinator/service"
	"election-coordinator/signing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config  *config.Config
	Service *service.VotingService
	// Chain is set only for the development ledger.
	Chain     *local.Ledger
	connector ledger.Connector
	log       logrus.FieldLogger
}

type options struct {
	autoInit bool
}

// Option adjusts how New assembles the application.
type Option func(*options)

// WithoutAutoInit leaves an empty development ledger unseeded, for callers
// that run initLedger themselves.
func WithoutAutoInit() Option {
	return func(o *options) { o.autoInit = false }
}

func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, opts ...Option) (*App, error) {
	o := options{autoInit: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	a := &App{Config: cfg, log: logger}

	switch cfg.Ledger.Driver {
	case config.DriverFabric:
		f := cfg.Ledger.Fabric
		connector, err := fabric.NewConnector(fabric.Config{
			Endpoint:            f.Endpoint,
			TLSCACertPath:       f.TLSCACert,
			ServerNameOverride:  f.ServerNameOverride,
			MSPID:               f.MSPID,
			CertPath:            f.CertPath,
			KeyPath:             f.KeyPath,
			Channel:             f.Channel,
			Chaincode:           f.Chaincode,
			EvaluateTimeout:     f.EvaluateTimeout,
			EndorseTimeout:      f.EndorseTimeout,
			SubmitTimeout:       f.SubmitTimeout,
			CommitStatusTimeout: f.CommitStatusTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.connector = connector

	case config.DriverLocal:
		chain, err := openLocal(cfg.Ledger.Local, logger)
		if err != nil {
			return nil, err
		}
		a.connector = chain
		a.Chain = chain
	}

	a.Service = service.NewVotingService(a.connector, logger,
		service.WithRequestTimeout(cfg.RequestTimeout))

	if o.autoInit && a.Chain != nil && a.Chain.Height() == 0 {
		result, err := a.Service.InitLedger(ctx)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed to initialise development ledger")
		}
		logger.WithField("tx_id", result.TransactionID).Info(result.Message)
	}

	return a, nil
}

func openLocal(cfg config.LocalConfig, logger logrus.FieldLogger) (*local.Ledger, error) {
	seed := local.DefaultSeed()
	if cfg.SeedFile != "" {
		loaded, err := local.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}

	keyPath := cfg.IdentityKey
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "identity.json")
	}
	signer, err := signing.LoadOrGenerate(keyPath)
	if err != nil {
		return nil, err
	}

	return local.New(local.Config{
		DataDir:    cfg.DataDir,
		Difficulty: cfg.Difficulty,
		Seed:       seed,
		Signer:     signer,
	}, logger)
}

func (a *App) Close() error {
	if a.connector == nil {
		return nil
	}
	return a.connector.Close()
}
