// Package config loads coordinator settings from a YAML file layered over
// built-in defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DriverFabric = "fabric"
	DriverLocal  = "local"
)

type Config struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Log            LogConfig     `yaml:"log"`
	Ledger         LedgerConfig  `yaml:"ledger"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type LedgerConfig struct {
	Driver string       `yaml:"driver"`
	Fabric FabricConfig `yaml:"fabric"`
	Local  LocalConfig  `yaml:"local"`
}

type FabricConfig struct {
	Endpoint            string        `yaml:"endpoint"`
	TLSCACert           string        `yaml:"tls_ca_cert"`
	ServerNameOverride  string        `yaml:"server_name_override"`
	MSPID               string        `yaml:"msp_id"`
	CertPath            string        `yaml:"cert_path"`
	KeyPath             string        `yaml:"key_path"`
	Channel             string        `yaml:"channel"`
	Chaincode           string        `yaml:"chaincode"`
	EvaluateTimeout     time.Duration `yaml:"evaluate_timeout"`
	EndorseTimeout      time.Duration `yaml:"endorse_timeout"`
	SubmitTimeout       time.Duration `yaml:"submit_timeout"`
	CommitStatusTimeout time.Duration `yaml:"commit_status_timeout"`
}

type LocalConfig struct {
	DataDir string `yaml:"data_dir"`
	// SeedFile is created with the default candidates and voters when missing.
	SeedFile    string `yaml:"seed_file"`
	Difficulty  uint8  `yaml:"difficulty"`
	IdentityKey string `yaml:"identity_key"`
}

func Default() *Config {
	return &Config{
		Listen:         ":8080",
		RequestTimeout: 30 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ledger: LedgerConfig{
			Driver: DriverLocal,
			Fabric: FabricConfig{
				Endpoint:            "localhost:7051",
				ServerNameOverride:  "peer0.org1.example.com",
				MSPID:               "Org1MSP",
				Channel:             "mychannel",
				Chaincode:           "vote",
				EvaluateTimeout:     5 * time.Second,
				EndorseTimeout:      15 * time.Second,
				SubmitTimeout:       5 * time.Second,
				CommitStatusTimeout: time.Minute,
			},
			Local: LocalConfig{
				DataDir:    "data",
				SeedFile:   "data/seed.json",
				Difficulty: 1,
			},
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Ledger.Driver {
	case DriverFabric:
		return c.Ledger.Fabric.validate()
	case DriverLocal:
		return nil
	default:
		return errors.Errorf("unknown ledger.driver %q", c.Ledger.Driver)
	}
}

func (f FabricConfig) validate() error {
	required := []struct{ key, value string }{
		{"endpoint", f.Endpoint},
		{"msp_id", f.MSPID},
		{"cert_path", f.CertPath},
		{"key_path", f.KeyPath},
		{"channel", f.Channel},
		{"chaincode", f.Chaincode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.Errorf("ledger.fabric.%s is required", r.key)
		}
	}

	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"evaluate_timeout", f.EvaluateTimeout},
		{"endorse_timeout", f.EndorseTimeout},
		{"submit_timeout", f.SubmitTimeout},
		{"commit_status_timeout", f.CommitStatusTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return errors.Errorf("ledger.fabric.%s must be positive", t.key)
		}
	}
	return nil
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
