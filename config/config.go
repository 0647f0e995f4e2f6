package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/journeymidnight/ecplanner/erasure_code"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type Config struct {
	Codec       string            `toml:"codec"`
	DataUnits   int               `toml:"data_units"`
	ParityUnits int               `toml:"parity_units"`
	ChunkSize   string            `toml:"chunk_size"`
	Workers     int               `toml:"workers"`
	LogOutput   []string          `toml:"log_output"`
	LogLevel    string            `toml:"log_level"`
	Options     map[string]string `toml:"options"`
}

func DefaultConfig() Config {
	return Config{
		Codec:       erasure_code.RSCodec,
		DataUnits:   6,
		ParityUnits: 3,
		ChunkSize:   "1MiB",
		Workers:     4,
		LogOutput:   []string{"stderr"},
		LogLevel:    "info",
	}
}

// Flags are shared by every ec-tool subcommand. Flags the user sets win
// over the config file.
func Flags() []cli.Flag {
	def := DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the config file",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "codec name (rs, xor)",
			Value: def.Codec,
		},
		&cli.IntFlag{
			Name:    "data",
			Usage:   "number of data units",
			Aliases: []string{"d"},
			Value:   def.DataUnits,
		},
		&cli.IntFlag{
			Name:    "parity",
			Usage:   "number of parity units",
			Aliases: []string{"p"},
			Value:   def.ParityUnits,
		},
		&cli.StringFlag{
			Name:  "chunk",
			Usage: "chunk size, e.g. 64KiB",
			Value: def.ChunkSize,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "planning goroutines",
			Value: def.Workers,
		},
		&cli.StringSliceFlag{
			Name:  "log",
			Usage: "log outputs",
		},
		&cli.StringFlag{
			Name:  "level",
			Usage: "log level",
			Value: def.LogLevel,
		},
	}
}

// NewConfig layers defaults, the --config file and explicitly set flags.
func NewConfig(c *cli.Context) (*Config, error) {
	config := DefaultConfig()

	if configFile := c.String("config"); len(configFile) > 0 {
		if _, err := os.Stat(configFile); err != nil {
			return nil, errors.Wrapf(err, "config file %s", configFile)
		}
		if err := LoadFile(configFile, &config); err != nil {
			return nil, err
		}
	}

	if c.IsSet("codec") {
		config.Codec = c.String("codec")
	}
	if c.IsSet("data") {
		config.DataUnits = c.Int("data")
	}
	if c.IsSet("parity") {
		config.ParityUnits = c.Int("parity")
	}
	if c.IsSet("chunk") {
		config.ChunkSize = c.String("chunk")
	}
	if c.IsSet("workers") {
		config.Workers = c.Int("workers")
	}
	if c.IsSet("log") {
		config.LogOutput = c.StringSlice("log")
	}
	if c.IsSet("level") {
		config.LogLevel = c.String("level")
	}

	if err := validateConf(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func LoadFile(path string, config *Config) error {
	if _, err := toml.DecodeFile(path, config); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func (config *Config) ChunkSizeBytes() (int, error) {
	n, err := humanize.ParseBytes(config.ChunkSize)
	if err != nil {
		return 0, errors.Wrapf(err, "chunk_size %q", config.ChunkSize)
	}
	if n == 0 || n > 1<<30 {
		return 0, errors.Errorf("chunk_size %q out of range", config.ChunkSize)
	}
	return int(n), nil
}

func (config *Config) Schema() (*erasure_code.Schema, error) {
	chunk, err := config.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}
	return erasure_code.NewSchema(config.Codec, config.DataUnits, config.ParityUnits, chunk, config.Options)
}

func validateConf(conf *Config) error {
	if len(conf.Codec) == 0 {
		return errors.Errorf("codec can not be empty")
	}
	if conf.Workers <= 0 {
		return errors.Errorf("workers must be positive")
	}
	if len(conf.LogOutput) == 0 {
		return errors.Errorf("log_output can not be empty")
	}
	if _, err := xlog.ParseLevel(conf.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level")
	}
	if _, err := conf.ChunkSizeBytes(); err != nil {
		return err
	}
	return nil
}
