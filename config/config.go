package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BookConfig holds the per-instrument settings that shape how an OrderBook
// is constructed: how many price levels its depth view carries, which
// order conditions it honours (a disabled condition bit is ignored, not
// rejected), and where its market-data feed publishes.
type BookConfig struct {
	DepthSize         int    `yaml:"depth_size"`
	EnableAON         bool   `yaml:"enable_aon"`
	EnableIOC         bool   `yaml:"enable_ioc"`
	MarketDataSubject string `yaml:"market_data_subject"`
}

// AppConfig is the top-level configuration for matchbookd: the service
// name plus one BookConfig per instrument it manages.
type AppConfig struct {
	ServiceName string                 `yaml:"service_name"`
	NatsURL     string                 `yaml:"nats_url"`
	Books       map[string]*BookConfig `yaml:"books"`
}

// Load loads config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	for name, b := range cfg.Books {
		if b.DepthSize <= 0 {
			b.DepthSize = 5
		}
		zap.S().Debugf("book %s: %+v", name, b)
	}

	return cfg, nil
}
