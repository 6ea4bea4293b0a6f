package config

import (
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	API struct {
		Port           int    `env:"PORT" envDefault:"8081"`
		WriteRateLimit uint64 `env:"WRITE_RATE_LIMIT" envDefault:"10"`
	}
	App struct {
		LogLevel         string       `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort      int          `env:"METRICS_PORT" envDefault:"9010"`
		NoisyLogPatterns patternsList `env:"NOISY_LOG_PATTERNS"`
		SentryDSN        string       `env:"SENTRY_DSN"`
	}
	Chain struct {
		NodeWS         string `env:"NODE_WS"`
		PublicNodeWS   string `env:"NEXT_PUBLIC_NODE_WS" envDefault:"wss://idn0-testnet.idealabs.network"`
		SidecarURL     string `env:"SIDECAR_URL" envDefault:"http://127.0.0.1:8080"`
		SignerSURI     string `env:"SIGNER_SURI"`
		SS58Prefix     uint16 `env:"SS58_PREFIX" envDefault:"42"`
		SessionLength  uint64 `env:"SESSION_LENGTH" envDefault:"600"`
		SessionsPerEra uint64 `env:"SESSIONS_PER_ERA" envDefault:"6"`
		// blocks scanned for executed transactions on every dashboard refresh
		ExecutedWindow uint64 `env:"EXECUTED_WINDOW" envDefault:"20"`
	}
	Drand struct {
		APIURL          string        `env:"DRAND_API_URL"`
		PublicAPIURL    string        `env:"NEXT_PUBLIC_DRAND_API_URL" envDefault:"https://api.drand.sh"`
		ChainHash       string        `env:"QUICKNET_CHAIN_HASH"`
		PublicChainHash string        `env:"NEXT_PUBLIC_QUICKNET_CHAIN_HASH" envDefault:"52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971"`
		Timeout         time.Duration `env:"DRAND_TIMEOUT" envDefault:"10s"`
	}
}

type patternsList []string

// NodeEndpoint prefers NODE_WS over the frontend-style NEXT_PUBLIC_NODE_WS.
func (c Config) NodeEndpoint() string {
	if c.Chain.NodeWS != "" {
		return c.Chain.NodeWS
	}
	return c.Chain.PublicNodeWS
}

func (c Config) DrandURL() string {
	if c.Drand.APIURL != "" {
		return strings.TrimRight(c.Drand.APIURL, "/")
	}
	return strings.TrimRight(c.Drand.PublicAPIURL, "/")
}

func (c Config) DrandChainHash() string {
	if c.Drand.ChainHash != "" {
		return c.Drand.ChainHash
	}
	return c.Drand.PublicChainHash
}

func Load() Config {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(patternsList{}): func(v string) (interface{}, error) {
			var patterns patternsList
			for _, s := range strings.Split(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					patterns = append(patterns, s)
				}
			}
			return patterns, nil
		}}); err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}

	return c
}
