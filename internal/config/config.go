package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Signer struct {
		PrivateKey string `yaml:"private_key"`
	} `yaml:"signer"`
	Chain struct {
		RPCEndpoint    string `yaml:"rpc_endpoint"`
		ChainID        int64  `yaml:"chain_id"`
		ConfirmDepth   int    `yaml:"confirm_depth"`
		CreditContract string `yaml:"credit_contract"`
	} `yaml:"chain"`
	Clearnode struct {
		WSEndpoint string `yaml:"ws_endpoint"`
		AppName    string `yaml:"app_name"`
	} `yaml:"clearnode"`
	Settlement struct {
		IntervalSeconds     int64    `yaml:"interval_seconds"`
		MinBatchSize        int      `yaml:"min_batch_size"`
		PhaseTimeoutSeconds int64    `yaml:"phase_timeout_seconds"`
		ReserveMarginBps    int64    `yaml:"reserve_margin_bps"`
		Assets              []string `yaml:"assets"`
	} `yaml:"settlement"`
	Notifier struct {
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"notifier"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Signer.PrivateKey == "" {
		return nil, errors.New("signer.private_key is required")
	}
	if cfg.Chain.RPCEndpoint == "" || cfg.Chain.ChainID == 0 {
		return nil, errors.New("chain config is incomplete")
	}
	if cfg.Clearnode.WSEndpoint == "" {
		return nil, errors.New("clearnode.ws_endpoint is required")
	}
	if len(cfg.Settlement.Assets) == 0 {
		return nil, errors.New("settlement.assets is required")
	}
	if cfg.Settlement.MinBatchSize < 1 {
		return nil, errors.New("settlement.min_batch_size must be >= 1")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Settlement.IntervalSeconds <= 0 {
		cfg.Settlement.IntervalSeconds = 180
	}
	if cfg.Settlement.MinBatchSize == 0 {
		cfg.Settlement.MinBatchSize = 1
	}
	if cfg.Settlement.PhaseTimeoutSeconds <= 0 {
		cfg.Settlement.PhaseTimeoutSeconds = 60
	}
	if cfg.Chain.ConfirmDepth <= 0 {
		cfg.Chain.ConfirmDepth = 2
	}
	if cfg.Notifier.Exchange == "" {
		cfg.Notifier.Exchange = "settlement_events"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("SIGNER_PRIVATE_KEY"); v != "" {
		cfg.Signer.PrivateKey = v
	}
	if v := os.Getenv("CHAIN_RPC_ENDPOINT"); v != "" {
		cfg.Chain.RPCEndpoint = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		cfg.Chain.ChainID = atoi64Or(cfg.Chain.ChainID, v)
	}
	if v := os.Getenv("CONFIRM_DEPTH"); v != "" {
		cfg.Chain.ConfirmDepth = atoiOr(cfg.Chain.ConfirmDepth, v)
	}
	if v := os.Getenv("CREDIT_CONTRACT"); v != "" {
		cfg.Chain.CreditContract = v
	}
	if v := os.Getenv("CLEARNODE_WS_ENDPOINT"); v != "" {
		cfg.Clearnode.WSEndpoint = v
	}
	if v := os.Getenv("CLEARNODE_APP_NAME"); v != "" {
		cfg.Clearnode.AppName = v
	}
	if v := os.Getenv("SETTLE_INTERVAL_SECONDS"); v != "" {
		cfg.Settlement.IntervalSeconds = atoi64Or(cfg.Settlement.IntervalSeconds, v)
	}
	if v := os.Getenv("SETTLE_MIN_BATCH_SIZE"); v != "" {
		cfg.Settlement.MinBatchSize = atoiOr(cfg.Settlement.MinBatchSize, v)
	}
	if v := os.Getenv("SETTLE_PHASE_TIMEOUT_SECONDS"); v != "" {
		cfg.Settlement.PhaseTimeoutSeconds = atoi64Or(cfg.Settlement.PhaseTimeoutSeconds, v)
	}
	if v := os.Getenv("SETTLE_RESERVE_MARGIN_BPS"); v != "" {
		cfg.Settlement.ReserveMarginBps = atoi64Or(cfg.Settlement.ReserveMarginBps, v)
	}
	if v := os.Getenv("SETTLE_ASSETS"); v != "" {
		cfg.Settlement.Assets = splitCommaList(v)
	}
	if v := os.Getenv("NOTIFIER_AMQP_URL"); v != "" {
		cfg.Notifier.AMQPURL = v
	}
	if v := os.Getenv("NOTIFIER_EXCHANGE"); v != "" {
		cfg.Notifier.Exchange = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
