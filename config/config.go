package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultWebAddr      = "127.0.0.1:8787"
	defaultWalDir       = "./wal/portfolio"
	defaultTxFetchLimit = 20
)

// Config carries everything the daemon needs to mirror one user's view.
// Secrets (API key, access token, web3 key) come from the environment,
// never from the YAML file.
type Config struct {
	BackendURL   string
	RealtimeURL  string
	WebAddr      string
	WalDir       string
	TxFetchLimit int
	Web3RPCURL   string

	APIKey      string
	AccessToken string
	Web3Key     string
}

type ConfigTmp struct {
	BackendURL   string `yaml:"backend_url"`
	RealtimeURL  string `yaml:"realtime_url"`
	WebAddr      string `yaml:"web_addr,omitempty"`
	WalDir       string `yaml:"wal_dir,omitempty"`
	TxFetchLimit int    `yaml:"tx_fetch_limit,omitempty"`
	Web3RPCURL   string `yaml:"web3_rpc_url,omitempty"`
}

// Get loads configuration from --config YAML if provided, else from flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	backendURL := flag.String("backend", "", "backend base URL, example: https://api.novafi.app")
	realtimeURL := flag.String("realtime", "", "realtime websocket URL, example: wss://api.novafi.app/realtime")
	webAddr := flag.String("webaddr", defaultWebAddr, "local UI listen address")
	walDir := flag.String("waldir", defaultWalDir, "portfolio snapshot WAL directory")
	txLimit := flag.Int("txlimit", defaultTxFetchLimit, "how many recent transactions to fetch per read")
	web3RPC := flag.String("web3rpc", "", "web3 json-rpc endpoint for crypto deposits (optional)")
	flag.Parse()

	var conf Config
	if *configPath != "" {
		loaded, err := getYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		conf = loaded
	} else {
		conf = Config{
			BackendURL:   *backendURL,
			RealtimeURL:  *realtimeURL,
			WebAddr:      *webAddr,
			WalDir:       *walDir,
			TxFetchLimit: *txLimit,
			Web3RPCURL:   *web3RPC,
		}
	}

	conf.APIKey = os.Getenv("NOVAFI_API_KEY")
	conf.AccessToken = os.Getenv("NOVAFI_ACCESS_TOKEN")
	conf.Web3Key = os.Getenv("NOVAFI_WEB3_KEY")

	if err := conf.validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	conf := Config{
		BackendURL:   tmp.BackendURL,
		RealtimeURL:  tmp.RealtimeURL,
		WebAddr:      tmp.WebAddr,
		WalDir:       tmp.WalDir,
		TxFetchLimit: tmp.TxFetchLimit,
		Web3RPCURL:   tmp.Web3RPCURL,
	}
	if conf.WebAddr == "" {
		conf.WebAddr = defaultWebAddr
	}
	if conf.WalDir == "" {
		conf.WalDir = defaultWalDir
	}
	if conf.TxFetchLimit == 0 {
		conf.TxFetchLimit = defaultTxFetchLimit
	}
	return conf, nil
}

func (c Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL is required (--backend or 'backend_url' in yaml)")
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid backend URL %q: %w", c.BackendURL, err)
	}
	if c.RealtimeURL == "" {
		return fmt.Errorf("realtime URL is required (--realtime or 'realtime_url' in yaml)")
	}
	if !strings.HasPrefix(c.RealtimeURL, "ws://") && !strings.HasPrefix(c.RealtimeURL, "wss://") {
		return fmt.Errorf("invalid realtime URL %q: must use ws:// or wss://", c.RealtimeURL)
	}
	if c.TxFetchLimit <= 0 {
		return fmt.Errorf("tx fetch limit must be positive, got %d", c.TxFetchLimit)
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required (set NOVAFI_API_KEY)")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access token is required (set NOVAFI_ACCESS_TOKEN)")
	}
	return nil
}
