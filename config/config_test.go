package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetYamlAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
backend_url: https://api.novafi.app
realtime_url: wss://api.novafi.app/realtime
`)

	conf, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.novafi.app", conf.BackendURL)
	require.Equal(t, "wss://api.novafi.app/realtime", conf.RealtimeURL)
	require.Equal(t, defaultWebAddr, conf.WebAddr)
	require.Equal(t, defaultWalDir, conf.WalDir)
	require.Equal(t, defaultTxFetchLimit, conf.TxFetchLimit)
}

func TestGetYamlKeepsExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
backend_url: https://api.novafi.app
realtime_url: wss://api.novafi.app/realtime
web_addr: 0.0.0.0:9000
wal_dir: /var/lib/novafi/wal
tx_fetch_limit: 50
web3_rpc_url: https://mainnet.example.org
`)

	conf, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", conf.WebAddr)
	require.Equal(t, "/var/lib/novafi/wal", conf.WalDir)
	require.Equal(t, 50, conf.TxFetchLimit)
	require.Equal(t, "https://mainnet.example.org", conf.Web3RPCURL)
}

func TestGetYamlMissingFile(t *testing.T) {
	_, err := getYaml(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestGetYamlMalformed(t *testing.T) {
	path := writeConfigFile(t, "backend_url: [not: valid")
	_, err := getYaml(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		BackendURL:   "https://api.novafi.app",
		RealtimeURL:  "wss://api.novafi.app/realtime",
		TxFetchLimit: 20,
		APIKey:       "k",
		AccessToken:  "t",
	}
	require.NoError(t, valid.validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing backend", func(c *Config) { c.BackendURL = "" }, "backend URL is required"},
		{"malformed backend", func(c *Config) { c.BackendURL = "not a url" }, "invalid backend URL"},
		{"missing realtime", func(c *Config) { c.RealtimeURL = "" }, "realtime URL is required"},
		{"http realtime", func(c *Config) { c.RealtimeURL = "https://api.novafi.app/realtime" }, "must use ws:// or wss://"},
		{"zero tx limit", func(c *Config) { c.TxFetchLimit = 0 }, "tx fetch limit must be positive"},
		{"missing api key", func(c *Config) { c.APIKey = "" }, "NOVAFI_API_KEY"},
		{"missing access token", func(c *Config) { c.AccessToken = "" }, "NOVAFI_ACCESS_TOKEN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := valid
			tc.mutate(&conf)
			err := conf.validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
