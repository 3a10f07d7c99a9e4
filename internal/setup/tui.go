package setup

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/novafi/novafi/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	var (
		backendURL  string
		realtimeURL string
		webAddr     string
		walDir      string
		txLimitStr  string
		web3RPC     string
		confirm     bool
	)

	// defaults
	webAddr = "127.0.0.1:8787"
	walDir = "./wal/portfolio"
	txLimitStr = "20"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("NOVAFI CLIENT SETUP"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Connect this daemon to your NovaFi account.\n"))

	// backend
	fmt.Println(stepStyle.Render("STEP 1: BACKEND"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Example: https://api.novafi.app").
				Validate(validateHTTPURL).
				Value(&backendURL),
			huh.NewInput().
				Title("Realtime URL").
				Description("Example: wss://api.novafi.app/realtime").
				Validate(validateWSURL).
				Value(&realtimeURL),
		),
	).Run()
	if err != nil {
		return err
	}

	// local serving
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("NOVAFI CLIENT SETUP"))
	fmt.Println(stepStyle.Render("STEP 2: LOCAL UI"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Value(&webAddr),
			huh.NewInput().
				Title("Snapshot Journal Directory").
				Value(&walDir),
			huh.NewInput().
				Title("Transactions Per Read").
				Validate(validateLimit).
				Value(&txLimitStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// optional web3 deposits
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("NOVAFI CLIENT SETUP"))
	fmt.Println(stepStyle.Render("STEP 3: CRYPTO DEPOSITS (OPTIONAL)"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Web3 JSON-RPC Endpoint").
				Description("Leave empty to disable on-chain deposits").
				Value(&web3RPC),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("NOVAFI CLIENT SETUP"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Backend: %s\nRealtime: %s\nLocal UI: %s\nJournal: %s\nTx limit: %s\n",
		backendURL, realtimeURL, webAddr, walDir, txLimitStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	txLimit, _ := strconv.Atoi(txLimitStr)
	cfgTmp := config.ConfigTmp{
		BackendURL:   backendURL,
		RealtimeURL:  realtimeURL,
		WebAddr:      webAddr,
		WalDir:       walDir,
		TxFetchLimit: txLimit,
		Web3RPCURL:   web3RPC,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nSet NOVAFI_API_KEY and NOVAFI_ACCESS_TOKEN, then start the daemon.", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("must be a valid http(s) URL")
	}
	return nil
}

func validateWSURL(s string) error {
	if !strings.HasPrefix(s, "ws://") && !strings.HasPrefix(s, "wss://") {
		return fmt.Errorf("must start with ws:// or wss://")
	}
	return nil
}

func validateLimit(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}
