// Package main is the entry point for the TTS adapter.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/config"
	"github.com/tavernvoice/tts-adapter/internal/gateway"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
)

// ASCII banner for startup
const banner = `
 ████████╗████████╗███████╗      █████╗ ██████╗  █████╗ ██████╗ ████████╗███████╗██████╗
 ╚══██╔══╝╚══██╔══╝██╔════╝     ██╔══██╗██╔══██╗██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██╔══██╗
    ██║      ██║   ███████╗     ███████║██║  ██║███████║██████╔╝   ██║   █████╗  ██████╔╝
    ██║      ██║   ╚════██║     ██╔══██║██║  ██║██╔══██║██╔═══╝    ██║   ██╔══╝  ██╔══██╗
    ██║      ██║   ███████║     ██║  ██║██████╔╝██║  ██║██║        ██║   ███████╗██║  ██║
    ╚═╝      ╚═╝   ╚══════╝     ╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝╚═╝        ╚═╝   ╚══════╝╚═╝  ╚═╝
`

func printBanner() {
	fmt.Print(colorGreen + colorBold + banner + colorReset + "\n")
}

// getConfigDir returns ~/.config/tts-adapter
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "tts-adapter")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	// Try loading from ~/.config/tts-adapter/.env first
	if dir := getConfigDir(); dir != "" {
		configEnv := filepath.Join(dir, ".env")
		if _, err := os.Stat(configEnv); err == nil {
			_ = godotenv.Load(configEnv)
		}
	}

	// Also load local .env; godotenv never overrides variables already set
	_ = godotenv.Load()
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve", "start":
		runGatewayServer(args)
		return
	case "clean":
		loadEnvFiles()
		err = runClean(args, os.Stdin, os.Stdout)
	case "init":
		err = runInit(args, os.Stdin, os.Stdout)
	case "version", "-v", "--version":
		PrintVersion(os.Stdout)
		return
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// resolveServeConfig resolves the config for the serve command.
// Checks: user flag -> filesystem locations -> embedded config.
// Returns raw bytes and source description.
func resolveServeConfig(userConfig string) ([]byte, string, error) {
	// If user specified a config path, read it directly
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	// Search filesystem in order of preference
	searchPaths := []string{
		"configs/config.yaml",
		"config.yaml",
	}
	if dir := getConfigDir(); dir != "" {
		searchPaths = append(searchPaths, filepath.Join(dir, "config.yaml"))
	}

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	// Fall back to embedded config
	if data, err := getEmbeddedConfig("config"); err == nil {
		return data, "(embedded) config.yaml", nil
	}

	return nil, "", fmt.Errorf("no config file found. Specify --config path")
}

// loadServeConfig resolves, parses and applies flag overrides.
func loadServeConfig(configPath string, port int) (*config.Config, string, error) {
	configData, configSource, err := resolveServeConfig(configPath)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		return nil, configSource, err
	}

	if port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return nil, configSource, err
		}
	}
	return cfg, configSource, nil
}

// runGatewayServer starts the adapter server
func runGatewayServer(args []string) {
	// Load .env files from standard locations
	loadEnvFiles()

	// Parse flags
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	port := fs.Int("port", 0, "port to listen on (overrides config)")
	fs.IntVar(port, "p", 0, "shorthand for --port")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args) // ExitOnError handles errors

	// Print banner unless suppressed
	if !*noBanner {
		printBanner()
	}

	// Console logging until the config says otherwise
	setupLogging(*debug, os.Stdout)

	cfg, configSource, err := loadServeConfig(*configPath, *port)
	if err != nil {
		log.Fatal().Err(err).Str("config", configSource).Msg("failed to load configuration")
	}

	// The config's monitoring section takes over, --debug still wins
	logger, err := monitoring.Global(cfg.Monitoring.Logger())
	if err != nil {
		log.Warn().Err(err).Str("output", cfg.Monitoring.LogOutput).Msg("logging to stdout instead")
	}
	defer logger.Close()
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Msg("tts adapter starting")

	log.Info().
		Int("port", cfg.Server.Port).
		Str("backend", cfg.Backend.URL).
		Bool("clean_text", cfg.Plugins.IsEnabled(config.PluginCleanText)).
		Bool("translate", cfg.Plugins.IsEnabled(config.PluginTranslate)).
		Bool("rule_generation", cfg.Plugins.CleanText.AIEnable && cfg.LLM.Enabled()).
		Msg("configuration loaded")

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := gw.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("gateway shutdown error")
		}
	}()

	if err := gw.Start(); err != nil {
		log.Fatal().Err(err).Msg("gateway error")
	}

	log.Info().Msg("tts adapter stopped")
}

// setupLogging configures zerolog with pretty console output.
func setupLogging(debug bool, out io.Writer) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	})

	// Set log level
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// printHelp prints usage information
func printHelp() {
	printBanner()
	fmt.Println("tts-adapter - SillyTavern to GPT-SoVITS adapter with text cleaning and translation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tts-adapter [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the adapter server (default)")
	fmt.Println("  clean        Apply a card's cleaning rules to text")
	fmt.Println("  init         Write a starter config, default rules and .env")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Server Options:")
	fmt.Println("  tts-adapter serve [--config FILE] [--port PORT] [--debug] [--no-banner]")
	fmt.Println()
	fmt.Println("Clean Options:")
	fmt.Println("  tts-adapter clean --card KEY [--text TEXT] [--config FILE]")
	fmt.Println("                    Reads stdin when --text is omitted")
	fmt.Println("  tts-adapter clean --list        List cards that have a rule set")
	fmt.Println()
	fmt.Println("Init Options:")
	fmt.Println("  tts-adapter init [--dir DIR] [--api-key KEY] [--force]")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SILICONFLOW_API_KEY          Key for rule generation and translation")
	fmt.Println("  SILICONFLOW_API_URL          Chat completions endpoint")
	fmt.Println("  SILICONFLOW_CLEANER_MODEL    Model for rule generation")
	fmt.Println("  SILICONFLOW_TRANSLATE_MODEL  Model for translation")
	fmt.Println("  TTS_BACKEND_URL              GPT-SoVITS api_v2 base URL")
}
