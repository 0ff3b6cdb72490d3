package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/tavernvoice/tts-adapter/internal/rules"
)

// apiKeyEnv is the variable the LLM section reads its key from.
const apiKeyEnv = "SILICONFLOW_API_KEY"

// runInit lays out a working directory for the adapter:
//
//	DIR/configs/config.yaml   starter config (embedded copy)
//	DIR/card_config/default.yaml
//	DIR/voice/  DIR/output/
//	DIR/models.json           empty character map
//	DIR/.env                  API key, when one is given
//
// Existing files are kept unless --force is set.
func runInit(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dir := fs.String("dir", ".", "directory to initialize")
	apiKey := fs.String("api-key", "", "SiliconFlow API key to store in DIR/.env")
	force := fs.Bool("force", false, "overwrite existing files")
	noPrompt := fs.Bool("no-prompt", false, "never ask for input")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printHeader(stdout, "TTS Adapter Setup")

	for _, sub := range []string{"configs", "voice", "output", "card_config"} {
		if err := os.MkdirAll(filepath.Join(*dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	// =========================================================================
	// CONFIG FILES
	// =========================================================================

	configData, err := getEmbeddedConfig("config")
	if err != nil {
		return fmt.Errorf("embedded config missing: %w", err)
	}
	if err := writeIfMissing(stdout, filepath.Join(*dir, "configs", "config.yaml"), configData, *force); err != nil {
		return err
	}
	if err := writeIfMissing(stdout, filepath.Join(*dir, "models.json"), []byte("{}\n"), *force); err != nil {
		return err
	}

	store := rules.NewFileStore(filepath.Join(*dir, "card_config"))
	if *force {
		err = store.Save(rules.DefaultName, rules.Default())
	} else {
		err = store.EnsureDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to write default rule set: %w", err)
	}
	printSuccess(stdout, "card_config/default.yaml ready")

	// =========================================================================
	// API KEY
	// =========================================================================

	key := strings.TrimSpace(*apiKey)
	if key == "" && os.Getenv(apiKeyEnv) == "" && !*noPrompt {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "  Rule generation and translation call a chat completions service.")
		fmt.Fprintln(stdout, "  Get a key at: https://cloud.siliconflow.cn/account/ak")
		key = promptSecret(stdin, stdout, "Enter your API key (Enter to skip): ")
	}
	if key != "" {
		envPath := filepath.Join(*dir, ".env")
		if err := persistCredential(envPath, apiKeyEnv, key); err != nil {
			return err
		}
		printSuccess(stdout, fmt.Sprintf("%s saved to %s", apiKeyEnv, envPath))
	} else {
		printInfo(stdout, "No API key stored; cleaning uses on-disk rules only")
	}

	fmt.Fprintln(stdout)
	printStep(stdout, "Put reference audio (alice.wav + alice.txt) in voice/")
	printStep(stdout, fmt.Sprintf("Start with: tts-adapter serve --config %s", filepath.Join(*dir, "configs", "config.yaml")))
	return nil
}

// writeIfMissing writes data to path unless it already exists.
func writeIfMissing(w io.Writer, path string, data []byte, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		printInfo(w, fmt.Sprintf("%s exists, keeping it", path))
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	printSuccess(w, fmt.Sprintf("wrote %s", path))
	return nil
}

// =============================================================================
// CREDENTIAL PERSISTENCE
// =============================================================================

// persistCredential adds or updates key in an .env file, keeping the
// other entries.
func persistCredential(envPath, key, value string) error {
	env := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		existing, err := godotenv.Read(envPath)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", envPath, err)
		}
		env = existing
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	env[key] = value
	if err := godotenv.Write(env, envPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", envPath, err)
	}
	return os.Chmod(envPath, 0o600)
}

// =============================================================================
// PROMPT HELPERS
// =============================================================================

// promptOptional prompts for input that can be skipped with Enter.
func promptOptional(r io.Reader, w io.Writer, prompt string) string {
	reader := bufio.NewReader(r)
	fmt.Fprint(w, prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// promptSecret prompts for a credential. On a terminal the input is not
// echoed; other readers (pipes, tests) are read line by line.
func promptSecret(r io.Reader, w io.Writer, prompt string) string {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(w, prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w) // New line after hidden input
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return promptOptional(r, w, prompt)
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s========================================%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s       %s%s\n", colorBold, colorCyan, title, colorReset)
	fmt.Fprintf(w, "%s%s========================================%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintln(w)
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s[OK]%s %s\n", colorGreen, colorReset, msg)
}

func printInfo(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printStep(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s>>>%s %s\n", colorCyan, colorReset, msg)
}
