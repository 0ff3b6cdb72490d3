package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/plugins/cleantext"
	"github.com/tavernvoice/tts-adapter/internal/rules"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// runClean applies a card's RuleSet to text offline, the same way the
// clean_text plugin does during synthesis. It never calls the generation
// service: a card without a RuleSet is cleaned with the default.
func runClean(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to config file")
	card := fs.String("card", rules.DefaultName, "card key (third card_name element)")
	text := fs.String("text", "", "text to clean (default: read stdin)")
	raw := fs.Bool("raw", false, "skip the built-in garbage cleaning")
	verbose := fs.Bool("v", false, "log which rule set was used")
	list := fs.Bool("list", false, "list the cards that have a rule set and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *verbose {
		setupLogging(true, os.Stderr)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	cfg, _, err := loadServeConfig(*configPath, 0)
	if err != nil {
		return err
	}

	store := rules.NewFileStore(cfg.Paths.CardConfig())
	if *list {
		keys, err := store.List()
		if err != nil {
			return err
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintln(stdout, key)
		}
		return nil
	}

	input := *text
	if input == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = strings.TrimRight(string(data), "\n")
	}
	if input == "" {
		return errors.New("nothing to clean: pass --text or pipe text on stdin")
	}

	if !*raw {
		input = tts.CleanGarbage(input)
	}

	resolver := cleantext.NewResolver(store, nil)
	rs := resolver.ResolveOrDefault(context.Background(), *card, input)
	log.Debug().Str("card", *card).Str("rule_set", rs.Name).Str("dir", store.Dir()).Msg("resolved rule set")

	_, err = fmt.Fprintln(stdout, rules.Apply(input, rs))
	return err
}
