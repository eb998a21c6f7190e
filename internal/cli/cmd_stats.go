package cli

import (
	"context"
	"fmt"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"
	"github.com/corpusd/fuzzcorpus/pkg/blacklist"
	"github.com/corpusd/fuzzcorpus/pkg/dictionary"
	"github.com/corpusd/fuzzcorpus/pkg/staticreader"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the stats command.
func StatsCmd(cfg corpusconfig.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Report static corpus, dictionary, and blacklist sizes",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execStats(io, cfg)
		},
	}
}

func execStats(io *IO, cfg corpusconfig.Config) error {
	rdr := staticreader.New(cfg.InputDirAbs, cfg.MaxFileSize, nil)
	if err := rdr.Init(); err != nil {
		return fmt.Errorf("stats: scan %q: %w", cfg.InputDirAbs, err)
	}

	defer rdr.Close()

	io.Printf("static_corpus_files=%d\n", rdr.Count())
	io.Printf("derived_max_input_size=%d\n", rdr.MaxInputSz())

	if cfg.DictionaryPath != "" {
		dict, err := dictionary.Load(cfg.DictionaryPath, nil)
		if err != nil {
			return fmt.Errorf("stats: load dictionary: %w", err)
		}

		io.Printf("dictionary_entries=%d\n", dict.Len())
	}

	if cfg.BlacklistPath != "" {
		bl, err := blacklist.Load(cfg.BlacklistPath)
		if err != nil {
			return fmt.Errorf("stats: load blacklist: %w", err)
		}

		io.Printf("blacklist_entries=%d\n", bl.Len())
	}

	return nil
}
