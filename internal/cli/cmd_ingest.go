package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"
	"github.com/corpusd/fuzzcorpus/pkg/corpus"
	"github.com/corpusd/fuzzcorpus/pkg/covvec"
	"github.com/corpusd/fuzzcorpus/pkg/fs"
	"github.com/corpusd/fuzzcorpus/pkg/phase"

	flag "github.com/spf13/pflag"
)

// IngestCmd returns the ingest command: it copies every regular file in
// a source directory into the dynamic corpus's content-addressed output
// directory, exactly as AddDynamicInput would on a coverage-improving
// find, without requiring a live fuzzing run.
func IngestCmd(cfg corpusconfig.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ingest", flag.ContinueOnError),
		Usage: "ingest <dir>",
		Short: "Copy files from <dir> into the dynamic corpus output",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("ingest: expected exactly one directory argument")
			}

			return execIngest(io, cfg, args[0])
		},
	}
}

func execIngest(io *IO, cfg corpusconfig.Config, srcDir string) error {
	if cfg.OutputDir == "" {
		return fmt.Errorf("ingest: output_dir is not configured")
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("ingest: read %q: %w", srcDir, err)
	}

	sm := phase.NewStateMachine()
	sm.Transition(phase.DynamicMain)

	c := corpus.New(corpus.Options{
		OutputDir: cfg.OutputDir,
		Oracle:    sm,
		Writeback: cfg.Writeback,
	}, fs.NewReal(), nil)

	ingested := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(srcDir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			io.ErrPrintln("warning: skipping", path, "-", err)

			continue
		}

		if err := c.AddDynamicInput(data, covvec.Vector{}, entry.Name()); err != nil {
			io.ErrPrintln("warning: ingest failed for", path, "-", err)

			continue
		}

		ingested++
	}

	c.RenumerateInputs()

	io.Printf("ingested=%d\n", ingested)
	io.Printf("total_corpus_size=%d\n", c.Count())

	return nil
}
