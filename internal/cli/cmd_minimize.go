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
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/phase"

	flag "github.com/spf13/pflag"
)

// MinimizeCmd returns the minimize command: it loads every file under
// the static corpus into an in-memory corpus in minimize mode and walks
// it once with PrepareDynamicFileForMinimization, writing each case out
// under <output-dir>/minimized. This exercises the minimization cursor
// walk (spec §4.3.7) without requiring a live fuzzing run to drive it.
func MinimizeCmd(cfg corpusconfig.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("minimize", flag.ContinueOnError),
		Usage: "minimize",
		Short: "Walk the static corpus once through the minimization cursor",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execMinimize(io, cfg)
		},
	}
}

func execMinimize(io *IO, cfg corpusconfig.Config) error {
	if !cfg.Minimize {
		return fmt.Errorf("minimize: minimize mode is not enabled; set --minimize or \"minimize\": true in config")
	}

	entries, err := os.ReadDir(cfg.InputDirAbs)
	if err != nil {
		return fmt.Errorf("minimize: read %q: %w", cfg.InputDirAbs, err)
	}

	sm := phase.NewStateMachine()
	sm.Transition(phase.Minimize)

	c := corpus.New(corpus.Options{
		OutputDir: cfg.OutputDir,
		Oracle:    sm,
		Writeback: cfg.Writeback,
	}, fs.NewReal(), nil)

	var maxSz int

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if int(info.Size()) > maxSz {
			maxSz = int(info.Size())
		}
	}

	if maxSz == 0 {
		maxSz = iobuf.DefaultSize
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(cfg.InputDirAbs, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			io.ErrPrintln("warning: skipping", path, "-", err)

			continue
		}

		if err := c.AddDynamicInput(data, covvec.Vector{}, entry.Name()); err != nil {
			io.ErrPrintln("warning: load failed for", path, "-", err)
		}
	}

	outDir := filepath.Join(cfg.OutputDir, "minimized")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("minimize: create %q: %w", outDir, err)
	}

	buf, err := iobuf.New("", maxSz, nil)
	if err != nil {
		return fmt.Errorf("minimize: allocate buffer: %w", err)
	}

	defer buf.Close()

	visited := 0

	for {
		result, err := c.PrepareDynamicFileForMinimization(buf)
		if err != nil {
			return fmt.Errorf("minimize: step %d: %w", visited, err)
		}

		if !result.More {
			break
		}

		outPath := filepath.Join(outDir, result.OrigFileName)
		if err := os.WriteFile(outPath, buf.Bytes()[:buf.Size()], 0o644); err != nil {
			io.ErrPrintln("warning: write failed for", outPath, "-", err)

			continue
		}

		visited++
	}

	io.Printf("visited=%d\n", visited)

	return nil
}
