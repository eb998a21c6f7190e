package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"
	"github.com/corpusd/fuzzcorpus/internal/prep"
	"github.com/corpusd/fuzzcorpus/pkg/iobuf"
	"github.com/corpusd/fuzzcorpus/pkg/phase"
	"github.com/corpusd/fuzzcorpus/pkg/staticreader"
	"github.com/corpusd/fuzzcorpus/pkg/subproc"

	flag "github.com/spf13/pflag"
)

// DryRunCmd returns the dryrun command: it feeds every file in the
// static corpus, at geometrically growing prefix sizes, to a target
// command and reports crashes.
func DryRunCmd(cfg corpusconfig.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("dryrun", flag.ContinueOnError),
		Usage: "dryrun -- <target> [args...]",
		Short: "Exercise the target over the static corpus once",
		Long:  "Runs <target> once per prefix-grown static corpus case. ___FILE___ in args is replaced with the case's temp-file path.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("dryrun: expected a target command after --")
			}

			return execDryRun(ctx, io, cfg, args[0], args[1:])
		},
	}
}

func execDryRun(ctx context.Context, io *IO, cfg corpusconfig.Config, target string, targetArgs []string) error {
	rdr := staticreader.New(cfg.InputDirAbs, cfg.MaxFileSize, nil)
	if err := rdr.Init(); err != nil {
		return fmt.Errorf("dryrun: scan %q: %w", cfg.InputDirAbs, err)
	}

	defer rdr.Close()

	sm := phase.NewStateMachine()
	sm.Transition(phase.DryRun)

	buf, err := iobuf.New("", rdr.MaxInputSz(), nil)
	if err != nil {
		return fmt.Errorf("dryrun: allocate buffer: %w", err)
	}

	defer buf.Close()

	preparer := prep.New(prep.Deps{
		Reader:   rdr,
		Oracle:   sm,
		Buf:      buf,
		InputDir: cfg.InputDirAbs,
		WorkDir:  "",
	})

	runner := subproc.ExecRunner{}

	var total, crashes int

	for {
		ok, err := preparer.PrepareStaticFile(false, false)
		if err != nil {
			return fmt.Errorf("dryrun: prepare case %d: %w", total, err)
		}

		if !ok {
			break
		}

		total++

		tmp, err := os.CreateTemp("", "corpus-dryrun-*")
		if err != nil {
			return fmt.Errorf("dryrun: tmp file: %w", err)
		}

		if _, err := tmp.Write(buf.Bytes()[:buf.Size()]); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())

			return fmt.Errorf("dryrun: write tmp file: %w", err)
		}

		tmp.Close()

		argv := substituteFile(targetArgs, tmp.Name())

		exitCode, runErr := runner.Run(ctx, target, argv)

		os.Remove(tmp.Name())

		if runErr != nil {
			return fmt.Errorf("dryrun: run target: %w", runErr)
		}

		if exitCode != 0 {
			crashes++

			io.Printf("crash case=%d exit=%d\n", total, exitCode)
		}
	}

	io.Printf("total_cases=%d\n", total)
	io.Printf("crashes=%d\n", crashes)

	return nil
}

func substituteFile(args []string, path string) []string {
	out := make([]string, len(args))

	for i, a := range args {
		if a == "___FILE___" {
			out[i] = path

			continue
		}

		out[i] = a
	}

	return out
}
