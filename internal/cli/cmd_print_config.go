package cli

import (
	"context"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg corpusconfig.Config) *Command {
	fs := flag.NewFlagSet("print-config", flag.ContinueOnError)
	save := fs.String("save", "", "Write the resolved configuration to `path`")

	return &Command{
		Flags: fs,
		Usage: "print-config [--save path]",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg, *save)
		},
	}
}

func execPrintConfig(io *IO, cfg corpusconfig.Config, savePath string) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("input_dir=" + cfg.InputDirAbs)

	if cfg.OutputDir != "" {
		io.Println("output_dir=" + cfg.OutputDir)
	}

	if cfg.NewCoverageDir != "" {
		io.Println("new_coverage_dir=" + cfg.NewCoverageDir)
	}

	if cfg.DictionaryPath != "" {
		io.Println("dictionary=" + cfg.DictionaryPath)
	}

	if cfg.BlacklistPath != "" {
		io.Println("blacklist=" + cfg.BlacklistPath)
	}

	io.Printf("max_file_size=%d\n", cfg.MaxFileSize)
	io.Printf("socket_fuzzer=%t\n", cfg.SocketFuzzer)

	io.Println()
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	if savePath != "" {
		if err := corpusconfig.Save(savePath, cfg); err != nil {
			return err
		}

		io.Println()
		io.Println("saved=" + savePath)
	}

	return nil
}
