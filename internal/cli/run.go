package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/corpusd/fuzzcorpus/internal/corpusconfig"

	flag "github.com/spf13/pflag"
)

// Run is corpusctl's entry point. Returns an exit code. sigCh may be
// nil if signal handling is not needed (e.g. in tests).
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("corpusctl", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagInputDir := globalFlags.String("input-dir", "", "Override static corpus `directory`")
	flagOutputDir := globalFlags.String("output-dir", "", "Override dynamic corpus output `directory`")
	flagMaxFileSize := globalFlags.Int("max-file-size", 0, "Override the maximum input size in bytes")
	flagMinimize := globalFlags.Bool("minimize", false, "Enable minimize mode for the minimize command")
	flagWriteback := globalFlags.Bool("writeback", false, "Defer fsync on persisted finds for throughput")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	cfg, err := corpusconfig.Load(corpusconfig.LoadConfigInput{
		WorkDirOverride:     *flagCwd,
		ConfigPath:          *flagConfig,
		Env:                 env,
		InputDirOverride:    *flagInputDir,
		OutputDirOverride:   *flagOutputDir,
		MaxFileSizeOverride: *flagMaxFileSize,
		MinimizeOverride:    *flagMinimize,
		WritebackOverride:   *flagWriteback,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	commands := allCommands(cfg)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)

		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		return exitCode
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")

		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")

		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")

		return 130
	}
}

// allCommands returns all commands in display order. Dependencies are
// captured via closures in each command constructor.
func allCommands(cfg corpusconfig.Config) []*Command {
	return []*Command{
		DryRunCmd(cfg),
		IngestCmd(cfg),
		StatsCmd(cfg),
		MinimizeCmd(cfg),
		PrintConfigCmd(cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help                 Show help
  -C, --cwd <dir>            Run as if started in <dir>
  -c, --config <file>        Use specified config file
  --input-dir <dir>          Override static corpus directory
  --output-dir <dir>         Override dynamic corpus output directory
  --max-file-size <bytes>    Override the maximum input size
  --minimize                 Enable minimize mode for the minimize command
  --writeback                Defer fsync on persisted finds for throughput`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: corpusctl [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'corpusctl --help' for a list of commands.")
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "corpusctl - coverage-guided fuzzer corpus engine")
	fprintln(w)
	fprintln(w, "Usage: corpusctl [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
