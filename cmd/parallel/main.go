// Command parallel instantiates a user-supplied command template against
// every input drawn from one or more argument lists, dispatches the
// instantiated commands across a bounded pool of workers, and emits each
// job's captured stdout/stderr in strict input order.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/riftwood/parallel/internal/clisize"
	"github.com/riftwood/parallel/internal/collector"
	"github.com/riftwood/parallel/internal/config"
	"github.com/riftwood/parallel/internal/dryrun"
	"github.com/riftwood/parallel/internal/jobpool"
	"github.com/riftwood/parallel/internal/logging"
	"github.com/riftwood/parallel/internal/perr"
	"github.com/riftwood/parallel/internal/reader"
	"github.com/riftwood/parallel/internal/shellexec"
	"github.com/riftwood/parallel/internal/spool"
	"github.com/riftwood/parallel/internal/stats"
	"github.com/riftwood/parallel/internal/token"
)

var version = "dev"

// options is the CLI surface described in spec.md §6, parsed with
// go-flags struct tags the way the pack's other GNU-parallel-shaped
// program (nicois/parallel) drives its own flags.
type options struct {
	Jobs          string  `short:"j" long:"jobs" description:"worker count: absolute, NxCORES, P%, or +N/-N relative to cores"`
	MaxArgs       int     `short:"n" long:"max-args" description:"group up to N inputs per logical input"`
	Pipe          bool    `short:"p" long:"pipe" description:"feed the input to the child's standard input instead of substituting it"`
	Quote         bool    `short:"q" long:"quote" description:"shell-escape inputs that are themselves commands"`
	Quiet         bool    `short:"s" long:"quiet" description:"discard captured stdout"`
	Silent        bool    `long:"silent" description:"alias for --quiet"`
	Verbose       bool    `short:"v" long:"verbose" description:"print a job header before each emission and a summary at exit"`
	Delay         float64 `long:"delay" description:"seconds to wait before dispatching each job after the first"`
	Timeout       float64 `long:"timeout" description:"seconds to wait for a job before killing it"`
	MemFree       string  `long:"mem-free" description:"minimum available system memory required to dispatch a job"`
	DryRun        bool    `long:"dry-run" description:"print instantiated commands instead of running them"`
	ETA           bool    `long:"eta" description:"print an ETA line to stderr after each completion"`
	Joblog        string  `long:"joblog" description:"path to write a tab-separated job log"`
	Joblog8601    bool    `long:"joblog-8601" description:"use ISO-8601 start times in the job log"`
	NumCPUCores   bool    `long:"num-cpu-cores" description:"print the detected core count and exit"`
	ShellQuote    bool    `long:"shellquote" description:"shell-escape dry-run output"`
	TmpDir        string  `long:"tmpdir" description:"spool directory (default: a freshly created temp directory)"`
	TempDir       string  `long:"tempdir" description:"alias for --tmpdir"`
	Shebang       string  `long:"shebang" description:"remainder is the template; the last positional argument is an input file"`
	TuningProfile string  `long:"tuning-profile" description:"optional YAML file of tuning defaults"`
	Version       bool    `long:"version" description:"print the version and exit"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}

	if opts.Version {
		fmt.Printf("parallel %s\n", version)
		return 0
	}
	if opts.NumCPUCores {
		fmt.Println(runtime.NumCPU())
		return 0
	}
	quiet := opts.Quiet || opts.Silent

	logger := logging.Default(opts.Verbose)

	profile := config.Default()
	if opts.TuningProfile != "" {
		p, err := config.Load(opts.TuningProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
			return 1
		}
		profile = p
	}

	template, listArgs, err := resolveTemplate(opts, rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}

	inputs, err := materializeInputs(opts, listArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return perr.ExitCode(err)
	}

	tmpdir := opts.TmpDir
	if tmpdir == "" {
		tmpdir = opts.TempDir
	}
	var cleanup func()
	if tmpdir == "" {
		dir, err := os.MkdirTemp("", "parallel-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
			return 1
		}
		tmpdir = dir
		cleanup = func() { os.RemoveAll(dir) }
	} else if err := os.MkdirAll(tmpdir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}

	sp, err := spool.New(tmpdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}
	total, err := sp.WriteUnprocessed(inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return perr.ExitCode(err)
	}

	lineAt := func(n int) (string, bool) {
		if n < 1 || n > len(inputs) {
			return "", false
		}
		return inputs[n-1], true
	}
	tokens, err := token.Tokenize(template, total, lineAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return perr.ExitCode(err)
	}

	rdr, err := reader.Open(sp.Path(spool.UnprocessedFile), total, profile.WindowSizeBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}
	defer rdr.Close()

	quoteForDryRun := opts.ShellQuote || opts.Quote
	if opts.DryRun {
		if err := dryrun.Render(os.Stdout, tokens, rdr, opts.Pipe, quoteForDryRun); err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
			return 1
		}
		return 0
	}

	cores := runtime.NumCPU()
	jobsSpec := opts.Jobs
	if jobsSpec == "" {
		jobsSpec = strconv.Itoa(cores)
	}
	workers, err := clisize.ParseJobs(jobsSpec, cores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}

	var memFree uint64
	if opts.MemFree != "" {
		memFree, err = clisize.ParseMemFree(opts.MemFree)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
			return 1
		}
	}

	shellEnabled := shellexec.ShellRequired(template)
	shell := shellexec.Detect(exec.LookPath)
	logger.Debug("shell selected", "shell", shell, "shell_enabled", shellEnabled)

	cfg := jobpool.Config{
		Workers:      workers,
		Total:        total,
		Delay:        time.Duration(opts.Delay * float64(time.Second)),
		Timeout:      time.Duration(opts.Timeout * float64(time.Second)),
		MemFree:      memFree,
		Pipe:         opts.Pipe,
		ShellEnabled: shellEnabled,
		Quiet:        quiet,
		MemPollEvery: profile.MemPollInterval(),
	}
	pool := jobpool.New(cfg, tokens, rdr, shellexec.NewBuilder(shell), jobpool.SystemMemAvailable)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	errorsFile, err := os.OpenFile(sp.Path(spool.ErrorsFile), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}
	defer errorsFile.Close()

	processedFile, err := os.OpenFile(sp.Path(spool.ProcessedFile), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		return 1
	}
	defer processedFile.Close()

	var joblogWriter *os.File
	if opts.Joblog != "" {
		joblogWriter, err = os.Create(opts.Joblog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
			return 1
		}
		defer joblogWriter.Close()
	}

	host, _ := os.Hostname()
	col := collector.New(collector.Config{
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		ErrorsFile:    errorsFile,
		ProcessedFile: processedFile,
		Joblog:        joblogWriter,
		Joblog8601:    opts.Joblog8601,
		Verbose:       opts.Verbose,
		Quiet:         quiet,
		ETA:           opts.ETA,
		Host:          host,
		Reader:        rdr,
	})

	tracker := stats.NewTracker()
	completions := pool.Run(ctx)
	for rec := range completions {
		if err := col.Handle(rec); err != nil {
			fmt.Fprintf(os.Stderr, "parallel: %s\n", err)
		}
		if opts.Verbose {
			tracker.Record(rec)
		}
	}

	exitCode := col.Finish()

	if opts.Verbose {
		printSummary(os.Stderr, tracker.Summary())
	}

	return exitCode
}

// resolveTemplate decides the command template and the remaining list
// arguments. With --shebang, the flag's value is the template and the
// final positional argument is a file whose lines become the single
// input list. Otherwise the first positional argument is the template
// and everything after it is scanned for list markers, unless that first
// argument is itself a list marker, in which case there is no external
// template and the inputs are themselves commands (rendered via a bare
// "{}" template).
func resolveTemplate(opts options, rest []string) (template string, listArgs []string, err error) {
	if opts.Shebang != "" {
		if len(rest) == 0 {
			return "", nil, fmt.Errorf("--shebang requires a trailing input file argument")
		}
		file := rest[len(rest)-1]
		return opts.Shebang, []string{"::::", file}, nil
	}
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("no command template given")
	}
	if isListMarker(rest[0]) {
		return "{}", rest, nil
	}
	return rest[0], rest[1:], nil
}

func isListMarker(s string) bool {
	switch s {
	case ":::", "::::", ":::+", "::::+":
		return true
	default:
		return false
	}
}

// materializeInputs runs the Input Spooler's list algebra: build the
// LISTS from listArgs, combine them (cartesian product for 2+, as-is for
// one, stdin when no markers appear at all), optionally shell-quote
// (when the caller has no external template), and chunk into groups of
// --max-args.
func materializeInputs(opts options, listArgs []string) ([]string, error) {
	fileReader := spool.ReadFileLines(func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	})

	lists, err := spool.BuildLists(listArgs, fileReader)
	if err != nil {
		return nil, err
	}

	var combined []string
	switch {
	case len(lists) == 0:
		if isTerminal(os.Stdin) {
			return nil, perr.New(perr.NoArguments, "")
		}
		stdinLines, err := spool.ReadStdinList(bufio.NewReader(os.Stdin))
		if err != nil {
			return nil, err
		}
		combined = stdinLines
	case len(lists) == 1:
		combined = lists[0]
	default:
		combined = spool.CartesianProduct(lists)
	}

	if opts.Quote && noTemplateGiven(listArgs) {
		for i, in := range combined {
			combined[i] = shellexec.Quote(in)
		}
	}

	if len(combined) == 0 {
		return nil, perr.New(perr.NoArguments, "")
	}

	return spool.Chunk(combined, opts.MaxArgs), nil
}

// noTemplateGiven reports whether listArgs begins with a list marker,
// meaning resolveTemplate fell back to the bare "{}" template because the
// caller supplied no external command — i.e. the inputs are themselves
// the commands to run.
func noTemplateGiven(listArgs []string) bool {
	return len(listArgs) > 0 && isListMarker(listArgs[0])
}

func printSummary(w io.Writer, s stats.Summary) {
	fmt.Fprintf(w, "parallel: %d jobs, %d failed, %s total wall time\n", s.TotalJobs, s.Failures, s.WallTime)
	slots := make([]int, 0, len(s.BySlot))
	for slot := range s.BySlot {
		slots = append(slots, slot)
	}
	for _, slot := range sortedInts(slots) {
		summary := s.BySlot[slot]
		fmt.Fprintf(w, "  slot %d: %d jobs, %d failed, %s\n", slot, summary.Jobs, summary.Failures, summary.WallTime)
	}
}

// isTerminal reports whether f is connected to an interactive character
// device, used to decide whether the Input Spooler should fall back to
// reading standard input when no ":::"/"::::" list markers were given.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func sortedInts(xs []int) []int {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
	return xs
}
