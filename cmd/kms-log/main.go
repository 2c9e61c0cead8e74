// Command kms-log is a tool for viewing and analyzing mode-setting trace files.
//
// Trace files are written by kms-device when started with -trace or when the
// configuration names a trace path.
//
// Usage:
//
//	kms-log <command> [flags] <file.klog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	kms-log view card0.klog
//
//	# View only failed commands
//	kms-log view --failed card0.klog
//
//	# Export to JSONL
//	kms-log export --format jsonl card0.klog
//
//	# Keep one session and save to new file
//	kms-log filter --session 3f1c... -o session.klog card0.klog
//
//	# Show statistics
//	kms-log stats card0.klog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kms-core/kms-go/cmd/kms-log/commands"
)

const usage = `kms-log - Mode-setting Trace Analyzer

Usage:
  kms-log <command> [flags] <file.klog>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "kms-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `kms-log view - View trace file in human-readable format

Usage:
  kms-log view [flags] <file.klog>

Flags:
`)
		fs.PrintDefaults()
	}

	category := fs.String("category", "", "Filter by category (ioctl, snapshot, state, error)")
	command := fs.String("command", "", "Filter by command name (e.g. MODE_ADDFB)")
	failed := fs.Bool("failed", false, "Only show commands that returned an errno")
	snapshots := fs.Bool("snapshots", true, "Render snapshot payloads")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	filter := commands.ViewFilter{
		Command:       *command,
		FailedOnly:    *failed,
		ShowSnapshots: *snapshots,
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `kms-log export - Export trace file to JSON or CSV format

Usage:
  kms-log export [flags] <file.klog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `kms-log filter - Filter trace file and write to new file

Usage:
  kms-log filter [flags] <file.klog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	session := fs.String("session", "", "Filter by session ID")
	device := fs.Int("device", -1, "Filter by device index")
	category := fs.String("category", "", "Filter by category (ioctl, snapshot, state, error)")
	command := fs.String("command", "", "Filter by command name")
	failed := fs.Bool("failed", false, "Only keep commands that returned an errno")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:     *output,
		SessionID:  *session,
		Device:     *device,
		Category:   *category,
		Command:    *command,
		FailedOnly: *failed,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `kms-log stats - Show statistics about the trace file

Usage:
  kms-log stats <file.klog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
