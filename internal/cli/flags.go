package cli

import (
	"flag"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port    int
	Verbose bool
}

// ProcessFlags holds the CLI flags for the process command.
type ProcessFlags struct {
	OrderIDs []string
	Verbose  bool
}

// BackfillFlags holds the CLI flags for the backfill command.
type BackfillFlags struct {
	PageSize    int
	Cutoff      string
	All         bool
	RetryFailed bool
	Verbose     bool
}

// ParseServeFlags parses command line flags for the serve command.
// A zero port means the configured port.
func ParseServeFlags(args []string) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (default from config)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// ParseProcessFlags parses command line flags for the process command.
// Remaining arguments are order ids.
func ParseProcessFlags(args []string) (*ProcessFlags, error) {
	flags := &ProcessFlags{}
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.OrderIDs = fs.Args()
	return flags, nil
}

// ParseBackfillFlags parses command line flags for the backfill command.
func ParseBackfillFlags(args []string) (*BackfillFlags, error) {
	flags := &BackfillFlags{}
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.IntVar(&flags.PageSize, "page-size", 0, "Orders per batch (default from config)")
	fs.StringVar(&flags.Cutoff, "cutoff", "", "Only orders created before this date, YYYY-MM-DD (default from config)")
	fs.BoolVar(&flags.All, "all", false, "Repeat batches until no orders remain")
	fs.BoolVar(&flags.RetryFailed, "retry-failed", false, "Make orders parked by earlier failures eligible again")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
