package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(stdout)
		return exitOK
	}

	c := &cli{stdout: stdout, stderr: stderr}
	switch args[0] {
	case "scan":
		return c.scanCmd(ctx, args[1:])
	case "delete":
		return c.deleteCmd(ctx, args[1:])
	case "preview":
		return c.previewCmd(args[1:])
	case "space":
		return c.spaceCmd(ctx, args[1:])
	case "purge":
		return c.purgeCmd(ctx, args[1:])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  dupfs scan    [flags] <dir>    find files with identical content
  dupfs delete  [flags] <dir>    scan, then remove duplicates (originals are kept)
  dupfs preview [flags] <file>   show what a file contains
  dupfs space   [path]           report free space for path, or for every partition
  dupfs purge   [flags]          move the contents of the temporary directory to the trash

Symbolic links are never hashed or followed.

Use "dupfs <command> --help" for the flags of a command.
`)
}
