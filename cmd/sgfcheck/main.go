// Command sgfcheck validates SGF game records from the command line.
//
// It runs each file (or stdin when no files are given) through the
// same parser the server uses for review imports, so a record that
// passes here will import cleanly. With -v it also prints the parsed
// summary: board size, komi, players, and move count.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/baduklab/goban-server/game/review"
)

var verbose = flag.Bool("v", false, "Print a summary for each valid record")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] [file.sgf ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Validates SGF records. Reads stdin when no files are given.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			os.Exit(1)
		}
		if !check("<stdin>", string(data)) {
			os.Exit(1)
		}
		return
	}

	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if !check(path, string(data)) {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d records invalid\n", failed, len(files))
		os.Exit(1)
	}
}

func check(name, src string) bool {
	parsed, err := review.ParseSGF(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return false
	}

	for i := 1; i < len(parsed.Moves); i++ {
		if parsed.Moves[i].Color == parsed.Moves[i-1].Color {
			fmt.Fprintf(os.Stderr, "%s: warning: moves %d and %d are both %s\n",
				name, i, i+1, parsed.Moves[i].Color)
		}
	}

	if *verbose {
		fmt.Printf("%s: ok\n", name)
		fmt.Printf("  board: %dx%d, komi %.1f, %d moves\n",
			parsed.BoardSize, parsed.BoardSize, parsed.Komi, len(parsed.Moves))
		if parsed.Meta.Black != "" || parsed.Meta.White != "" {
			fmt.Printf("  players: %s (B) vs %s (W)\n", parsed.Meta.Black, parsed.Meta.White)
		}
		if parsed.Meta.Result != "" {
			fmt.Printf("  result: %s\n", parsed.Meta.Result)
		}
	} else {
		fmt.Printf("%s: ok\n", name)
	}
	return true
}
