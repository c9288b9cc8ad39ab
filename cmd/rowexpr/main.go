// cmd/rowexpr/main.go
package main

import (
	"fmt"
	"os"

	"rowexpr/cmd/rowexpr/commands"
)

// commandAliases maps one-letter shortcuts to their full command names.
var commandAliases = map[string]string{
	"p": "parse",
	"e": "eval",
	"b": "bench",
	"s": "serve",
	"q": "query",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Println("rowexpr 0.1.0")
		return
	}

	var err error
	switch cmd {
	case "parse":
		err = commands.ParseCommand(args[1:])
	case "eval":
		err = commands.EvalCommand(args[1:])
	case "bench":
		err = commands.BenchCommand(args[1:])
	case "serve":
		err = commands.ServeCommand(args[1:])
	case "query":
		err = commands.QueryCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("rowexpr - row expression engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rowexpr parse <scenario.json> [expr]   Check expression syntax      (alias: p)")
	fmt.Println("  rowexpr eval [-quiet] [-parallel] <scenario.json>  Evaluate every batch (alias: e)")
	fmt.Println("  rowexpr bench [-iters N] <scenario.json>  Benchmark repeated eval    (alias: b)")
	fmt.Println("  rowexpr serve [-addr :8080] [-path /eval]  Start the websocket server (alias: s)")
	fmt.Println("  rowexpr query -dsn <dsn> -sql <query> <expr>  Evaluate over a SQL result set (alias: q)")
	fmt.Println()
	fmt.Println("A scenario file is JSON: {\"expr\": \"...\", \"columns\": [...], \"batches\": [...]}")
}
