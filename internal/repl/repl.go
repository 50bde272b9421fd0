// Package repl implements the interactive refinement loop. Bare input is
// sent to the model as a refinement message; everything else is a command.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/anhtn/giaoan/internal/extract"
	"github.com/anhtn/giaoan/internal/generator"
	"github.com/anhtn/giaoan/internal/history"
)

type REPL struct {
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	gen       *generator.Generator
	history   *history.Log
	extractor *extract.Extractor
	model     string
	commands  map[string]Command
	running   bool
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Gen       *generator.Generator
	History   *history.Log
	Extractor *extract.Extractor
	Model     string
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		errOut:    cfg.Err,
		gen:       cfg.Gen,
		history:   cfg.History,
		extractor: cfg.Extractor,
		model:     cfg.Model,
		commands:  make(map[string]Command),
	}
	if r.extractor == nil {
		r.extractor = extract.New()
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			color.New(color.FgRed).Fprintf(r.errOut, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return scanner.Err()
}

// execute dispatches registered commands by their first token; anything
// else is a refinement message for the active session.
func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	if cmd, ok := r.commands[strings.ToLower(parts[0])]; ok {
		return cmd.Execute(ctx, r, parts[1:])
	}
	return r.refine(ctx, line)
}

func (r *REPL) refine(ctx context.Context, message string) error {
	if !r.gen.CanRefine() {
		fmt.Fprintln(r.out, "No active session. Run 'generate' first, or type 'help' for commands.")
		return nil
	}

	if err := r.gen.SubmitRefinement(ctx, message); err != nil {
		fmt.Fprintln(r.out)
		return fmt.Errorf("%s", r.gen.State().ErrMessage)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	color.New(color.FgCyan, color.Bold).Fprintln(r.out, "giaoan interactive mode")
	fmt.Fprintln(r.out, "Type a message to refine the current lesson plan.")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	marker := ""
	if r.gen.CanRefine() {
		marker = "*"
	}
	fmt.Fprintf(r.out, "giaoan [%s]%s> ", r.model, marker)
}

// parseCommand splits a line into tokens, honoring single and double
// quotes so document paths with spaces survive.
func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			switch {
			case inQuotes && ch == quoteChar:
				inQuotes = false
				quoteChar = 0
			case !inQuotes:
				inQuotes = true
				quoteChar = ch
			default:
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
