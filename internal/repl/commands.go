package repl

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/anhtn/giaoan/internal/security"
	"github.com/anhtn/giaoan/internal/source"
	"github.com/anhtn/giaoan/pkg/models"
)

func validCircular(id string) bool {
	for _, opt := range models.CircularOptions() {
		if opt.ID == id {
			return true
		}
	}
	return false
}

func circularNumbers() []string {
	options := models.CircularOptions()
	ids := make([]string, len(options))
	for i, opt := range options {
		ids[i] = opt.ID
	}
	return ids
}

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func (r *REPL) registerCommands() {
	commands := []Command{
		&GenerateCommand{},
		&ShowCommand{},
		&SaveCommand{},
		&EditCommand{},
		&DocsCommand{},
		&FormCommand{},
		&HistoryCommand{},
		&ResetCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}

	for _, cmd := range commands {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// GenerateCommand starts a fresh generation from the current form state
// and documents, replacing any active session.
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate a lesson plan from the uploaded documents" }
func (c *GenerateCommand) Usage() string       { return "generate" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	fmt.Fprintln(r.out, "Generating lesson plan...")
	fmt.Fprintln(r.out)

	if err := r.gen.SubmitInitial(ctx); err != nil {
		fmt.Fprintln(r.out)
		return fmt.Errorf("%s", r.gen.State().ErrMessage)
	}
	fmt.Fprintln(r.out)
	return nil
}

// ShowCommand prints the current lesson plan.
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"s"} }
func (c *ShowCommand) Description() string { return "Show the current lesson plan" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	state := r.gen.State()
	if state.ErrMessage != "" {
		color.New(color.FgRed).Fprintln(r.out, state.ErrMessage)
	}
	if state.Plan == "" {
		fmt.Fprintln(r.out, "(no lesson plan yet)")
		return nil
	}
	fmt.Fprintln(r.out, state.Plan)
	return nil
}

// SaveCommand exports the current plan as a Markdown file.
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"export"} }
func (c *SaveCommand) Description() string { return "Save the current lesson plan to a Markdown file" }
func (c *SaveCommand) Usage() string       { return "save [path]" }

func (c *SaveCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	state := r.gen.State()
	if state.Plan == "" {
		return fmt.Errorf("nothing to save")
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		name := security.SanitizeFilename(r.gen.Form().LessonTitle)
		if name == "giao-an" {
			name = "giao-an-" + time.Now().Format("20060102-150405")
		}
		path = name
	}
	path = security.MarkdownPath(path)

	if err := security.ValidateSavePath(path); err != nil {
		return fmt.Errorf("invalid save path: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(state.Plan), 0644); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}

	fmt.Fprintf(r.out, "Saved to %s\n", path)
	return nil
}

// EditCommand applies a manual edit: either the contents of a given file,
// or the result of editing the current plan in $EDITOR.
type EditCommand struct{}

func (c *EditCommand) Name() string        { return "edit" }
func (c *EditCommand) Aliases() []string   { return nil }
func (c *EditCommand) Description() string { return "Edit the current lesson plan in $EDITOR, or load it from a file" }
func (c *EditCommand) Usage() string       { return "edit [file]" }

func (c *EditCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return r.gen.ApplyManualEdit(string(data))
	}

	state := r.gen.State()

	tmp, err := os.CreateTemp("", "giaoan-*.md")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(state.Plan); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	cmd := exec.CommandContext(ctx, editor, tmp.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}

	edited, err := os.ReadFile(tmp.Name())
	if err != nil {
		return err
	}
	return r.gen.ApplyManualEdit(string(edited))
}

// DocsCommand lists and manages uploaded documents.
type DocsCommand struct{}

func (c *DocsCommand) Name() string        { return "docs" }
func (c *DocsCommand) Aliases() []string   { return []string{"d"} }
func (c *DocsCommand) Description() string { return "List or manage uploaded documents" }
func (c *DocsCommand) Usage() string       { return "docs [add <path>... | remove <id> | clear]" }

func (c *DocsCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	sources := r.gen.Sources()

	if len(args) == 0 {
		docs := sources.Documents()
		if len(docs) == 0 {
			fmt.Fprintln(r.out, "No documents uploaded.")
			return nil
		}
		for i, doc := range docs {
			fmt.Fprintf(r.out, "%2d. [%s] %s (%s, %d bytes)\n",
				i+1, doc.ID[:8], doc.Name, doc.MIMEType, len(doc.Data))
		}
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: docs add <path>...")
		}
		for _, path := range args[1:] {
			doc, kept, err := sources.AddFile(path)
			if err != nil {
				return err
			}
			if !kept {
				fmt.Fprintf(r.errOut, "Warning: document limit reached, skipped %s\n", path)
				continue
			}
			fmt.Fprintf(r.out, "Added %s (%s)\n", doc.Name, doc.MIMEType)
		}
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: docs remove <id>")
		}
		if !sources.Remove(args[1]) {
			return fmt.Errorf("no document matches %q", args[1])
		}
		fmt.Fprintln(r.out, "Removed.")
		return nil
	case "clear":
		sources.Reset()
		fmt.Fprintln(r.out, "Documents cleared.")
		return nil
	default:
		return fmt.Errorf("usage: %s", c.Usage())
	}
}

// FormCommand views and updates the lesson metadata.
type FormCommand struct{}

func (c *FormCommand) Name() string        { return "form" }
func (c *FormCommand) Aliases() []string   { return []string{"f"} }
func (c *FormCommand) Description() string { return "Show or update the lesson metadata" }
func (c *FormCommand) Usage() string {
	return "form [set <field> <value>...] (fields: teacher, title, subject, class, program, circulars, duration, notes, template)"
}

func (c *FormCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	form := r.gen.Form()

	if len(args) == 0 {
		fmt.Fprintf(r.out, "teacher:   %s\n", form.TeacherName)
		fmt.Fprintf(r.out, "title:     %s\n", form.LessonTitle)
		fmt.Fprintf(r.out, "subject:   %s\n", form.Subject)
		fmt.Fprintf(r.out, "class:     %s\n", form.ClassLevel)
		fmt.Fprintf(r.out, "program:   %s\n", form.Program)
		fmt.Fprintf(r.out, "circulars: %s\n", strings.Join(form.Circulars, ", "))
		fmt.Fprintf(r.out, "duration:  %s\n", form.Duration)
		fmt.Fprintf(r.out, "notes:     %s\n", form.Notes)
		template := "standard"
		if form.UseCustomTemplate && strings.TrimSpace(form.CustomTemplate) != "" {
			template = fmt.Sprintf("custom (%d characters)", len(form.CustomTemplate))
		}
		fmt.Fprintf(r.out, "template:  %s\n", template)
		return nil
	}

	if args[0] != "set" || len(args) < 3 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	field, value := args[1], strings.Join(args[2:], " ")

	switch field {
	case "teacher":
		form.TeacherName = value
	case "title":
		form.LessonTitle = value
	case "subject":
		form.Subject = value
	case "class":
		form.ClassLevel = value
	case "program":
		form.Program = value
	case "notes":
		form.Notes = value
	case "circulars":
		var circulars []string
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if !validCircular(token) {
				return fmt.Errorf("unknown circular %q (valid: %s)", token, strings.Join(circularNumbers(), ", "))
			}
			circulars = append(circulars, token)
		}
		form.Circulars = circulars
	case "duration":
		// A bare number is a period count; anything else is taken verbatim.
		if periods, err := strconv.Atoi(value); err == nil {
			form.Duration = models.DurationForPeriods(periods, form.ClassLevel)
		} else {
			form.Duration = value
		}
	case "template":
		if value == "off" {
			form.UseCustomTemplate = false
			form.CustomTemplate = ""
			break
		}
		text, err := r.readTemplate(value)
		if err != nil {
			return err
		}
		form.UseCustomTemplate = true
		form.CustomTemplate = text
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	if err := r.gen.SetForm(form); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Updated. Run 'generate' to apply.")
	return nil
}

func (r *REPL) readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return r.extractor.TemplateText(name, source.DetectMIME(name, data), data)
}

// HistoryCommand lists past plans and restores, deletes, or clears them.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"h"} }
func (c *HistoryCommand) Description() string { return "List or restore past lesson plans" }
func (c *HistoryCommand) Usage() string {
	return "history [list | restore <id> | delete <id> | clear]"
}

func (c *HistoryCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		entries := r.history.Entries()
		if len(entries) == 0 {
			fmt.Fprintln(r.out, "History is empty.")
			return nil
		}
		for _, entry := range entries {
			created := time.UnixMilli(entry.Timestamp).Format("2006-01-02 15:04")
			fmt.Fprintf(r.out, "[%s] %s  %s\n", entry.ID[:8], created, entry.Title)
		}
		return nil
	}

	switch args[0] {
	case "restore":
		if len(args) != 2 {
			return fmt.Errorf("usage: history restore <id>")
		}
		entry, ok := r.history.Find(args[1])
		if !ok {
			return fmt.Errorf("no unique history entry matches %q", args[1])
		}
		if err := r.gen.RestorePlan(entry.LessonPlan); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Restored %q. The refinement session was discarded.\n", entry.Title)
		return nil
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: history delete <id>")
		}
		if !r.history.Delete(args[1]) {
			return fmt.Errorf("no unique history entry matches %q", args[1])
		}
		fmt.Fprintln(r.out, "Deleted.")
		return nil
	case "clear":
		r.history.Clear()
		fmt.Fprintln(r.out, "History cleared.")
		return nil
	default:
		return fmt.Errorf("usage: %s", c.Usage())
	}
}

// ResetCommand restores the defaults: form, documents, plan, session.
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Aliases() []string   { return nil }
func (c *ResetCommand) Description() string { return "Reset the form, documents, and session" }
func (c *ResetCommand) Usage() string       { return "reset" }

func (c *ResetCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if err := r.gen.ResetAll(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Reset to defaults. History is kept.")
	return nil
}

// HelpCommand lists the available commands.
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show this help" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	seen := make(map[string]Command)
	for _, cmd := range r.commands {
		seen[cmd.Name()] = cmd
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.out, "Any other input is sent to the model as a refinement message.")
	fmt.Fprintln(r.out)
	for _, name := range names {
		cmd := seen[name]
		fmt.Fprintf(r.out, "  %-32s %s\n", cmd.Usage(), cmd.Description())
	}
	return nil
}

// QuitCommand exits the loop.
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	r.Stop()
	return nil
}
