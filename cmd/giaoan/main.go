package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/anhtn/giaoan/internal/config"
	"github.com/anhtn/giaoan/internal/extract"
	"github.com/anhtn/giaoan/internal/gemini"
	"github.com/anhtn/giaoan/internal/generator"
	"github.com/anhtn/giaoan/internal/history"
	"github.com/anhtn/giaoan/internal/keys"
	"github.com/anhtn/giaoan/internal/repl"
	"github.com/anhtn/giaoan/internal/security"
	"github.com/anhtn/giaoan/internal/source"
	"github.com/anhtn/giaoan/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

type rootFlags struct {
	teacher   string
	title     string
	subject   string
	class     string
	program   string
	circulars []string
	periods   int
	notes     string
	template  string
	model     string
	apiKey    string
	output    string
	once      bool
	verbose   bool
}

// App carries the process-wide dependencies so tests can substitute them.
type App struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (config.Config, error)
	ResolveKey func(explicit string) (string, string, error)
}

func DefaultApp() *App {
	return &App{
		Out:        os.Stdout,
		Err:        os.Stderr,
		LoadConfig: config.Load,
		ResolveKey: keys.Resolve,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A local .env may carry GEMINI_API_KEY; absence is fine.
	godotenv.Load()

	app := DefaultApp()
	return newRootCmd(app).Execute()
}

func newRootCmd(app *App) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "giaoan [flags] [document...]",
		Short: "Generate Vietnamese lesson plans from textbook pages",
		Long: `giaoan generates Vietnamese lesson plans (giáo án) from textbook
pages and PDFs using the Gemini API, then refines them interactively.

Examples:
  giaoan --subject "Toán" --class "Lớp 3" trang-12.png trang-13.png
  giaoan --title "Phép cộng" --periods 2 --once -o giao-an.md sgk.pdf
  giaoan --template mau-giao-an.docx trang-1.jpg`,
		Args:    cobra.ArbitraryArgs,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), app, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.teacher, "teacher", "", "teacher name")
	cmd.Flags().StringVar(&flags.title, "title", "", "lesson title")
	cmd.Flags().StringVar(&flags.subject, "subject", "", "subject, e.g. Toán")
	cmd.Flags().StringVar(&flags.class, "class", "", "class level, e.g. Lớp 3")
	cmd.Flags().StringVar(&flags.program, "program", "", "curriculum program")
	cmd.Flags().StringSliceVar(&flags.circulars, "circulars", nil, "circulars to follow (5512, 2345, 1001)")
	cmd.Flags().IntVar(&flags.periods, "periods", 0, "lesson length in teaching periods")
	cmd.Flags().StringVar(&flags.notes, "notes", "", "extra notes for the model")
	cmd.Flags().StringVar(&flags.template, "template", "", "custom template file (.txt, .md, .pdf, .docx)")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Gemini model to use")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "API key (defaults to GEMINI_API_KEY)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "save the generated plan to this Markdown file")
	cmd.Flags().BoolVar(&flags.once, "once", false, "generate once and exit instead of starting the REPL")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log request details to stderr")

	cmd.AddCommand(newKeyCmd(app))

	return cmd
}

func runRoot(ctx context.Context, app *App, flags *rootFlags, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.verbose {
		cfg.Verbose = true
	}

	apiKey, keySource, err := app.ResolveKey(flags.apiKey)
	if err != nil {
		return err
	}
	if apiKey == "" {
		return fmt.Errorf("API key required: set GEMINI_API_KEY, use --api-key, or run 'giaoan key set'")
	}

	client, err := gemini.New(&gemini.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.Endpoint,
		Model:      cfg.Model,
		TimeoutSec: cfg.TimeoutSec,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Fprintf(app.Err, "Using API key from %s\n", keySource)
	}

	warnf := func(format string, args ...any) {
		color.New(color.FgYellow).Fprintf(app.Err, "Warning: "+format+"\n", args...)
	}
	log := history.NewLog(openHistoryStore(cfg, warnf), warnf)

	extractor := extract.New()
	gen := generator.New(generator.Config{
		Provider:  generator.NewGeminiProvider(client),
		Extractor: extractor,
		History:   log,
		OnChunk:   func(text string) { fmt.Fprint(app.Out, text) },
		Warnf:     warnf,
	})

	form, err := buildForm(flags, extractor)
	if err != nil {
		return err
	}
	if err := gen.SetForm(form); err != nil {
		return err
	}
	if cfg.MaxDocuments > 0 {
		gen.Sources().SetCap(cfg.MaxDocuments)
	}

	for _, path := range args {
		_, kept, err := gen.Sources().AddFile(path)
		if err != nil {
			return err
		}
		if !kept {
			warnf("document limit reached, skipped %s", path)
		}
	}

	if gen.Sources().Len() > 0 {
		fmt.Fprintln(app.Out, "Generating lesson plan...")
		fmt.Fprintln(app.Out)
		if err := gen.SubmitInitial(ctx); err != nil {
			fmt.Fprintln(app.Out)
			fmt.Fprintln(app.Err, gen.State().ErrMessage)
			if flags.once {
				return err
			}
		} else {
			fmt.Fprintln(app.Out)
		}
	} else if flags.once {
		return fmt.Errorf("%w: pass at least one textbook page or PDF", models.ErrNoSourceDocuments)
	}

	if flags.output != "" {
		if err := savePlan(gen.State().Plan, flags.output); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Saved to %s\n", security.MarkdownPath(flags.output))
	}

	if flags.once {
		return nil
	}

	return repl.New(&repl.Config{
		In:        os.Stdin,
		Out:       app.Out,
		Err:       app.Err,
		Gen:       gen,
		History:   log,
		Extractor: extractor,
		Model:     client.Model(),
	}).Run(ctx)
}

// buildForm folds the metadata flags into the default form state.
func buildForm(flags *rootFlags, extractor *extract.Extractor) (models.FormState, error) {
	form := models.DefaultFormState()

	form.TeacherName = flags.teacher
	form.LessonTitle = flags.title
	form.Subject = flags.subject
	form.ClassLevel = flags.class
	if flags.program != "" {
		form.Program = flags.program
	}
	form.Notes = flags.notes

	if len(flags.circulars) > 0 {
		for _, id := range flags.circulars {
			if !knownCircular(id) {
				return form, fmt.Errorf("unknown circular %q", id)
			}
		}
		form.Circulars = flags.circulars
	}
	if flags.periods > 0 {
		form.Duration = models.DurationForPeriods(flags.periods, form.ClassLevel)
	}

	if flags.template != "" {
		data, err := os.ReadFile(flags.template)
		if err != nil {
			return form, fmt.Errorf("failed to read template %s: %w", flags.template, err)
		}
		name := filepath.Base(flags.template)
		text, err := extractor.TemplateText(name, source.DetectMIME(name, data), data)
		if err != nil {
			return form, err
		}
		form.UseCustomTemplate = true
		form.CustomTemplate = text
	}

	return form, nil
}

func knownCircular(id string) bool {
	for _, opt := range models.CircularOptions() {
		if opt.ID == id {
			return true
		}
	}
	return false
}

func savePlan(plan, path string) error {
	if strings.TrimSpace(plan) == "" {
		return fmt.Errorf("no lesson plan was generated, nothing to save")
	}
	path = security.MarkdownPath(path)
	if err := security.ValidateSavePath(path); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(plan), 0644)
}

// openHistoryStore picks the configured backend, falling back to the JSON
// store when sqlite cannot be opened.
func openHistoryStore(cfg config.Config, warnf func(string, ...any)) history.Store {
	path, err := cfg.HistoryPath()
	if err != nil {
		warnf("history disabled: %v", err)
		return nullStore{}
	}

	if cfg.History.Backend == "json" {
		return history.NewFileStore(path)
	}

	store, err := history.NewSQLiteStore(path)
	if err != nil {
		warnf("falling back to JSON history: %v", err)
		return history.NewFileStore(strings.TrimSuffix(path, filepath.Ext(path)) + ".json")
	}
	return store
}

type nullStore struct{}

func (nullStore) Load() ([]history.Entry, error) { return nil, nil }
func (nullStore) Save([]history.Entry) error     { return nil }

func newKeyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored Gemini API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store the API key in keys.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Stored key %s in %s\n", keys.Mask(args[0]), store.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored API key (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			key, err := store.Get()
			if err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintln(app.Out, "No key stored.")
				return nil
			}
			fmt.Fprintln(app.Out, keys.Mask(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Deleted.")
			return nil
		},
	})

	return cmd
}
