package templating

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/CTAG07/chainwalk/pkg/tokenize"
)

// ChainLoader loads a chain by name. store.Store satisfies it.
type ChainLoader interface {
	Load(ctx context.Context, name string, opts ...markov.Option) (*markov.Chain, error)
}

// TemplateManager is the central controller for the templating engine.
// It owns the parsed template set and a cache of the chains the templates
// have used. All methods are concurrent-safe.
type TemplateManager struct {
	logger        *slog.Logger
	config        TemplateConfig
	loader        ChainLoader
	chainOpts     []markov.Option
	tokenizer     *tokenize.Tokenizer
	funcMap       template.FuncMap
	templates     *template.Template
	templateNames []string
	mu            sync.RWMutex

	chainMu sync.Mutex
	chains  map[string]*markov.Chain
}

// NewTemplateManager creates a manager and performs an initial Refresh.
// chainOpts are passed to the loader for every chain.
func NewTemplateManager(logger *slog.Logger, loader ChainLoader, tokenizer *tokenize.Tokenizer, config TemplateConfig, chainOpts ...markov.Option) (*TemplateManager, error) {
	tm := &TemplateManager{
		logger:    logger,
		config:    config,
		loader:    loader,
		chainOpts: chainOpts,
		tokenizer: tokenizer,
		chains:    make(map[string]*markov.Chain),
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}
	return tm, nil
}

// Refresh reloads all templates from the template directory and forgets
// every cached chain, so edits to either are picked up.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(tm.config.TemplateDir, "*.tmpl"))
	if err != nil {
		return fmt.Errorf("bad template directory %q: %w", tm.config.TemplateDir, err)
	}

	parsed := template.New("").Funcs(tm.funcMap)
	if len(files) > 0 {
		if parsed, err = parsed.ParseFiles(files...); err != nil {
			tm.logger.Error("failed to parse template files", "error", err)
			return err
		}
	}

	var names []string
	for _, t := range parsed.Templates() {
		if strings.HasSuffix(t.Name(), ".tmpl") {
			names = append(names, t.Name())
		}
	}
	tm.templates = parsed
	tm.templateNames = names

	tm.chainMu.Lock()
	clear(tm.chains)
	tm.chainMu.Unlock()

	tm.logger.Debug("Loaded template files",
		slog.String("dir", tm.config.TemplateDir),
		slog.Int("count", len(names)),
	)
	return nil
}

// Execute renders a template by file name, such as "page.tmpl".
func (tm *TemplateManager) Execute(w io.Writer, name string, data any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if tm.templates.Lookup(name) == nil {
		return fmt.Errorf("template %q not found", name)
	}
	return tm.templates.ExecuteTemplate(w, name, data)
}

// ExecuteTemplateString parses and executes a raw template string. The
// loaded templates are available to it as partials.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	// Parse into a clone so the shared set is never modified.
	tempSet, err := tm.templates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone templates for string execution: %w", err)
	}
	t, err := tempSet.Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	return t.Execute(w, data)
}

// TemplateNames returns the names of the loaded templates.
func (tm *TemplateManager) TemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return append([]string(nil), tm.templateNames...)
}

// chain returns the named chain, loading it on first use.
func (tm *TemplateManager) chain(name string) (*markov.Chain, error) {
	tm.chainMu.Lock()
	defer tm.chainMu.Unlock()

	if c, ok := tm.chains[name]; ok {
		return c, nil
	}
	c, err := tm.loader.Load(context.Background(), name, tm.chainOpts...)
	if err != nil {
		return nil, err
	}
	tm.chains[name] = c
	tm.logger.Debug("Chain loaded for templates", slog.String("chain_name", name))
	return c, nil
}
