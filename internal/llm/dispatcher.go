package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// ErrUnknownProvider is returned when a request names a provider id with no
// registered adapter.
var ErrUnknownProvider = errors.New("unknown provider")

// testConnectionPrompt is the canned message used for connectivity checks.
const testConnectionPrompt = "Hello, this is a test message. Please respond with a short greeting."

// Dispatcher routes completion requests to registered adapters by provider
// id, merges per-request setting overrides over the configured defaults, and
// retains the diagnostics of the most recent exchange for inspection.
type Dispatcher struct {
	defaults Settings
	logger   log.Logger

	mu       sync.Mutex
	adapters map[string]Adapter
	lastDiag Diagnostics
}

// NewDispatcher creates a dispatcher with the given default settings.
func NewDispatcher(defaults Settings, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Dispatcher{
		defaults: defaults,
		logger:   logger,
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under its provider id, replacing any previous
// registration for the same id.
func (d *Dispatcher) Register(a Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[a.Provider()] = a
}

// Providers returns the registered provider ids in sorted order.
func (d *Dispatcher) Providers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.adapters))
	for id := range d.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Complete routes one completion request to the named provider. Overrides
// are merged over the dispatcher's default settings, with override values
// winning even when zero.
func (d *Dispatcher) Complete(ctx context.Context, provider string, messages []Message, overrides Overrides, tools []ToolDeclaration) (Result, error) {
	adapter, err := d.adapter(provider)
	if err != nil {
		return Result{}, err
	}

	settings := d.defaults.Apply(overrides)
	result, diag, err := adapter.Complete(ctx, messages, settings, tools)

	d.mu.Lock()
	d.lastDiag = diag
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("completion failed", "provider", provider, "error", err)
		return Result{}, err
	}
	return result, nil
}

// ModelSettings reports the model identifier registered for provider and
// the effective settings after merging overrides over the defaults. An
// unknown provider yields an empty model id; the merged settings are
// returned either way.
func (d *Dispatcher) ModelSettings(provider string, overrides Overrides) (string, Settings) {
	settings := d.defaults.Apply(overrides)
	adapter, err := d.adapter(provider)
	if err != nil {
		return "", settings
	}
	return adapter.Model(), settings
}

// LastDiagnostics returns the diagnostics captured during the most recent
// exchange, successful or not.
func (d *Dispatcher) LastDiagnostics() Diagnostics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastDiag
}

// TestConnection sends a canned single-turn message to the named provider
// with no tools attached. A content response means the provider is reachable
// and credentialed.
func (d *Dispatcher) TestConnection(ctx context.Context, provider string) error {
	messages := []Message{{Role: RoleUser, Content: testConnectionPrompt}}
	small := 50
	result, err := d.Complete(ctx, provider, messages, Overrides{MaxTokens: &small}, nil)
	if err != nil {
		return err
	}
	if result.Type != ResultContent || result.Content == "" {
		return fmt.Errorf("provider %s returned an empty test response", provider)
	}
	return nil
}

func (d *Dispatcher) adapter(provider string) (Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return a, nil
}
