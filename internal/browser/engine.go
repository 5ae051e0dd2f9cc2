package browser

import (
	"context"

	"github.com/jonathan/vulture/internal/config"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/types"
)

// Engine is the executor the orchestrator talks to. It selects the adapter,
// applies the domain policy, and hands actions to the driver.
type Engine struct {
	registry *Registry
	domains  DomainPolicy
	driver   Driver
	log      *logger.Logger
}

// NewEngine creates an engine
func NewEngine(registry *Registry, domains DomainPolicy, driver Driver, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if driver == nil {
		driver = NewDryRunDriver()
	}
	return &Engine{registry: registry, domains: domains, driver: driver, log: log}
}

// NewEngineFromSettings loads extra adapters and picks the Chrome driver when
// the browser is enabled, the dry run otherwise.
func NewEngineFromSettings(s config.BrowserSettings, log *logger.Logger) (*Engine, error) {
	extra, err := LoadAdaptersFile(s.AdaptersFile)
	if err != nil {
		return nil, err
	}
	registry, err := NewRegistry(log, extra...)
	if err != nil {
		return nil, err
	}

	var driver Driver = NewDryRunDriver()
	if s.Enabled {
		driver = NewChromeDriver(ChromeOptions{
			Headless:      s.Headless,
			NavTimeout:    s.NavTimeout(),
			ActionTimeout: s.ActionTimeout(),
		}, log)
	}
	domains := DomainPolicy{Allowed: s.AllowedDomains, Blocked: s.BlockedDomains}
	return NewEngine(registry, domains, driver, log), nil
}

// Plan returns the adapter for jobURL and its action sequence.
func (e *Engine) Plan(jobURL string) (Adapter, []string) {
	a := e.registry.Detect(jobURL)
	return a, a.Sequence()
}

// AdapterByName returns a registered adapter, or the one detected for jobURL
// when name is unknown.
func (e *Engine) AdapterByName(name, jobURL string) Adapter {
	for _, a := range e.registry.Adapters() {
		if a.Name == name {
			return a
		}
	}
	return e.registry.Detect(jobURL)
}

// Execute runs one action.
func (e *Engine) Execute(ctx context.Context, s *Session, action string) types.ActionResult {
	if action == ActionStartSession {
		if reason := e.domains.Check(s.JobURL); reason != "" {
			return result(types.ActionBlocked, action, reason)
		}
	}

	res := e.driver.Execute(ctx, s, action)
	if res.Fields == nil {
		res.Fields = []types.FieldFillPlan{}
	}
	e.log.Debug("browser action executed",
		"run_id", s.RunID, "action", action, "status", res.Status, "adapter", s.Adapter.Name)
	return res
}

// Close releases the driver
func (e *Engine) Close() error {
	return e.driver.Close()
}
