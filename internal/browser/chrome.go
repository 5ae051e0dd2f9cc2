package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/types"
)

const (
	captchaSelector   = `iframe[src*="captcha"], iframe[title*="challenge"], div.g-recaptcha, div.h-captcha`
	easyApplySelector = `button.jobs-apply-button`
	submitSelector    = `button[type=submit], input[type=submit]`
)

// ChromeOptions configures the Chrome driver
type ChromeOptions struct {
	Headless      bool
	NavTimeout    time.Duration
	ActionTimeout time.Duration
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ChromeDriver drives a real Chrome through chromedp. Each run keeps one tab
// open from start_session until submit_application or Close.
type ChromeDriver struct {
	opts ChromeOptions
	log  *logger.Logger

	mu   sync.Mutex
	tabs map[uuid.UUID]*chromeTab
}

// NewChromeDriver creates a driver. Chrome is launched lazily per run.
func NewChromeDriver(opts ChromeOptions, log *logger.Logger) *ChromeDriver {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 20 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChromeDriver{opts: opts, log: log, tabs: make(map[uuid.UUID]*chromeTab)}
}

func (d *ChromeDriver) tab(runID uuid.UUID) (*chromeTab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.tabs[runID]; ok {
		return t, nil
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	t := &chromeTab{ctx: tabCtx, cancel: func() { cancelTab(); cancelAlloc() }}

	// Start the browser on the long-lived context; a browser started under a
	// timeout context dies with it.
	if err := chromedp.Run(tabCtx); err != nil {
		t.cancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	d.tabs[runID] = t
	return t, nil
}

func (d *ChromeDriver) release(runID uuid.UUID) {
	d.mu.Lock()
	t, ok := d.tabs[runID]
	delete(d.tabs, runID)
	d.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// run executes actions on the run's tab, bounded by both ctx and timeout.
func (d *ChromeDriver) run(ctx context.Context, runID uuid.UUID, timeout time.Duration, actions ...chromedp.Action) error {
	t, err := d.tab(runID)
	if err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (d *ChromeDriver) exists(ctx context.Context, runID uuid.UUID, selector string) (bool, error) {
	var found bool
	err := d.run(ctx, runID, d.opts.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf("document.querySelector(%q) !== null", selector), &found))
	return found, err
}

// Execute performs one action in Chrome.
func (d *ChromeDriver) Execute(ctx context.Context, s *Session, action string) types.ActionResult {
	if action == ActionStartSession {
		if err := d.run(ctx, s.RunID, d.opts.NavTimeout,
			chromedp.Navigate(s.JobURL),
			chromedp.WaitReady("body"),
		); err != nil {
			d.release(s.RunID)
			return result(types.ActionFailed, action, fmt.Sprintf("failed to open %s: %v", s.JobURL, err))
		}
	}

	if !s.CaptchaSolved {
		visible, err := d.exists(ctx, s.RunID, captchaSelector)
		if err != nil {
			return result(types.ActionFailed, action, fmt.Sprintf("page check failed: %v", err))
		}
		if visible {
			return captchaResult("CAPTCHA detected on page; waiting for human intervention.")
		}
	}

	switch action {
	case ActionStartSession:
		return result(types.ActionCompleted, action,
			fmt.Sprintf("Opened %s with the %s adapter.", s.JobURL, s.Adapter.Name))

	case ActionLinkedInOpenEasyApply:
		found, err := d.exists(ctx, s.RunID, easyApplySelector)
		if err != nil {
			return result(types.ActionFailed, action, fmt.Sprintf("page check failed: %v", err))
		}
		if !found {
			return result(types.ActionBlocked, action,
				"LinkedIn posting routes to an external application; Easy Apply is not available.")
		}
		if err := d.run(ctx, s.RunID, d.opts.ActionTimeout, chromedp.Click(easyApplySelector, chromedp.ByQuery)); err != nil {
			return result(types.ActionFailed, action, fmt.Sprintf("failed to open Easy Apply: %v", err))
		}
		return result(types.ActionCompleted, action, "Opened Easy Apply modal")

	case ActionFillPersonalInfo, ActionFillWorkHistory, ActionFillCompliance, ActionLinkedInFillSteps:
		filled := d.fill(ctx, s, FieldPlans(action))
		res := result(types.ActionCompleted, action, fmt.Sprintf("Filled %d field(s)", len(filled)), filled...)
		if action == ActionFillCompliance {
			res.Questions = ComplianceQuestions()
		}
		return res

	case ActionUploadResume:
		if s.ResumePath == "" {
			return result(types.ActionFailed, action, "no tailored resume to upload")
		}
		plans := FieldPlans(action)
		found, err := d.exists(ctx, s.RunID, plans[0].Locator)
		if err != nil || !found {
			return result(types.ActionCompleted, action, "No file input found; resume upload skipped")
		}
		if err := d.run(ctx, s.RunID, d.opts.ActionTimeout,
			chromedp.SetUploadFiles(plans[0].Locator, []string{s.ResumePath}, chromedp.ByQuery)); err != nil {
			return result(types.ActionFailed, action, fmt.Sprintf("resume upload failed: %v", err))
		}
		return result(types.ActionCompleted, action, "Uploaded tailored resume", plans...)

	case ActionSubmitApplication:
		defer d.release(s.RunID)
		if !s.Submit {
			return result(types.ActionCompleted, action, "Submit disabled (--submit not set). Dry run completed.")
		}
		if err := d.run(ctx, s.RunID, d.opts.ActionTimeout, chromedp.Click(submitSelector, chromedp.ByQuery)); err != nil {
			return result(types.ActionFailed, action, fmt.Sprintf("submit failed: %v", err))
		}
		return result(types.ActionCompleted, action, "Application submitted")

	default:
		return unsupported(action)
	}
}

// fill sets every planned field that exists on the page and has a value.
func (d *ChromeDriver) fill(ctx context.Context, s *Session, plans []types.FieldFillPlan) []types.FieldFillPlan {
	var filled []types.FieldFillPlan
	for _, plan := range plans {
		value := ProfileValue(s.Profile, plan.ValueSource)
		if value == "" {
			continue
		}
		found, err := d.exists(ctx, s.RunID, plan.Locator)
		if err != nil || !found {
			continue
		}
		if err := d.run(ctx, s.RunID, d.opts.ActionTimeout,
			chromedp.SetValue(plan.Locator, value, chromedp.ByQuery)); err != nil {
			d.log.Warn("field fill failed", "run_id", s.RunID, "field", plan.FieldKey, "error", err)
			continue
		}
		filled = append(filled, plan)
	}
	return filled
}

// ProfileValue resolves a field plan's value source against profile facts.
func ProfileValue(p *types.ProfileFacts, source string) string {
	if p == nil {
		return ""
	}
	switch source {
	case "profile_personal.first_name":
		if p.Personal != nil {
			return p.Personal.FirstName
		}
	case "profile_personal.email":
		if p.Personal != nil {
			return p.Personal.Email
		}
	case "profile_personal.phone_e164":
		if p.Personal != nil {
			return p.Personal.PhoneE164
		}
	case "profile_personal.headline":
		if p.Personal != nil {
			return p.Personal.Headline
		}
	case "profile_work_auth":
		if p.WorkAuth != nil {
			if len(p.WorkAuth.AuthorizedCountries) > 0 {
				return "Yes"
			}
			return "No"
		}
	}
	return ""
}

// Close shuts down every open tab
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	tabs := d.tabs
	d.tabs = make(map[uuid.UUID]*chromeTab)
	d.mu.Unlock()
	for _, t := range tabs {
		t.cancel()
	}
	return nil
}

// compile-time checks
var (
	_ Driver = (*ChromeDriver)(nil)
	_ Driver = (*DryRunDriver)(nil)
)
