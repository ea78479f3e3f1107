package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"sikuli-bot/src/archive"
	"sikuli-bot/src/artifact"
	"sikuli-bot/src/branch"
	"sikuli-bot/src/broker"
	"sikuli-bot/src/clock"
	"sikuli-bot/src/config"
	"sikuli-bot/src/contracts"
	"sikuli-bot/src/execute"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/github"
	"sikuli-bot/src/installer"
	"sikuli-bot/src/lock"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/report"
	"sikuli-bot/src/source"
	"sikuli-bot/src/store"
	"sikuli-bot/src/suite"
)

// BranchResolver finds the remote and ref holding a branch.
type BranchResolver interface {
	Resolve(ctx context.Context, branch string) (github.Resolution, error)
}

// SourceFetcher replaces a directory with a checkout.
type SourceFetcher interface {
	Fetch(ctx context.Context, remote, ref, dest string) error
}

// Installer installs one build.
type Installer interface {
	Install(ctx context.Context, path string) error
}

// SuiteRunner runs the UI tests of the current checkout.
type SuiteRunner interface {
	Run(ctx context.Context) (*suite.Outcome, error)
}

// RunResult is the outcome of Bot.Run. Err is the failure that decided
// ExitCode, if any.
type RunResult struct {
	contracts.RunRecord
	Err error
}

// Bot sequences one run.
type Bot struct {
	Config    *config.Config
	Clock     clock.Clock
	Scanner   *artifact.Scanner
	Parser    *branch.Parser
	Resolver  BranchResolver
	Fetcher   SourceFetcher
	Installer Installer
	Suite     SuiteRunner
	Notifier  report.Notifier
	Store     store.Store
	Broker    broker.Broker
	Logger    logger.Logger
	// DryRun scans without purging and stops after branch resolution.
	// Nothing is stored, published or posted.
	DryRun bool
	NewID  func() string
	// Connect, when set, opens Store and Broker once a build has been
	// selected. Days without a new installer touch no backend.
	Connect func(ctx context.Context) *Backends
}

// Options tune New.
type Options struct {
	DryRun bool
	Exec   execute.Runner // nil means a real ExecRunner
	Clock  clock.Clock    // nil means the wall clock
	// Output receives the console output of git, the installer and the
	// test suite as they run. Nil means os.Stdout. Ignored with Exec set.
	Output io.Writer
	// Connect opens the backends lazily; see Bot.Connect.
	Connect func(ctx context.Context) *Backends
}

// New wires a Bot from configuration. backends may be nil when
// opts.Connect is set.
func New(cfg *config.Config, backends *Backends, log logger.Logger, opts Options) (*Bot, error) {
	parser, err := branch.New(cfg.Branch.Pattern, cfg.Branch.Prefix, cfg.Branch.Suffix)
	if err != nil {
		return nil, err
	}

	exec := opts.Exec
	if exec == nil {
		out := opts.Output
		if out == nil {
			out = os.Stdout
		}
		exec = &execute.ExecRunner{Stream: out}
	}
	if backends == nil {
		backends = &Backends{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var verifier *installer.Verifier
	if cfg.Installer.Signature.PublicKey != "" {
		verifier, err = installer.NewVerifier(cfg.Installer.Signature.PublicKey, cfg.Installer.Signature.Suffix)
		if err != nil {
			return nil, err
		}
	}

	var notifier report.Notifier = &report.LogNotifier{Logger: log}
	if cfg.Notify.Enabled && !opts.DryRun {
		notifier = report.NewZulipNotifier(cfg.Zulip.Site, cfg.Zulip.Email, cfg.Zulip.APIKey, cfg.Zulip.Stream, cfg.Zulip.Topic)
	}

	return &Bot{
		Config:  cfg,
		Clock:   clk,
		Scanner: NewScanner(cfg),
		Parser:  parser,
		Resolver: &github.Resolver{
			Lister:         github.NewClient(cfg.GitHub.Token, cfg.GitHub.BaseURL),
			Owner:          cfg.GitHub.Owner,
			Repo:           cfg.GitHub.Repo,
			DefaultRemote:  cfg.GitHub.DefaultRemote,
			DefaultRef:     cfg.GitHub.DefaultRef,
			CheckoutCommit: cfg.GitHub.Checkout == config.CheckoutCommit,
			Logger:         log,
		},
		Fetcher: &source.Fetcher{
			Runner:   exec,
			CloneURL: cfg.GitHub.CloneURL,
			SSHHome:  cfg.SSH.Home,
			KeyFile:  cfg.SSH.KeyFile,
			Timeout:  cfg.GitHub.GitTimeout,
			Logger:   log,
		},
		Installer: &installer.Runner{
			Exec:     exec,
			Args:     cfg.Installer.Args,
			Timeout:  cfg.Installer.Timeout,
			Verifier: verifier,
			Logger:   log,
		},
		Suite: &suite.Invoker{
			Exec:        exec,
			Dir:         cfg.SuitePath(),
			Interpreter: cfg.Suite.Interpreter,
			Entry:       cfg.Suite.Entry,
			Args:        cfg.Suite.Args,
			LogFile:     cfg.Suite.LogFile,
			JUnitReport: cfg.Suite.JUnitReport,
			StripPrefix: cfg.FailurePrefix(),
			EnvVar:      cfg.Install.EnvVar,
			AppPath:     cfg.Install.AppPath,
			Timeout:     cfg.Suite.Timeout,
			Logger:      log,
		},
		Notifier: notifier,
		Store:    backends.Store,
		Broker:   backends.Broker,
		Logger:   log,
		DryRun:   opts.DryRun,
		NewID:    uuid.NewString,
		Connect:  opts.Connect,
	}, nil
}

// NewScanner watches the configured installer and log directories.
func NewScanner(cfg *config.Config) *artifact.Scanner {
	return &artifact.Scanner{
		InstallerDir: cfg.Paths.Installers,
		LogDir:       cfg.Paths.Logs,
		Installers: artifact.NamePattern{
			Prefix: cfg.Artifacts.Prefix,
			Suffix: cfg.Artifacts.InstallerSuffix,
			Marker: cfg.Artifacts.Marker,
		},
		Logs: artifact.NamePattern{
			Prefix: cfg.Artifacts.Prefix,
			Suffix: cfg.Artifacts.LogSuffix,
			Marker: cfg.Artifacts.Marker,
		},
	}
}

// Run performs one run: scan, select, resolve, fetch, install, test,
// archive and report. It never panics on external failures; they end up in
// the result with the exit status the process should use.
func (b *Bot) Run(ctx context.Context) *RunResult {
	log := b.log()
	now := b.Clock.Now()
	res := &RunResult{RunRecord: contracts.RunRecord{
		RunID:     b.newID(),
		Status:    contracts.StatusRunning,
		Stage:     contracts.StageScan,
		StartedAt: now,
	}}

	if path := b.Config.Lock.File; path != "" && !b.DryRun {
		l, err := lock.Acquire(path, lock.Options{StaleAfter: b.Config.Lock.StaleAfter, Clock: b.Clock})
		if err != nil {
			log.Error("%v", err)
			res.Status = contracts.StatusError
			b.setError(res, err)
			return res
		}
		defer l.Release()
	}

	// 1-2. Scan and select
	sel, err := b.Scanner.Scan(clock.StartOfDay(now), !b.DryRun)
	if err != nil {
		return b.fail(ctx, res, err)
	}
	for _, name := range sel.Purged {
		log.Debug("Removed stale log %s", name)
	}
	log.Debug("Today: %d installers, %d logs", len(sel.Installers), len(sel.Logs))

	if sel.Installer == "" {
		log.Info("No new installer today")
		res.Status = contracts.StatusNoInstaller
		res.FinishedAt = b.Clock.Now()
		return res
	}

	res.Installer = sel.Installer
	res.BuildName = artifact.BuildName(sel.Installer)
	log.Info("Testing %s", res.BuildName)

	if b.Connect != nil && !b.DryRun {
		backends := b.Connect(ctx)
		defer backends.Close()
		b.Store, b.Broker = backends.Store, backends.Broker
	}
	if p, ok := b.Notifier.(report.Preflighter); ok {
		if err := p.Preflight(); err != nil {
			return b.fail(ctx, res, err)
		}
	}
	b.save(ctx, res)
	b.publish(ctx, res, "installer selected")

	// 3. Resolve the branch
	b.enter(ctx, res, contracts.StageResolve)
	res.Branch, err = b.Parser.Branch(sel.Installer)
	if err != nil {
		return b.fail(ctx, res, err)
	}
	resolution, err := b.Resolver.Resolve(ctx, res.Branch)
	if err != nil {
		return b.fail(ctx, res, err)
	}
	res.Remote = resolution.Remote
	res.Ref = resolution.Ref
	res.PullNumber = resolution.PullNumber
	res.Fallback = resolution.Fallback
	if resolution.PullNumber > 0 {
		log.Info("Branch %s is pull request #%d: %s at %s", res.Branch, res.PullNumber, res.Remote, res.Ref)
	} else {
		log.Info("Branch %s: using %s at %s", res.Branch, res.Remote, res.Ref)
	}

	if b.DryRun {
		log.Info("Dry run: would fetch %s at %s and install %s", res.Remote, res.Ref, res.Installer)
		res.Status = contracts.StatusDryRun
		res.FinishedAt = b.Clock.Now()
		return res
	}

	// 4. Fetch
	b.enter(ctx, res, contracts.StageFetch)
	if err := b.Fetcher.Fetch(ctx, res.Remote, res.Ref, b.Config.Paths.Workspace); err != nil {
		return b.fail(ctx, res, err)
	}

	// 5. Install
	b.enter(ctx, res, contracts.StageInstall)
	if err := b.Installer.Install(ctx, filepath.Join(b.Config.Paths.Installers, res.Installer)); err != nil {
		return b.fail(ctx, res, err)
	}

	// 6. Test
	b.enter(ctx, res, contracts.StageTest)
	outcome, err := b.Suite.Run(ctx)
	if err != nil {
		return b.fail(ctx, res, err)
	}

	// 7. Archive
	b.enter(ctx, res, contracts.StageArchive)
	rawLog := ""
	if outcome.Ran {
		rawLog = outcome.RawLog
	}
	res.LogPath, err = archive.Archive(rawLog, b.Config.Paths.Logs, res.BuildName)
	if err != nil {
		return b.fail(ctx, res, err)
	}
	log.Debug("Archived log to %s", res.LogPath)

	// 8. Report
	b.enter(ctx, res, contracts.StageReport)
	var message string
	if !outcome.Ran {
		res.Status = contracts.StatusNoTests
		if b.Config.Notify.NoTests {
			message = report.FormatNoTests(res.BuildName)
		}
	} else {
		res.Failures = outcome.Failures
		previous := b.previousFailures(ctx, res)
		res.NewFailures = newFailures(res.Failures, previous)
		if len(res.Failures) == 0 {
			res.Status = contracts.StatusPassed
		} else {
			res.Status = contracts.StatusFailed
		}
		message = report.Format(report.Summary{
			BuildName: res.BuildName,
			Failures:  res.Failures,
			Previous:  previous,
		})
	}

	if message != "" {
		if err := b.Notifier.Notify(ctx, message); err != nil {
			log.Error("%v", err)
			b.setError(res, err)
		}
	}

	res.Stage = contracts.StageDone
	res.FinishedAt = b.Clock.Now()
	b.save(ctx, res)
	b.publish(ctx, res, string(res.Status))
	log.Info("Run %s finished: %s", res.RunID, res.Status)
	return res
}

// fail ends the run at its current stage.
func (b *Bot) fail(ctx context.Context, res *RunResult, err error) *RunResult {
	log := b.log()
	res.Status = contracts.StatusError
	res.FinishedAt = b.Clock.Now()
	b.setError(res, err)
	log.Error("%s failed: %v", res.Stage, err)

	if b.DryRun {
		return res
	}
	if b.Config.Notify.Errors {
		if nerr := b.Notifier.Notify(ctx, report.FormatError(res.BuildName, res.Stage, err)); nerr != nil {
			log.Warn("Could not report the failure: %v", nerr)
		}
	}
	b.save(ctx, res)
	b.publish(ctx, res, err.Error())
	return res
}

func (b *Bot) setError(res *RunResult, err error) {
	res.Err = err
	res.Error = err.Error()
	res.ErrorKind = failure.Kind(err)
	res.ExitCode = failure.ExitCode(err)
}

func (b *Bot) enter(ctx context.Context, res *RunResult, stage string) {
	res.Stage = stage
	b.publish(ctx, res, "")
}

// previousFailures returns the failures of the last finished run of the
// same branch, or nil when there is none.
func (b *Bot) previousFailures(ctx context.Context, res *RunResult) []string {
	if b.Store == nil {
		return nil
	}
	prev, err := b.Store.LastRunForBranch(ctx, res.Branch, res.RunID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.log().Warn("Could not read run history: %v", err)
		}
		return nil
	}
	if prev.Failures == nil {
		return []string{}
	}
	return prev.Failures
}

// newFailures lists the failures absent from previous. Nil previous means
// unknown, and nothing is new.
func newFailures(failures, previous []string) []string {
	if previous == nil {
		return nil
	}
	known := make(map[string]bool, len(previous))
	for _, p := range previous {
		known[p] = true
	}
	var out []string
	for _, f := range failures {
		if !known[f] {
			out = append(out, f)
		}
	}
	return out
}

func (b *Bot) save(ctx context.Context, res *RunResult) {
	if b.Store == nil || b.DryRun {
		return
	}
	if err := b.Store.SaveRun(ctx, &res.RunRecord); err != nil {
		b.log().Warn("Could not record run %s: %v", res.RunID, err)
	}
}

func (b *Bot) publish(ctx context.Context, res *RunResult, message string) {
	if b.Broker == nil || b.DryRun {
		return
	}
	ev := contracts.RunEvent{
		RunID:     res.RunID,
		Stage:     res.Stage,
		Status:    res.Status,
		BuildName: res.BuildName,
		Branch:    res.Branch,
		Message:   message,
		Failures:  len(res.Failures),
		Timestamp: b.Clock.Now(),
	}
	if err := broker.PublishRunEvent(ctx, b.Broker, ev); err != nil {
		b.log().Warn("Could not publish run event: %v", err)
	}
}

func (b *Bot) newID() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

func (b *Bot) log() logger.Logger {
	if b.Logger == nil {
		return logger.NewSilentLogger()
	}
	return b.Logger
}
