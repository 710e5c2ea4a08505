// Package companion composes the stores, scheduler, notifier and timeline into the running
// application and derives achievements from what the timeline delivers.
package companion

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/companion/internal/achievement"
	"git.home.luguber.info/inful/companion/internal/appstate"
	"git.home.luguber.info/inful/companion/internal/config"
	"git.home.luguber.info/inful/companion/internal/events"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/journal"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
	"git.home.luguber.info/inful/companion/internal/mood"
	"git.home.luguber.info/inful/companion/internal/notifier"
	"git.home.luguber.info/inful/companion/internal/reminder"
	"git.home.luguber.info/inful/companion/internal/retry"
	"git.home.luguber.info/inful/companion/internal/scheduler"
	"git.home.luguber.info/inful/companion/internal/timeline"
)

// AmbientNotifier names the notifier driven by configuration.
const AmbientNotifier = "ambient"

const rulesBuffer = 1024

// ChatClient produces a companion reply for a user message.
type ChatClient interface {
	Reply(ctx context.Context, history []appstate.Message, text string) (string, error)
}

// Engine owns every long-lived component. Build it with New, then either call Run or use the
// stores directly and finish with Close.
type Engine struct {
	cfg        *config.Config
	configPath string
	debounce   time.Duration
	clock      clockwork.Clock
	recorder   metrics.Recorder
	policy     retry.Policy
	chat       ChatClient

	bus      *events.Bus
	sink     *timeline.Sink
	journal  *journal.Store
	sched    *scheduler.Scheduler
	rules    *Rules
	rulesCh  <-chan events.NotificationAccepted
	unsub    func()
	ambient  *notifier.Notifier
	window   int
	windowMu sync.RWMutex

	Reminders    *reminder.Store
	Achievements *achievement.Registry
	Moods        *mood.Log

	closeOnce sync.Once
	closeErr  error
}

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithRecorder(r metrics.Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithChatClient enables companion replies to Say.
func WithChatClient(c ChatClient) Option { return func(e *Engine) { e.chat = c } }

// WithConfigWatch reloads the notifier settings when the file at path changes.
func WithConfigWatch(path string, debounce time.Duration) Option {
	return func(e *Engine) {
		e.configPath = path
		e.debounce = debounce
	}
}

// New opens every store under cfg.DataDir and restores the persisted timeline.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	e := &Engine{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		policy: retry.FromConfig(cfg.Persistence),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.recorder = metrics.OrNoop(e.recorder)
	e.bus = events.NewBus()

	sinkOpts := []timeline.Option{
		timeline.WithClock(e.clock),
		timeline.WithPublisher(e.bus),
		timeline.WithRecorder(e.recorder),
	}
	if !cfg.Journal.Disabled {
		j, err := journal.Open(cfg.JournalPath())
		if err != nil {
			slog.Warn("Notification journal unavailable, continuing without it",
				logfields.Path(cfg.JournalPath()), logfields.Error(err))
		} else {
			e.journal = j
			sinkOpts = append(sinkOpts, timeline.WithJournal(j))
		}
	}
	e.sink = timeline.NewSink(sinkOpts...)

	sched, err := scheduler.New(scheduler.WithClock(e.clock), scheduler.WithRecorder(e.recorder))
	if err != nil {
		e.closeJournal()
		return nil, err
	}
	e.sched = sched

	st := appstate.Load(cfg.Path(appstate.FileName), appstate.State{
		NotifierRatePerHour: cfg.Notifier.MessagesPerHour,
		ContextWindowLength: cfg.ContextWindowLength,
	})
	if err := e.sink.Seed(st.Entries()); err != nil {
		e.closeJournal()
		return nil, err
	}
	e.window = st.ContextWindowLength

	e.Reminders = reminder.Open(cfg.Path(reminder.FileName), e.sink,
		reminder.WithClock(e.clock), reminder.WithRetryPolicy(e.policy), reminder.WithRecorder(e.recorder))
	e.Achievements = achievement.Open(cfg.Path(achievement.FileName), e.sink,
		achievement.WithClock(e.clock), achievement.WithRetryPolicy(e.policy), achievement.WithRecorder(e.recorder))
	e.Moods = mood.Open(cfg.Path(mood.FileName), e.sink,
		mood.WithClock(e.clock), mood.WithRetryPolicy(e.policy), mood.WithRecorder(e.recorder))

	e.rules = NewRules(e.Achievements, e.sink, e.Reminders.CompletedOnTime, e.Moods.DistinctDays)
	e.rulesCh, e.unsub = events.Subscribe[events.NotificationAccepted](e.bus, rulesBuffer)

	if err := e.Reminders.Start(e.sched, cfg.Reminders.CheckInterval); err != nil {
		e.closeJournal()
		return nil, err
	}
	e.ambient, err = notifier.New(AmbientNotifier, e.sched, e.sink, st.NotifierRatePerHour, cfg.Notifier.Messages)
	if err != nil {
		e.closeJournal()
		return nil, err
	}
	return e, nil
}

// Run starts the scheduler and delivery loops and blocks until ctx is done. It closes the
// engine before returning.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.sink.Run(gctx) })
	g.Go(func() error { return e.rules.Run(gctx, e.rulesCh) })

	if e.configPath != "" {
		w, err := NewConfigWatcher(e.configPath, e.ApplyConfig, e.debounce)
		if err != nil {
			slog.Warn("Configuration watcher disabled", logfields.Error(err))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	e.sched.Start(gctx)
	slog.Info("Companion running",
		logfields.Notifier(e.ambient.Name()),
		logfields.Rate(e.ambient.Rate()),
		logfields.Count(e.sink.Len()))

	<-gctx.Done()
	e.stopProducers(context.WithoutCancel(ctx))
	runErr := g.Wait()
	if err := e.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Say records a user message and, when a chat client is configured, the companion's reply.
func (e *Engine) Say(ctx context.Context, text string) ([]timeline.Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ferrors.ValidationError("message must not be empty").Build()
	}
	out := []timeline.Entry{e.sink.Emit(text, timeline.SourceUser)}
	if e.chat == nil {
		return out, nil
	}

	history := e.contextMessages()
	reply, err := e.chat.Reply(ctx, history, text)
	if err != nil {
		return out, ferrors.WrapError(err, ferrors.CategoryRuntime, "chat client failed").Build()
	}
	if reply = strings.TrimSpace(reply); reply != "" {
		out = append(out, e.sink.Emit(reply, timeline.SourceCompanion))
	}
	return out, nil
}

// contextMessages returns the conversational tail handed to the chat client, the current
// message included.
func (e *Engine) contextMessages() []appstate.Message {
	e.windowMu.RLock()
	window := e.window
	e.windowMu.RUnlock()
	st := appstate.State{ChatHistory: appstate.FromEntries(e.sink.Snapshot()), ContextWindowLength: window}
	return st.ContextMessages()
}

// ApplyConfig applies the hot-reloadable subset of cfg and announces it on the bus.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.DataDir != e.cfg.DataDir {
		slog.Warn("Data directory change requires restart", logfields.Path(cfg.DataDir))
	}
	if err := e.ambient.Configure(cfg.Notifier.MessagesPerHour, cfg.Notifier.Messages); err != nil {
		return err
	}
	e.windowMu.Lock()
	e.window = cfg.ContextWindowLength
	e.windowMu.Unlock()

	return e.bus.Publish(ctx, events.ConfigReloaded{
		Path:            e.configPath,
		MessagesPerHour: e.ambient.Rate(),
		Messages:        len(cfg.Notifier.Messages),
		ReloadedAt:      e.clock.Now(),
	})
}

// Bus exposes the event bus for console output and tests.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Timeline exposes the notification sink.
func (e *Engine) Timeline() *timeline.Sink { return e.sink }

// Journal returns the notification journal, or nil when it is disabled or failed to open.
func (e *Engine) Journal() *journal.Store { return e.journal }

// Notifier returns the ambient notifier.
func (e *Engine) Notifier() *notifier.Notifier { return e.ambient }

// Scheduler exposes the shared scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Status is a point-in-time summary.
type Status struct {
	TimelineLength   int
	ActiveReminders  int
	UnlockedCount    int
	AchievementCount int
	CurrentMood      string
	NotifierRate     int
	NotifierInterval time.Duration
	ContextWindow    int
}

func (e *Engine) Status() Status {
	e.windowMu.RLock()
	window := e.window
	e.windowMu.RUnlock()
	return Status{
		TimelineLength:   e.sink.Len(),
		ActiveReminders:  len(e.Reminders.ActiveReminders()),
		UnlockedCount:    e.Achievements.UnlockedCount(),
		AchievementCount: len(e.Achievements.Achievements()),
		CurrentMood:      e.Moods.CurrentMood(),
		NotifierRate:     e.ambient.Rate(),
		NotifierInterval: e.ambient.Interval(),
		ContextWindow:    window,
	}
}

// stopProducers cancels every scheduled job so nothing new reaches the timeline.
func (e *Engine) stopProducers(ctx context.Context) {
	if err := e.Reminders.Close(); err != nil {
		slog.Warn("Failed to stop reminder checks", logfields.Error(err))
	}
	if err := e.ambient.Close(); err != nil {
		slog.Warn("Failed to stop notifier", logfields.Notifier(e.ambient.Name()), logfields.Error(err))
	}
	if err := e.sched.Stop(ctx); err != nil {
		slog.Warn("Failed to stop scheduler", logfields.Error(err))
	}
}

// Close stops the jobs, delivers everything still pending, applies the achievement rules to
// it and persists the timeline. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.stopProducers(ctx)
		e.settle(ctx)
		e.unsub()

		e.windowMu.RLock()
		st := appstate.State{
			ChatHistory:         appstate.FromEntries(e.sink.Snapshot()),
			NotifierRatePerHour: e.ambient.Rate(),
			ContextWindowLength: e.window,
		}
		e.windowMu.RUnlock()
		if err := appstate.Save(ctx, e.cfg.Path(appstate.FileName), st, e.policy); err != nil {
			e.recorder.IncPersistFailure("app_state")
			e.closeErr = err
		}

		e.bus.Close()
		e.closeJournal()
	})
	return e.closeErr
}

// settle alternates draining the sink and the rules channel until both are empty. Rules can
// emit achievements, which produce further deliveries; the catalog bounds the rounds.
func (e *Engine) settle(ctx context.Context) {
	for {
		e.sink.Drain(ctx)
		applied := 0
	drain:
		for {
			select {
			case evt, ok := <-e.rulesCh:
				if !ok {
					break drain
				}
				e.rules.Apply(ctx, evt)
				applied++
			default:
				break drain
			}
		}
		if applied == 0 && e.sink.Delivered() == uint64(e.lastSeq()) {
			return
		}
	}
}

func (e *Engine) lastSeq() uint64 {
	tail := e.sink.Tail(1)
	if len(tail) == 0 {
		return 0
	}
	return tail[0].Seq
}

func (e *Engine) closeJournal() {
	if e.journal == nil {
		return
	}
	if err := e.journal.Close(); err != nil {
		slog.Warn("Failed to close journal", logfields.Error(err))
	}
}
