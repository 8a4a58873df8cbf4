package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/metrics"
	"github.com/manicko/mko-birth-reminder-bot/internal/store"
)

// Sender is a minimal interface the dispatcher needs to send a text message.
// telegram.Router implements this (method: SendMessage).
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Dispatcher sends every subscriber their daily birthday digest on a cron
// schedule in the configured timezone.
type Dispatcher struct {
	repo    store.Repo
	sender  Sender
	log     *zap.Logger
	cfg     config.Reminder
	offsets []int
	loc     *time.Location
	spec    string
	sched   cron.Schedule
	cron    *cron.Cron
	state   StateFile

	mu   sync.Mutex // serialises runs
	base context.Context
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// Result summarises one dispatch.
type Result struct {
	Subscribers int
	Sent        int
	Failed      int
}

func New(repo store.Repo, sender Sender, cfg config.Reminder, offsets []int, log *zap.Logger) (*Dispatcher, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("reminder timezone: %w", err)
	}
	spec := cfg.Trigger.Spec()
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("reminder trigger %q: %w", spec, err)
	}
	log = log.Named("dispatcher")

	return &Dispatcher{
		repo:    repo,
		sender:  sender,
		log:     log,
		cfg:     cfg,
		offsets: offsets,
		loc:     loc,
		spec:    spec,
		sched:   sched,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(log)))),
		),
		state: StateFile{Path: cfg.StateFile},
		base:  context.Background(),
		now:   time.Now,
		wait:  sleep,
	}, nil
}

// Start registers the daily job and starts the cron loop. Jobs run with ctx.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.base = ctx
	if _, err := d.cron.AddFunc(d.spec, func() { d.run(d.base, d.now()) }); err != nil {
		return fmt.Errorf("add reminder job: %w", err)
	}
	d.cron.Start()
	d.log.Info("dispatcher started",
		zap.String("trigger", d.spec),
		zap.String("timezone", d.loc.String()),
		zap.Time("next", d.sched.Next(d.now().In(d.loc))),
	)
	return nil
}

// Every adds a housekeeping job that runs at a fixed interval.
func (d *Dispatcher) Every(interval time.Duration, fn func()) error {
	_, err := d.cron.AddFunc("@every "+interval.String(), fn)
	return err
}

// Stop stops scheduling and waits for a running job up to ctx.
func (d *Dispatcher) Stop(ctx context.Context) {
	done := d.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		d.log.Warn("dispatcher stop timed out")
	}
}

// CatchUp replays the most recent fire time missed while the bot was down.
// It reports whether a dispatch happened. Without a recorded last run there
// is nothing to replay.
func (d *Dispatcher) CatchUp(ctx context.Context, now time.Time) (bool, error) {
	last, err := d.state.Load()
	if err != nil {
		d.log.Warn("reminder state unreadable", zap.String("path", d.state.Path), zap.Error(err))
	}
	if last.IsZero() {
		return false, d.state.Save(now)
	}

	now = now.In(d.loc)
	fire := d.sched.Next(last.In(d.loc))
	if fire.After(now) {
		return false, nil
	}
	for next := d.sched.Next(fire); !next.After(now); next = d.sched.Next(fire) {
		fire = next
	}
	d.log.Info("replaying missed reminder run",
		zap.Time("fire", fire),
		zap.String("last_run", humanize.Time(last)),
	)
	_, err = d.run(ctx, fire)
	return true, err
}

func (d *Dispatcher) run(ctx context.Context, ref time.Time) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.Dispatch(ctx, ref)
	if err != nil {
		d.log.Error("dispatch failed", zap.Error(err))
		return res, err
	}
	if err := d.state.Save(d.now()); err != nil {
		d.log.Error("save reminder state", zap.Error(err))
		return res, err
	}
	return res, nil
}

type outbound struct {
	chatID int64
	text   string
}

// Dispatch computes reminders for ref and sends one digest per subscriber.
// A subscriber that fails is logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, ref time.Time) (Result, error) {
	ref = ref.In(d.loc)
	ids, err := d.repo.ListSubscriberIDs(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Subscribers: len(ids)}

	g, gctx := errgroup.WithContext(ctx)
	out := make(chan outbound)

	g.Go(func() error {
		defer close(out)
		for _, id := range ids {
			rem, err := d.repo.AllReminders(gctx, id, ref, d.offsets)
			if err != nil {
				d.log.Error("reminders query failed", zap.Int64("subscriber_id", id), zap.Error(err))
				continue
			}
			if len(rem.Records) == 0 {
				continue
			}
			text, err := d.render(rem.Records, ref)
			if err != nil {
				d.log.Error("render digest failed", zap.Int64("subscriber_id", id), zap.Error(err))
				continue
			}
			select {
			case out <- outbound{chatID: id, text: text}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		first := true
		for m := range out {
			if !first {
				if err := d.wait(gctx, d.delay()); err != nil {
					return err
				}
			}
			first = false
			if err := d.sender.SendMessage(m.chatID, m.text); err != nil {
				d.log.Warn("reminder not delivered", zap.Int64("subscriber_id", m.chatID), zap.Error(err))
				metrics.Reminders.WithLabelValues("failed").Inc()
				res.Failed++
				continue
			}
			metrics.Reminders.WithLabelValues("sent").Inc()
			res.Sent++
		}
		return nil
	})

	err = g.Wait()
	metrics.LastDispatch.SetToCurrentTime()
	d.log.Info("reminders dispatched",
		zap.Time("ref", ref),
		zap.Int("subscribers", res.Subscribers),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, err
}

func (d *Dispatcher) delay() time.Duration {
	lo, hi := d.cfg.DelayMin, d.cfg.DelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
