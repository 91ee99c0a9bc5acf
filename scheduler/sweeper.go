// Package scheduler publishes due posts. A sweep loads every scheduled post
// whose due time has passed, publishes it through the platform adapter and
// moves it to published or failed. No due post is left scheduled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ArtJustine/scheduler-sub001/config"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// ErrSweepInProgress is returned when Run is called while a sweep is running.
var ErrSweepInProgress = errors.New("a publishing sweep is already running")

// Posts is the part of the post store a sweep needs.
type Posts interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.Post, error)
	MarkPublished(ctx context.Context, id, platformPostID string, at time.Time, attempts int) (bool, error)
	MarkFailed(ctx context.Context, id, reason string, attempts int) (bool, error)
}

// Credentials is the part of the credential store a sweep needs.
type Credentials interface {
	Find(ctx context.Context, workspaceID, platform string) (*models.Credential, error)
	UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
	Disconnect(ctx context.Context, workspaceID, platform string) error
}

// Registry resolves adapters and OAuth providers.
type Registry interface {
	Adapter(p platforms.Platform) (platforms.Adapter, error)
	Provider(p platforms.Platform) (platforms.Provider, error)
}

// Options tune a Sweeper.
type Options struct {
	// BatchSize is how many due posts are loaded per query.
	BatchSize int
	// Concurrency bounds parallel publishes; 1 publishes sequentially.
	Concurrency int
	// MaxAttempts bounds publish calls per post. Only network failures are retried.
	MaxAttempts int
	// RetryDelay is the wait before the second attempt; it doubles after that.
	RetryDelay time.Duration
	// Timeout bounds a single publish attempt.
	Timeout time.Duration
}

// OptionsFromConfig reads the publishing settings.
func OptionsFromConfig(c config.AppConfig) Options {
	return Options{
		BatchSize:   c.SweepBatchSize,
		Concurrency: c.SweepConcurrency,
		MaxAttempts: c.PublishMaxAttempts,
		RetryDelay:  c.PublishRetryDelay,
		Timeout:     c.PublishTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = platforms.DefaultTimeout
	}
	return o
}

// Outcome is what happened to one post.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means another writer moved the post first.
	OutcomeSkipped Outcome = "skipped"
)

// Report summarizes one sweep.
type Report struct {
	Processed  int       `json:"processed"`
	Published  int       `json:"published"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Report) add(o Outcome) {
	r.Processed++
	switch o {
	case OutcomePublished:
		r.Published++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Sweeper runs publishing sweeps. Runs never overlap; a post is never
// published by two goroutines of the same process at once.
type Sweeper struct {
	posts Posts
	creds Credentials
	reg   Registry
	opts  Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	running  sync.Mutex
	inFlight sync.Map
}

// New returns a Sweeper.
func New(posts Posts, creds Credentials, reg Registry, opts Options) *Sweeper {
	return &Sweeper{
		posts: posts,
		creds: creds,
		reg:   reg,
		opts:  opts.withDefaults(),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Run performs one sweep.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		sweepsTotal.WithLabelValues("overlap").Inc()
		return nil, ErrSweepInProgress
	}
	defer s.running.Unlock()

	report := &Report{StartedAt: s.now().UTC()}
	timer := time.Now()
	seen := map[string]bool{}
	var mu sync.Mutex

	for {
		due, err := s.posts.Due(ctx, s.now(), s.opts.BatchSize)
		if err != nil {
			sweepsTotal.WithLabelValues("error").Inc()
			return report, fmt.Errorf("loading due posts: %w", err)
		}

		var g errgroup.Group
		g.SetLimit(s.opts.Concurrency)
		fresh := 0
		for i := range due {
			post := due[i]
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			fresh++
			g.Go(func() error {
				o := s.publish(ctx, &post)
				mu.Lock()
				report.add(o)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		// a short batch was the last one; a batch of only seen posts means
		// their status writes failed and retrying now would spin
		if len(due) < s.opts.BatchSize || fresh == 0 || ctx.Err() != nil {
			break
		}
	}

	report.FinishedAt = s.now().UTC()
	sweepsTotal.WithLabelValues("ok").Inc()
	sweepDuration.Observe(time.Since(timer).Seconds())
	utils.Logger.Info("sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("published", report.Published),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", time.Since(timer)))
	return report, nil
}

// PublishNow publishes one post immediately through the same path as a sweep.
// The post must already be due.
func (s *Sweeper) PublishNow(ctx context.Context, post *models.Post) Outcome {
	return s.publish(ctx, post)
}

func (s *Sweeper) publish(ctx context.Context, post *models.Post) Outcome {
	if _, busy := s.inFlight.LoadOrStore(post.ID, struct{}{}); busy {
		return OutcomeSkipped
	}
	defer s.inFlight.Delete(post.ID)

	log := utils.Logger.With(
		zap.String("post_id", post.ID),
		zap.String("workspace_id", post.WorkspaceID),
		zap.String("platform", post.Platform))

	platformPostID, attempts, err := s.attempt(ctx, post, log)

	// status writes must land even when the trigger went away
	wctx := context.WithoutCancel(ctx)
	if err != nil {
		ok, werr := s.posts.MarkFailed(wctx, post.ID, err.Error(), attempts)
		if werr != nil {
			log.Error("recording failure", zap.Error(werr))
		}
		if !ok {
			return OutcomeSkipped
		}
		postsTotal.WithLabelValues(post.Platform, string(OutcomeFailed), platforms.KindOf(err)).Inc()
		log.Warn("post failed", zap.Int("attempts", attempts), zap.String("kind", platforms.KindOf(err)), zap.Error(err))
		return OutcomeFailed
	}

	ok, werr := s.posts.MarkPublished(wctx, post.ID, platformPostID, s.now(), attempts)
	if werr != nil {
		log.Error("recording publish", zap.String("platform_post_id", platformPostID), zap.Error(werr))
	}
	if !ok {
		log.Warn("post changed while publishing", zap.String("platform_post_id", platformPostID))
		return OutcomeSkipped
	}
	postsTotal.WithLabelValues(post.Platform, string(OutcomePublished), "").Inc()
	log.Info("post published", zap.Int("attempts", attempts), zap.String("platform_post_id", platformPostID))
	return OutcomePublished
}

// attempt returns the platform post id, the number of publish calls made and
// the final error.
func (s *Sweeper) attempt(ctx context.Context, post *models.Post, log *zap.Logger) (string, int, error) {
	p, err := platforms.Parse(post.Platform)
	if err != nil {
		return "", 0, &platforms.Error{Kind: platforms.ErrConfigurationMissing, Platform: platforms.Platform(post.Platform), Message: err.Error()}
	}
	adapter, err := s.reg.Adapter(p)
	if err != nil {
		return "", 0, err
	}
	payload := platforms.Payload{Text: post.Caption, MediaURL: post.MediaURL, Title: post.Title}
	if err := adapter.Validate(payload); err != nil {
		return "", 0, err
	}

	cred, err := s.credential(ctx, post, p, log)
	if err != nil {
		return "", 0, err
	}
	acct := platforms.Account{AccessToken: cred.AccessToken, AccountID: cred.AccountID}

	delay := s.opts.RetryDelay
	attempts := 0
	for {
		attempts++
		actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		id, err := adapter.Publish(actx, acct, payload)
		cancel()
		if err == nil {
			return id, attempts, nil
		}

		var pe *platforms.Error
		if errors.As(err, &pe) && pe.Status == 401 {
			if derr := s.creds.Disconnect(context.WithoutCancel(ctx), post.WorkspaceID, post.Platform); derr != nil {
				log.Error("disconnecting rejected credential", zap.Error(derr))
			} else {
				log.Warn("credential rejected by platform, disconnected")
			}
		}
		if !platforms.IsTransient(err) || attempts >= s.opts.MaxAttempts {
			return "", attempts, err
		}
		log.Info("publish attempt failed, retrying", zap.Int("attempt", attempts), zap.Duration("delay", delay), zap.Error(err))
		if serr := s.sleep(ctx, delay); serr != nil {
			return "", attempts, err
		}
		delay *= 2
	}
}

// credential returns a usable credential, refreshing an expired token when
// the platform allows it.
func (s *Sweeper) credential(ctx context.Context, post *models.Post, p platforms.Platform, log *zap.Logger) (*models.Credential, error) {
	cred, err := s.creds.Find(ctx, post.WorkspaceID, post.Platform)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !cred.Usable()) {
		return nil, &platforms.Error{Kind: platforms.ErrNotConnected, Platform: p, Message: "no connected account for this workspace"}
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	if !cred.Expired(s.now()) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return nil, &platforms.Error{Kind: platforms.ErrNotConnected, Platform: p, Message: "access token expired, reconnect the account"}
	}

	prov, err := s.reg.Provider(p)
	if err != nil {
		return nil, err
	}
	tok, err := prov.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	var exp *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		exp = &e
	}
	if err := s.creds.UpdateToken(ctx, cred.ID, tok.AccessToken, tok.RefreshToken, exp); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}
	log.Info("access token refreshed")
	cred.AccessToken = tok.AccessToken
	cred.ExpiresAt = exp
	return cred, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
