package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/valluvarai/valluvarai/internal/metrics"
)

// Gateway wraps every provider call with the shared transport policy: a
// per-call timeout, failure classification and a single backed-off retry for
// transient faults. A transient failure that survives the retry is surfaced
// to the caller as permanent.
type Gateway struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	timeout time.Duration
	backoff time.Duration

	// sleep is swappable so tests do not wait out real backoffs.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway builds the shared transport wrapper.
func NewGateway(logger *slog.Logger, rec *metrics.Recorder, timeout, backoff time.Duration) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		logger:  logger.With(slog.String("component", "provider_gateway")),
		metrics: rec,
		timeout: timeout,
		backoff: backoff,
		sleep:   sleepCtx,
	}
}

// Text invokes a text provider under the gateway policy.
func (g *Gateway) Text(ctx context.Context, p TextProvider, req TextRequest) (string, error) {
	var out string
	err := g.do(ctx, p.Name(), "text", func(ctx context.Context) error {
		result, err := p.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

// Image invokes an image provider under the gateway policy.
func (g *Gateway) Image(ctx context.Context, p ImageProvider, req ImageRequest) (ImageArtifact, error) {
	var out ImageArtifact
	err := g.do(ctx, p.Name(), "image", func(ctx context.Context) error {
		result, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

// Audio invokes an audio provider under the gateway policy.
func (g *Gateway) Audio(ctx context.Context, p AudioProvider, req AudioRequest) (AudioArtifact, error) {
	var out AudioArtifact
	err := g.do(ctx, p.Name(), "audio", func(ctx context.Context) error {
		result, err := p.Synthesize(ctx, req)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

// Video invokes the video assembler under the gateway policy.
func (g *Gateway) Video(ctx context.Context, p VideoProvider, req VideoRequest) (VideoArtifact, error) {
	var out VideoArtifact
	err := g.do(ctx, p.Name(), "video", func(ctx context.Context) error {
		result, err := p.Assemble(ctx, req)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

func (g *Gateway) do(ctx context.Context, providerName, kind string, attempt func(context.Context) error) error {
	run := func() error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return attempt(callCtx)
	}

	err := run()
	if err == nil {
		g.metrics.ObserveProviderCall(providerName, kind, metrics.ProviderOutcomeSuccess)
		return nil
	}
	// The request itself was canceled or timed out; surface that rather than
	// a provider failure so the orchestrator can abort cleanly.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	failure := asFailure(providerName, kind, err)
	g.observeFailure(providerName, kind, failure)
	if failure.Class != ClassTransient {
		return failure
	}

	g.logger.Warn("transient provider failure, retrying once",
		slog.String("provider", providerName),
		slog.String("kind", kind),
		slog.Any("error", failure.Err))
	if err := g.sleep(ctx, g.backoff); err != nil {
		return err
	}

	err = run()
	if err == nil {
		g.metrics.ObserveProviderCall(providerName, kind, metrics.ProviderOutcomeSuccess)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	failure = asFailure(providerName, kind, err)
	g.observeFailure(providerName, kind, failure)
	// Out of retries: the stage executor sees this as non-retryable.
	failure.Class = ClassPermanent
	return failure
}

func (g *Gateway) observeFailure(providerName, kind string, f *Failure) {
	outcome := metrics.ProviderOutcomePermanent
	if f.Class == ClassTransient {
		outcome = metrics.ProviderOutcomeTransient
	}
	g.metrics.ObserveProviderCall(providerName, kind, outcome)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
