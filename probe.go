package minescope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 5 * time.Second

var probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "minescope_probes_total",
	Help: "The total number of probes by mode and outcome",
}, []string{"mode", "outcome"})

var probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "minescope_probe_duration_seconds",
	Help:    "The time probes took from resolve to final result",
	Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
}, []string{"mode"})

type ProbeMode byte

const (
	ModeAuto ProbeMode = iota
	ModeJava
	ModeBedrock
	ModeDouble
)

func (mode ProbeMode) String() string {
	var text string
	switch mode {
	case ModeAuto:
		text = "auto"
	case ModeJava:
		text = "java"
	case ModeBedrock:
		text = "bedrock"
	case ModeDouble:
		text = "double"
	}
	return text
}

// ParseProbeMode reads an edition hint. An empty hint means auto.
func ParseProbeMode(s string) (ProbeMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ModeAuto, nil
	case "java":
		return ModeJava, nil
	case "bedrock":
		return ModeBedrock, nil
	case "double":
		return ModeDouble, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type ProberConfig struct {
	// Timeout bounds a whole probe including fallback attempts. It only
	// applies when the caller passes a context without a deadline.
	Timeout time.Duration
	// Protocol overrides the version the java handshake announces.
	Protocol int
}

func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Timeout:  DefaultTimeout,
		Protocol: javaProtocolVersion,
	}
}

// Prober answers status questions about a single address by picking the
// protocol clients the requested mode calls for.
type Prober struct {
	resolver Resolver
	java     *JavaClient
	legacy   *LegacyJavaClient
	bedrock  *BedrockClient
	timeout  time.Duration
}

func NewProber(cfg ProberConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	java := NewJavaClient()
	if cfg.Protocol != 0 {
		java.protocol = cfg.Protocol
	}
	return &Prober{
		resolver: NewResolver(),
		java:     java,
		legacy:   NewLegacyJavaClient(),
		bedrock:  NewBedrockClient(),
		timeout:  cfg.Timeout,
	}
}

// Probe resolves addr and queries it once, honoring the mode. Double mode
// returns the preferred result only, ProbeDouble exposes both.
func (p *Prober) Probe(ctx context.Context, addr string, mode ProbeMode) (*ProbeResult, error) {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()
	start := time.Now()

	var result *ProbeResult
	var err error
	switch mode {
	case ModeJava:
		result, err = p.probeJava(ctx, addr)
	case ModeBedrock:
		result, err = p.probeBedrock(ctx, addr)
	case ModeDouble:
		result, err = p.probeFirst(ctx, addr)
	default:
		result, err = p.probeAuto(ctx, addr)
	}
	recordProbe(mode, start, err)
	log.Info().Str("addr", addr).Stringer("mode", mode).
		Dur("took", time.Since(start)).Err(err).Msg("probe finished")
	return result, err
}

// ProbeDouble runs the java and bedrock queries side by side and returns
// every result that arrived, java first. Interop servers answer on both
// ports with different numbers, this surfaces the full picture.
func (p *Prober) ProbeDouble(ctx context.Context, addr string) ([]*ProbeResult, error) {
	ctx, cancel := p.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	javaCh, bedrockCh := p.launchBoth(ctx, addr)
	java := <-javaCh
	bedrock := <-bedrockCh

	var results []*ProbeResult
	if java.err == nil {
		results = append(results, java.result)
	}
	if bedrock.err == nil {
		results = append(results, bedrock.result)
	}
	recordProbe(ModeDouble, start, java.err)
	if len(results) == 0 {
		return nil, java.err
	}
	return results, nil
}

func (p *Prober) probeJava(ctx context.Context, addr string) (*ProbeResult, error) {
	target, err := p.resolver.ResolveJava(ctx, addr)
	if err != nil {
		return nil, err
	}
	result, err := p.java.Status(ctx, target)
	if err == nil {
		return result, nil
	}
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) || !probeErr.Dialed || probeErr.Kind == KindTimeout {
		return nil, err
	}

	// The port accepted tcp but no modern status came back, which is how
	// pre-1.7 servers react to a handshake. Try the old ping.
	log.Debug().Str("target", target.Addr()).Err(err).
		Msg("no modern status, trying legacy ping")
	legacyResult, legacyErr := p.legacy.Status(ctx, target)
	if legacyErr != nil {
		return nil, err
	}
	return legacyResult, nil
}

func (p *Prober) probeBedrock(ctx context.Context, addr string) (*ProbeResult, error) {
	target, err := p.resolver.ResolveBedrock(ctx, addr)
	if err != nil {
		return nil, err
	}
	return p.bedrock.Status(ctx, target)
}

// probeAuto prefers java and only asks bedrock when the java side looked
// unreachable. A server that answered java bytes, even broken ones, is a
// java server and gets no second opinion.
func (p *Prober) probeAuto(ctx context.Context, addr string) (*ProbeResult, error) {
	result, javaErr := p.probeJava(ctx, addr)
	if javaErr == nil {
		return result, nil
	}
	var probeErr *ProbeError
	if !errors.As(javaErr, &probeErr) {
		return nil, javaErr
	}
	if probeErr.Kind != KindConnection && probeErr.Kind != KindTimeout {
		return nil, javaErr
	}

	result, bedrockErr := p.probeBedrock(ctx, addr)
	if bedrockErr != nil {
		// the java diagnostic fits the common case better
		return nil, javaErr
	}
	return result, nil
}

// probeFirst runs both editions but hands back only the preferred result.
// Once java succeeded the bedrock attempt has lost and gets canceled so
// its socket does not linger until the deadline.
func (p *Prober) probeFirst(ctx context.Context, addr string) (*ProbeResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	javaCh, bedrockCh := p.launchBoth(ctx, addr)
	java := <-javaCh
	if java.err == nil {
		cancel()
		return java.result, nil
	}
	bedrock := <-bedrockCh
	if bedrock.err == nil {
		return bedrock.result, nil
	}
	return nil, java.err
}

type attemptOutcome struct {
	result *ProbeResult
	err    error
}

func (p *Prober) launchBoth(ctx context.Context, addr string) (<-chan attemptOutcome, <-chan attemptOutcome) {
	javaCh := make(chan attemptOutcome, 1)
	bedrockCh := make(chan attemptOutcome, 1)
	go func() {
		result, err := p.probeJava(ctx, addr)
		javaCh <- attemptOutcome{result: result, err: err}
	}()
	go func() {
		result, err := p.probeBedrock(ctx, addr)
		bedrockCh <- attemptOutcome{result: result, err: err}
	}()
	return javaCh, bedrockCh
}

func (p *Prober) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func recordProbe(mode ProbeMode, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var probeErr *ProbeError
		if errors.As(err, &probeErr) {
			outcome = probeErr.Kind.String()
		}
	}
	probesTotal.WithLabelValues(mode.String(), outcome).Inc()
	probeDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
}
