// Package windcentrale streams live production figures for wind turbines
// from the Windcentrale backend.
//
// The backend answers a long-lived GET per turbine with one line per
// update:
//
//	wind,mill_total,per_share,performance
//
// Each line becomes a source message named "windmill".
package windcentrale

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hemma-hub/internal/source"
)

const (
	// DefaultURLTemplate is the live feed; %d is the mill id.
	DefaultURLTemplate = "https://backend.windcentrale.nl/-gxvt=%d"

	// DefaultRetryInterval is the pause before reopening a feed.
	DefaultRetryInterval = 5 * time.Second

	// MessageName names the messages this source emits.
	MessageName = "windmill"
)

// Logger defines the logging interface for the source.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds windcentrale source settings.
type Config struct {
	Holdings      []Holding
	URLTemplate   string
	RetryInterval time.Duration
}

// Options configures optional collaborators.
type Options struct {
	Logger Logger
	Client *http.Client
	Sleep  func(ctx context.Context, d time.Duration) error
}

// Source follows the live feed of every configured mill.
type Source struct {
	id     string
	cfg    Config
	logger Logger
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ source.Source = (*Source)(nil)

// New creates a windcentrale source.
func New(id string, cfg Config, opts Options) *Source {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Client == nil {
		// No overall timeout: the response body is an endless stream.
		opts.Client = &http.Client{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Source{
		id:     id,
		cfg:    cfg,
		logger: opts.Logger,
		client: opts.Client,
		sleep:  opts.Sleep,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the source id.
func (s *Source) ID() string { return s.id }

// Holdings returns the mills this source follows.
func (s *Source) Holdings() []Holding { return s.cfg.Holdings }

// Run follows every mill's feed until ctx is cancelled.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	if err := sink.HandleConnect(ctx, s); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range s.cfg.Holdings {
		g.Go(func() error {
			return s.follow(gctx, h.Mill, sink)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// follow keeps one mill's feed open. A non-200 answer ends it for good.
func (s *Source) follow(ctx context.Context, mill Mill, sink source.Sink) error {
	for {
		err := s.stream(ctx, mill, sink)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnexpectedStatus) {
			s.logger.Warn("windcentrale feed refused, giving up on mill", "mill", mill.Name, "error", err)
			return nil
		}
		var sinkErr *sinkError
		if errors.As(err, &sinkErr) {
			return sinkErr.err
		}
		s.logger.Debug("windcentrale feed interrupted", "mill", mill.Name, "error", err)
		if err := s.sleep(ctx, s.cfg.RetryInterval); err != nil {
			return nil
		}
	}
}

// sinkError marks a failure of the hub rather than of the feed.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }

func (s *Source) stream(ctx context.Context, mill Mill, sink source.Sink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.cfg.URLTemplate, mill.ID), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		data, err := ParseLine(line)
		if err != nil {
			return err
		}
		data["id"] = int64(mill.ID)
		if err := sink.HandleIncoming(ctx, s, source.Message{"name": MessageName, "data": data}); err != nil {
			return &sinkError{err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("feed closed")
}

// ParseLine decodes one feed line.
func ParseLine(line string) (map[string]any, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	var nums [3]int64
	for i, f := range fields[1:4] {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
		}
		nums[i] = n
	}
	return map[string]any{
		"wind":        strings.TrimSpace(fields[0]),
		"mill_total":  nums[0],
		"per_share":   nums[1],
		"performance": nums[2],
	}, nil
}
