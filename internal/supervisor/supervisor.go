// Package supervisor runs the connect/stream/reload loop around a stream
// client and a rotating writer.
//
// State machine:
//
//	Connecting -> Streaming             upstream accepted the connection
//	Streaming  -> Connecting            transient read fault
//	Streaming  -> Reloading -> Connecting  parameter source changed
//	*          -> Terminated            any other fault, or shutdown
//
// Every transition out of Streaming closes the current output file, so no
// file spans two connections. Only the two recoverable fault kinds reconnect;
// there is no backoff here.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/logging"
	"github.com/xtxerr/feedlog/internal/params"
	"github.com/xtxerr/feedlog/internal/stream"
)

// =============================================================================
// Types
// =============================================================================

// State is a supervisor state.
type State int

const (
	Connecting State = iota
	Streaming
	Reloading
	Terminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Streaming:
		return "Streaming"
	case Reloading:
		return "Reloading"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink persists delivered payloads. *rotating.Writer implements it.
type Sink interface {
	Deliver(payload []byte) error
	CloseCurrent() error
}

// ParameterSource is a reloadable parameter file. *params.Source implements it.
type ParameterSource interface {
	Load() (*params.Parameters, error)
	HasChangedSince(last time.Time) (bool, error)
}

// Options configures a Supervisor.
type Options struct {
	Client stream.Client
	Sink   Sink
	Mode   stream.Mode

	// Params are the parameters for the first connection. Required for the
	// location and keyword modes.
	Params *params.Parameters

	// Source enables change detection. Nil disables it.
	Source ParameterSource

	Logger *slog.Logger

	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State)
}

// Stats holds supervisor counters.
type Stats struct {
	Connects   int
	Reconnects int
	Reloads    int
	Payloads   int
}

// Supervisor owns the connection lifecycle. It is not safe for concurrent use;
// Run must be called once.
type Supervisor struct {
	client       stream.Client
	sink         Sink
	mode         stream.Mode
	source       ParameterSource
	log          *slog.Logger
	onTransition func(from, to State)

	state  State
	params *params.Parameters
	stats  Stats
}

// New creates a supervisor.
func New(opts Options) (*Supervisor, error) {
	if opts.Client == nil {
		return nil, errors.NewMissingField("client")
	}
	if opts.Sink == nil {
		return nil, errors.NewMissingField("sink")
	}
	if _, err := stream.ParseMode(string(opts.Mode)); err != nil {
		return nil, errors.NewInvalidValue("mode", opts.Mode, err.Error())
	}
	if opts.Mode.NeedsParameters() && opts.Params == nil {
		return nil, errors.NewValidation("params", fmt.Sprintf("required for %s stream", opts.Mode))
	}
	if opts.Source != nil && opts.Params == nil {
		return nil, errors.NewValidation("source", "change detection needs initial parameters")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("supervisor")
	}

	return &Supervisor{
		client:       opts.Client,
		sink:         opts.Sink,
		mode:         opts.Mode,
		source:       opts.Source,
		log:          opts.Logger,
		onTransition: opts.OnTransition,
		state:        Connecting,
		params:       opts.Params,
	}, nil
}

// =============================================================================
// Loop
// =============================================================================

// Run streams until a fatal fault or ctx cancellation. It returns nil on
// cancellation and the fatal fault otherwise. The current output file is
// closed before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if s.state != Connecting {
			s.transition(Connecting)
		}
		s.log.Info("connecting to stream", "mode", string(s.mode))

		err := s.client.Stream(ctx, s.request(), (*session)(s))

		if ctx.Err() != nil {
			s.log.Info("shutting down", "reason", ctx.Err())
			if cerr := s.closeCurrent(); cerr != nil {
				return s.terminate(cerr)
			}
			s.transition(Terminated)
			return nil
		}
		if err == nil {
			err = errors.ErrStreamEnded
		}

		kind := errors.Classify(err)
		if !kind.Recoverable() {
			return s.terminate(err)
		}
		switch kind {
		case errors.FaultTransientRead:
			s.log.Error("stream read interrupted", "error", err)
			if cerr := s.closeCurrent(); cerr != nil {
				return s.terminate(cerr)
			}
			s.stats.Reconnects++

		case errors.FaultParameterChanged:
			s.log.Info("parameters file has changed, reloading", "source", s.params.Source)
			s.transition(Reloading)
			if cerr := s.closeCurrent(); cerr != nil {
				return s.terminate(cerr)
			}
			if rerr := s.reload(); rerr != nil {
				return s.terminate(rerr)
			}
		}
	}
}

// terminate closes the current file and enters Terminated.
func (s *Supervisor) terminate(err error) error {
	s.log.Error("fatal stream fault", "error", err, "kind", errors.Classify(err).String())
	if cerr := s.closeCurrent(); cerr != nil {
		s.log.Error("close failed during shutdown", "error", cerr)
		err = errors.Join(err, cerr)
	}
	s.transition(Terminated)
	return err
}

func (s *Supervisor) reload() error {
	p, err := s.source.Load()
	if err != nil {
		return err
	}
	s.params = p
	s.stats.Reloads++
	s.log.Info("reloaded parameters", "source", p.Source, "kind", p.Kind.String(), "values", p.Len(), "mtime", p.ModTime)
	return nil
}

func (s *Supervisor) closeCurrent() error {
	if err := s.sink.CloseCurrent(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func (s *Supervisor) request() stream.Request {
	req := stream.Request{Mode: s.mode}
	if s.params == nil {
		return req
	}
	switch s.mode {
	case stream.ModeKeyword:
		req.Track = s.params.Keywords
	case stream.ModeLocation:
		req.Locations = s.params.Locations
	}
	return req
}

func (s *Supervisor) transition(to State) {
	from := s.state
	s.state = to
	s.log.Debug("state transition", "from", from.String(), "to", to.String())
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.state
}

// Params returns the parameters used for the current or next connection.
func (s *Supervisor) Params() *params.Parameters {
	return s.params
}

// Stats returns a copy of the counters.
func (s *Supervisor) Stats() Stats {
	return s.stats
}

// =============================================================================
// Stream handler
// =============================================================================

// session adapts the supervisor to stream.Handler for one connection.
type session Supervisor

func (h *session) OnConnect() {
	s := (*Supervisor)(h)
	s.stats.Connects++
	s.transition(Streaming)
}

// OnData persists the payload, then checks the parameter source. The payload
// that observes a change is written before the reload.
func (h *session) OnData(payload []byte) error {
	s := (*Supervisor)(h)
	if err := s.sink.Deliver(payload); err != nil {
		return err
	}
	s.stats.Payloads++

	if s.source == nil {
		return nil
	}
	changed, err := s.source.HasChangedSince(s.params.ModTime)
	if err != nil {
		return err
	}
	if changed {
		return errors.ErrParameterSourceChanged
	}
	return nil
}
