// Package pipeline coordinates one conversion request from workspace
// creation to delivery and guarantees the workspace is removed afterwards.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/akosicedzkii/pdforever/internal/convert"
	"github.com/akosicedzkii/pdforever/internal/delivery"
	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/events"
	"github.com/akosicedzkii/pdforever/internal/ingest"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pack"
	"github.com/akosicedzkii/pdforever/internal/workspace"
)

// ProgressFunc is called after each page of a PDF has been written.
type ProgressFunc func(page, total int)

// Summary describes a delivered request.
type Summary struct {
	SessionID string
	Pages     int
}

// Pipeline runs conversion requests. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	workspace  *workspace.Manager
	ingestor   *ingest.Ingestor
	dispatcher *convert.Dispatcher
	packager   *pack.Packager
	publisher  events.Publisher
	logger     *observability.Logger
}

// New assembles a pipeline from its stages.
func New(
	ws *workspace.Manager,
	ingestor *ingest.Ingestor,
	dispatcher *convert.Dispatcher,
	packager *pack.Packager,
	publisher events.Publisher,
	logger *observability.Logger,
) *Pipeline {
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &Pipeline{
		workspace:  ws,
		ingestor:   ingestor,
		dispatcher: dispatcher,
		packager:   packager,
		publisher:  publisher,
		logger:     logger,
	}
}

// ImagesToPDF converts files, ordered by manifest, into one PDF and hands it to d.
func (p *Pipeline) ImagesToPDF(ctx context.Context, files []domain.UploadedFile, manifest domain.OrderingManifest, d delivery.Deliverer) (Summary, error) {
	return p.run(ctx, domain.OpImagesToPDF, d, func(r *request) (*domain.ResultArtifact, error) {
		if err := r.advance(domain.StateIngesting); err != nil {
			return nil, err
		}
		paths, err := p.ingestor.Images(ctx, r.session, files, manifest)
		if err != nil {
			return nil, err
		}
		r.logger.Debug().Strs("inputs", paths).Msg("Inputs ingested")

		if err := r.advance(domain.StateConverting); err != nil {
			return nil, err
		}
		job, err := p.dispatcher.ImagesToPDF(ctx, r.session, paths)
		if err != nil {
			return nil, err
		}

		if err := r.advance(domain.StatePackaging); err != nil {
			return nil, err
		}
		return p.packager.PDF(job.OutputPath, len(paths))
	})
}

// PDFToImages renders every page of file as a JPEG, archives the pages and
// hands the archive to d. progress may be nil.
func (p *Pipeline) PDFToImages(ctx context.Context, file domain.UploadedFile, d delivery.Deliverer, progress ProgressFunc) (Summary, error) {
	return p.run(ctx, domain.OpPDFToImages, d, func(r *request) (*domain.ResultArtifact, error) {
		if err := r.advance(domain.StateIngesting); err != nil {
			return nil, err
		}
		input, err := p.ingestor.PDF(ctx, r.session, file)
		if err != nil {
			return nil, err
		}

		if err := r.advance(domain.StateConverting); err != nil {
			return nil, err
		}
		var pages []domain.PageImage
		job, _, err := p.dispatcher.PDFToImages(ctx, r.session, input, func(n, total int, img image.Image) error {
			page, err := p.packager.WritePage(r.session.OutputDir(), n, img)
			if err != nil {
				return err
			}
			pages = append(pages, page)
			if progress != nil {
				progress(n, total)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if err := r.advance(domain.StatePackaging); err != nil {
			return nil, err
		}
		return p.packager.Archive(ctx, job.OutputPath, pages)
	})
}

// run opens a session, drives it through build and delivery, and closes it
// on every exit path, including panics.
func (p *Pipeline) run(ctx context.Context, kind domain.OperationKind, d delivery.Deliverer, build func(*request) (*domain.ResultArtifact, error)) (summary Summary, err error) {
	session, err := p.workspace.Open(ctx)
	if err != nil {
		return Summary{}, err
	}

	r := &request{
		session: session,
		kind:    kind,
		state:   domain.StateOpened,
		started: time.Now(),
		logger:  p.logger.WithContext(ctx).WithSession(session.ID).WithOperation(string(kind)),
	}
	p.publish(ctx, events.Event{
		Type:      events.TypeSessionOpened,
		SessionID: session.ID,
		Operation: kind,
		Timestamp: r.started,
	})

	defer p.finish(ctx, r, &err)

	artifact, err := build(r)
	if err != nil {
		r.fail(err)
		return Summary{}, err
	}

	if err := r.advance(domain.StateDelivering); err != nil {
		return Summary{}, err
	}
	if err := d.Deliver(ctx, artifact); err != nil {
		return Summary{}, err
	}

	return Summary{SessionID: session.ID, Pages: artifact.Pages}, nil
}

// finish moves the request to CLOSED and removes its workspace. Removal
// failures are logged by the workspace manager and never replace err.
func (p *Pipeline) finish(ctx context.Context, r *request, errp *error) {
	err := *errp
	rec := recover()
	if rec != nil {
		err = fmt.Errorf("pipeline panic: %v", rec)
		r.logger.Error().Str("panic", fmt.Sprint(rec)).Msg("Request panicked")
		defer panic(rec)
	}

	last := r.state
	if err != nil && r.state != domain.StateFailed && domain.CanTransition(r.state, domain.StateFailed) {
		r.fail(err)
	}
	r.state = domain.StateClosed
	_ = p.workspace.Close(r.session)

	outcome := events.OutcomeFor(err)
	if err == nil && last != domain.StateDelivering {
		outcome = events.OutcomeError
	}
	duration := time.Since(r.started)

	var ev *observability.LogEvent
	if err != nil {
		ev = r.logger.Warn().Err(err)
	} else {
		ev = r.logger.Info()
	}
	ev.Str("state", string(last)).
		Str("outcome", outcome).
		Bool("panicked", rec != nil).
		Dur("duration", duration).
		Msg("Request closed")

	p.publish(ctx, events.Event{
		Type:      events.TypeSessionClosed,
		SessionID: r.session.ID,
		Operation: r.kind,
		State:     last,
		Outcome:   outcome,
		Duration:  duration,
		Timestamp: time.Now(),
	})
}

func (p *Pipeline) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.logger.Warn().Err(err).Str("event", e.Type).Str("session_id", e.SessionID).Msg("Failed to publish session event")
	}
}

// Workspace exposes the workspace manager for health checks and sweeping.
func (p *Pipeline) Workspace() *workspace.Manager {
	return p.workspace
}

// request tracks one session through the lifecycle state machine.
type request struct {
	session *domain.Session
	kind    domain.OperationKind
	state   domain.State
	started time.Time
	logger  *observability.Logger
}

func (r *request) advance(to domain.State) error {
	if !domain.CanTransition(r.state, to) {
		return fmt.Errorf("illegal state transition %s -> %s", r.state, to)
	}
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(to)).Msg("State transition")
	r.state = to
	return nil
}

func (r *request) fail(err error) {
	if !domain.CanTransition(r.state, domain.StateFailed) {
		return
	}
	r.logger.Debug().Str("from", string(r.state)).Err(err).Msg("Request failed")
	r.state = domain.StateFailed
}
