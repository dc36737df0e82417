package triggers

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/campaign-engine/internal/repositories/mongodb"
	"github.com/learnloop/campaign-engine/internal/services"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

const (
	minRestartDelay = time.Second
	maxRestartDelay = time.Minute
)

// Dispatcher watches the campaigns and enrollments collections and calls the
// automation services for every relevant write
type Dispatcher struct {
	db         *mongo.Database
	enrollment services.EnrollmentService
	completion services.CompletionService
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(db *mongo.Database, enrollment services.EnrollmentService, completion services.CompletionService) *Dispatcher {
	return &Dispatcher{
		db:         db,
		enrollment: enrollment,
		completion: completion,
	}
}

// Run blocks until ctx is cancelled. A broken stream is reopened from its
// last resume token with exponential delay.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.watch(ctx, mongodb.CampaignsCollection, d.HandleCampaignEvent)
	})
	g.Go(func() error {
		return d.watch(ctx, mongodb.EnrollmentsCollection, d.HandleEnrollmentEvent)
	})
	return g.Wait()
}

// HandleCampaignEvent runs auto-enroll for a publish transition
func (d *Dispatcher) HandleCampaignEvent(ctx context.Context, event ChangeEvent) {
	before, after, ok, err := CampaignChange(event)
	if err != nil {
		slog.Error("failed to decode campaign change", "documentKey", event.DocumentKey, "error", err)
		return
	}
	if !ok {
		return
	}
	d.enrollment.OnCampaignWrite(ctx, before, after)
}

// HandleEnrollmentEvent runs the completion check for a module progress write
func (d *Dispatcher) HandleEnrollmentEvent(ctx context.Context, event ChangeEvent) {
	campaignID, userID, ok, err := ProgressChange(event)
	if err != nil {
		slog.Error("failed to decode enrollment change", "documentKey", event.DocumentKey, "error", err)
		return
	}
	if !ok {
		return
	}
	d.completion.OnProgressWrite(ctx, campaignID, userID)
}

func (d *Dispatcher) watch(ctx context.Context, collection string, handle func(context.Context, ChangeEvent)) error {
	var resumeToken bson.Raw
	delay := minRestartDelay

	for {
		token, err := d.stream(ctx, collection, resumeToken, handle)
		if token != nil {
			resumeToken = token
			delay = minRestartDelay
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("change stream stopped, restarting", "collection", collection, "error", err, "delay", delay.String())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRestartDelay {
			delay = maxRestartDelay
		}
	}
}

// stream consumes one change stream until it fails and returns the last resume token seen
func (d *Dispatcher) stream(ctx context.Context, collection string, resumeAfter bson.Raw, handle func(context.Context, ChangeEvent)) (bson.Raw, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}}}}},
	}
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}

	cs, err := d.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	defer cs.Close(context.Background())
	slog.Info("watching collection", "collection", collection)

	var last bson.Raw
	for cs.Next(ctx) {
		var event ChangeEvent
		if err := cs.Decode(&event); err != nil {
			slog.Error("failed to decode change event", "collection", collection, "error", err)
		} else {
			handle(ctx, event)
		}
		last = append(bson.Raw(nil), cs.ResumeToken()...)
	}
	if err := cs.Err(); err != nil {
		return last, err
	}
	return last, errors.New("change stream closed")
}
