package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/getsum-node/internal/sum"
	"github.com/angelmondragon/getsum-node/pkg/enums"
	pkgerrors "github.com/angelmondragon/getsum-node/pkg/errors"
	"github.com/angelmondragon/getsum-node/pkg/instance"
	"github.com/angelmondragon/getsum-node/pkg/logger"
	"github.com/angelmondragon/getsum-node/pkg/message"
	"github.com/angelmondragon/getsum-node/pkg/metrics"
)

const (
	consumerName = "getsum"
	tracerName   = "github.com/angelmondragon/getsum-node/internal/worker"

	outcomeInvalid = "invalid_envelope"
)

// Handler maps a pipeline message to a routing decision.
type Handler interface {
	Handle(ctx context.Context, msg message.Message) sum.Decision
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, messageID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, messageID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Subscription     receiver
	Handler          Handler
	Manager          idempotencyChecker
	PublisherFactory publisherFactory
	SuccessTopic     string
	FailureTopic     string
	Metrics          *metrics.TransformMetrics
	Logger           *logger.Logger
	Tracer           trace.Tracer
}

// Service consumes pipeline messages from Pub/Sub, runs the sum node and
// forwards each result on the topic of its relation.
type Service struct {
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	publishers   map[enums.RelationType]publisher
	metrics      *metrics.TransformMetrics
	logg         *logger.Logger
	tracer       trace.Tracer
	instanceID   string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscription == nil {
		return nil, errors.New("input subscription is required")
	}
	if params.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if params.Manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if params.PublisherFactory == nil {
		return nil, errors.New("publisher factory is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	publishers := map[enums.RelationType]publisher{}
	for relation, topic := range map[enums.RelationType]string{
		enums.RelationSuccess: params.SuccessTopic,
		enums.RelationFailure: params.FailureTopic,
	} {
		pub := params.PublisherFactory(topic)
		if pub == nil {
			return nil, fmt.Errorf("publisher for %s topic %q not available", relation, topic)
		}
		publishers[relation] = pub
	}

	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		subscription: params.Subscription,
		handler:      params.Handler,
		manager:      params.Manager,
		publishers:   publishers,
		metrics:      params.Metrics,
		logg:         params.Logger,
		tracer:       tracer,
		instanceID:   instance.GetID(),
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes and stops the relation publishers.
func (s *Service) Close() {
	for _, pub := range s.publishers {
		pub.Stop()
	}
}

func (s *Service) process(ctx context.Context, psMsg *gcppubsub.Message) processResult {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "getsum.process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	fields := map[string]any{
		"pubsub_message_id": psMsg.ID,
	}
	logCtx := s.logg.WithFields(ctx, fields)

	msg, err := message.Decode(psMsg.Data)
	if err != nil {
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
		s.logg.Warn(logCtx, "invalid pipeline message")
		span.SetStatus(codes.Error, "invalid envelope")
		s.metrics.IncOutcome(outcomeInvalid, "")
		return processResult{}
	}
	logCtx = s.logg.WithFields(s.logg.WithMessageID(logCtx, msg.ID.String()), map[string]any{
		"message_type":    msg.Type,
		"originator_type": msg.Originator.EntityType,
		"originator_id":   msg.Originator.ID.String(),
	})
	span.SetAttributes(
		attribute.String("getsum.message_id", msg.ID.String()),
		attribute.String("getsum.message_type", msg.Type),
	)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, consumerName, msg.ID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "idempotency check failed")
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "message already processed")
		return processResult{}
	}

	decision := s.handler.Handle(logCtx, msg)
	outcome := string(decision.Outcome)
	relation := string(decision.Relation)
	span.SetAttributes(
		attribute.String("getsum.outcome", outcome),
		attribute.String("getsum.relation", relation),
	)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"outcome":  outcome,
		"relation": relation,
	})
	if decision.Err != nil {
		logCtx = s.logg.WithFields(logCtx, pkgerrors.Dump(decision.Err).Fields())
	}

	if err := s.publish(logCtx, msg, decision); err != nil {
		s.logg.Error(logCtx, "publish failed", err)
		s.metrics.IncPublishFailure(relation)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		if delErr := s.manager.Delete(logCtx, consumerName, msg.ID); delErr != nil {
			s.logg.Error(logCtx, "idempotency rollback failed", delErr)
		}
		return processResult{nack: true}
	}

	s.metrics.IncOutcome(outcome, relation)
	s.metrics.ObserveDuration(outcome, time.Since(start))
	if decision.Relation == enums.RelationFailure {
		s.logg.Warn(logCtx, "message routed to failure")
	} else {
		s.logg.Info(logCtx, "message routed to success")
	}
	return processResult{}
}

func (s *Service) publish(ctx context.Context, source message.Message, decision sum.Decision) error {
	pub, ok := s.publishers[decision.Relation]
	if !ok {
		return fmt.Errorf("no publisher for relation %q", decision.Relation)
	}
	data, err := message.Encode(decision.Message)
	if err != nil {
		return err
	}
	res := pub.Publish(ctx, &gcppubsub.Message{
		Data:       data,
		Attributes: s.attributes(source, decision),
	})
	if res == nil {
		return errors.New("publisher returned no result")
	}
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", decision.Relation, err)
	}
	return nil
}

func (s *Service) attributes(source message.Message, decision sum.Decision) map[string]string {
	out := decision.Message
	attrs := map[string]string{
		"relation":          string(decision.Relation),
		"outcome":           string(decision.Outcome),
		"message_type":      out.Type,
		"originator_type":   out.Originator.EntityType,
		"originator_id":     out.Originator.ID.String(),
		"source_message_id": source.ID.String(),
		"instance_id":       s.instanceID,
	}
	if decision.Err != nil {
		attrs["error"] = failureText(decision.Err)
		attrs["error_code"] = string(pkgerrors.CodeOf(decision.Err))
	}
	return attrs
}

// failureText is the error attached to failure-routed messages: the decode
// cause for bad payloads, the node message otherwise.
func failureText(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err.Error()
	}
	if typed.Code() == pkgerrors.CodeDecode {
		if cause := typed.Unwrap(); cause != nil {
			return cause.Error()
		}
	}
	return typed.Message()
}
