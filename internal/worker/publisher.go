package worker

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// NewPublisherFactory resolves relation topics to Pub/Sub publishers.
func NewPublisherFactory(source publisherSource) publisherFactory {
	return func(topic string) publisher {
		if source == nil {
			return nil
		}
		return newGCPPublisher(source.Publisher(topic))
	}
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

func (p *gcpPublisher) Stop() {
	if p == nil || p.Publisher == nil {
		return
	}
	p.Publisher.Stop()
}
