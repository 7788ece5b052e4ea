// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-media-combinations/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-combinations/internal/core/model"
)

// PubSubListener pulls messages from one subscription and runs a command for
// each. The raw payload is handed to the command as a string in cor.CtxIn.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
	timeout      time.Duration
	done         chan struct{}
}

func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	timeout time.Duration,
	command cor.Command,
) (*PubSubListener, error) {
	if subscriptionID == "" {
		return nil, errors.New("subscription id is required")
	}
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
		timeout:      timeout,
		done:         make(chan struct{}),
	}, nil
}

// SetCommand sets the command once; later calls are ignored.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Done is closed when Receive returns after Listen.
func (m *PubSubListener) Done() <-chan struct{} {
	return m.done
}

// Listen starts receiving in the background until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())

	go func() {
		defer close(m.done)
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if m.timeout > 0 {
				var cancel context.CancelFunc
				msgCtx, cancel = context.WithTimeout(msgCtx, m.timeout)
				defer cancel()
			}
			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("message.id", msg.ID))

			chainCtx := cor.NewBaseContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))
			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
			for name, e := range chainCtx.GetErrors() {
				slog.ErrorContext(spanCtx, "error executing chain", "command", name, "error", e)
			}
			if ShouldAck(chainCtx) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil {
			slog.Error("error receiving messages", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

// ShouldAck decides the fate of a processed message. Successful runs are
// acknowledged, and so are runs whose every error is an input error, since
// redelivering a malformed request cannot succeed. Anything else is left for
// redelivery (and eventually the subscription's dead letter topic).
func ShouldAck(chainCtx cor.Context) bool {
	for _, err := range chainCtx.GetErrors() {
		if model.Classify(err) != model.ClassInput {
			return false
		}
	}
	return true
}

// TopicPublisher publishes to one topic and waits for the server ack.
type TopicPublisher struct {
	topic *pubsub.Topic
}

func NewTopicPublisher(client *pubsub.Client, topicID string) *TopicPublisher {
	return &TopicPublisher{topic: client.Topic(topicID)}
}

func (p *TopicPublisher) Publish(ctx context.Context, data []byte) error {
	_, err := p.topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
	return err
}

// Stop flushes pending messages.
func (p *TopicPublisher) Stop() {
	p.topic.Stop()
}
