// Package postingest notifies downstream subscribers of every per-item
// ingest outcome via an SNS topic. Delivery is best-effort: one failed
// notification never suppresses the others, and callers do not see
// individual failures.
package postingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/hala-systems/stac-ingest-service/internal/ingest"
)

// SNSAPI abstracts SNS operations for dependency inversion.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher publishes per-item ingest results to an SNS topic.
type Publisher struct {
	client   SNSAPI
	topicARN string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(client SNSAPI, topicARN string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// PublishResults sends one notification per result, concurrently, and waits
// for all of them. Message attributes carry the outcome and collection so
// subscribers can filter without parsing the body.
func (p *Publisher) PublishResults(ctx context.Context, results []ingest.ItemResult) {
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(result *ingest.ItemResult) {
			defer wg.Done()
			p.publishResult(ctx, result)
		}(&results[i])
	}
	wg.Wait()
}

func (p *Publisher) publishResult(ctx context.Context, result *ingest.ItemResult) {
	body, err := json.Marshal(result.Object)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal result for notification",
			slog.String("id", result.FailedID()),
			slog.String("error", err.Error()),
		)
		return
	}

	status := "success"
	attributes := map[string]types.MessageAttributeValue{}
	if result.Err != nil {
		status = "failed"
		attributes["error"] = stringAttribute(result.Err.Error())
	}
	attributes["status"] = stringAttribute(status)
	if collection := result.Object.Collection(); collection != "" {
		attributes["collection"] = stringAttribute(collection)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish ingest result",
			slog.String("id", result.FailedID()),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "Published ingest result",
		slog.String("id", result.FailedID()),
		slog.String("message_id", aws.ToString(out.MessageId)),
	)
}

func stringAttribute(value string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}
