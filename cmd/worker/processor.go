package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-lambda-go/events"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/aws"
	basketevents "github.com/imrishuroy/go-basket-client/internal/events"
	"github.com/imrishuroy/go-basket-client/internal/logging"
)

const (
	metricEvents    = "BasketEvents"
	metricItemCount = "BasketItemCount"
	dimensionType   = "EventType"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Processor turns basket events delivered by SQS into CloudWatch metrics.
type Processor struct {
	cw        aws.CloudWatchAPI
	namespace string
	log       *zap.Logger
}

// NewProcessor creates a worker processor publishing under namespace.
func NewProcessor(cw aws.CloudWatchAPI, namespace string, log *zap.Logger) *Processor {
	return &Processor{cw: cw, namespace: namespace, log: logging.OrNop(log)}
}

// typeStats aggregates one event type within a batch.
type typeStats struct {
	count     float64
	itemCount []float64
	last      time.Time
}

// Handle decodes every record of the batch and emits one metric set per
// event type. A malformed record fails the whole batch so SQS redelivers it
// and eventually moves it to the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	stats := map[string]*typeStats{}
	for _, rec := range ev.Records {
		var be basketevents.BasketEvent
		if err := json.Unmarshal([]byte(rec.Body), &be); err != nil {
			p.log.Error("invalid message body", zap.String("message_id", rec.MessageId), zap.Error(err))
			return fmt.Errorf("invalid message body: %w", err)
		}
		if be.Type == "" {
			return fmt.Errorf("message %s has no event type", rec.MessageId)
		}
		s, ok := stats[be.Type]
		if !ok {
			s = &typeStats{}
			stats[be.Type] = s
		}
		s.count++
		s.itemCount = append(s.itemCount, float64(be.ItemCount))
		if be.OccurredAt.After(s.last) {
			s.last = be.OccurredAt
		}
		p.log.Debug("basket event",
			zap.String("event_id", be.EventID),
			zap.String("event_type", be.Type),
			zap.Int64("basket_id", be.BasketID))
	}
	if len(stats) == 0 {
		return nil
	}

	_, err := p.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(p.namespace),
		MetricData: metricData(stats),
	})
	if err != nil {
		return fmt.Errorf("failed to put metric data: %w", err)
	}
	p.log.Info("published basket metrics", zap.Int("records", len(ev.Records)), zap.Int("event_types", len(stats)))
	return nil
}

func metricData(stats map[string]*typeStats) []cwtypes.MetricDatum {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([]cwtypes.MetricDatum, 0, 2*len(names))
	for _, name := range names {
		s := stats[name]
		dims := []cwtypes.Dimension{{Name: sdkaws.String(dimensionType), Value: sdkaws.String(name)}}
		ts := s.last
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: sdkaws.String(metricEvents),
				Dimensions: dims,
				Timestamp:  sdkaws.Time(ts),
				Unit:       cwtypes.StandardUnitCount,
				Value:      sdkaws.Float64(s.count),
			},
			cwtypes.MetricDatum{
				MetricName: sdkaws.String(metricItemCount),
				Dimensions: dims,
				Timestamp:  sdkaws.Time(ts),
				Unit:       cwtypes.StandardUnitCount,
				Values:     s.itemCount,
			})
	}
	return data
}
