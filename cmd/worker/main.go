package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/aws"
	"github.com/imrishuroy/go-basket-client/internal/config"
	"github.com/imrishuroy/go-basket-client/internal/logging"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	p := NewProcessor(clients.CloudWatch, cfg.Metrics.Namespace, logger)

	// If RUN_LOCAL=true, process a single simulated SQS event and exit.
	if os.Getenv("RUN_LOCAL") == "true" {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"event_id":"local-1","event_type":"item_added","basket_id":1,"product_id":1,"quantity":1,"item_count":1}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: body}}}
		if err := p.Handle(context.Background(), event); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(p.Handle)
}
