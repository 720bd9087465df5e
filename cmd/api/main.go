package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-basket-client/internal/aws"
	"github.com/imrishuroy/go-basket-client/internal/config"
	basketevents "github.com/imrishuroy/go-basket-client/internal/events"
	"github.com/imrishuroy/go-basket-client/internal/handlers"
	"github.com/imrishuroy/go-basket-client/internal/idempotency"
	"github.com/imrishuroy/go-basket-client/internal/logging"
	"github.com/imrishuroy/go-basket-client/internal/rabbitmq"
	"github.com/imrishuroy/go-basket-client/internal/store"
)

// app holds what main must release on exit.
type app struct {
	router  *gin.Engine
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	catalog, err := cfg.ProductCatalog()
	if err != nil {
		return nil, err
	}
	a := &app{}

	var clients *aws.AWSClients
	awsClients := func() (*aws.AWSClients, error) {
		if clients == nil {
			c, err := aws.NewAWSClients(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to init aws clients: %w", err)
			}
			clients = c
		}
		return clients, nil
	}

	hc := handlers.HandlerConfig{
		Catalog:            catalog,
		PreserveReferences: cfg.Server.PreserveReferences,
		Logger:             logger,
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		hc.Baskets = store.NewMemory()
		hc.Idempotency = idempotency.NewMemory(cfg.GetIdempotencyTTL())
	default:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		hc.Baskets = store.NewStore(c.DynamoDB, cfg.Storage.BasketsTable)
		hc.Idempotency = idempotency.NewStore(c.DynamoDB, cfg.Storage.IdempotencyTable, cfg.GetIdempotencyTTL())
	}

	switch cfg.Events.Backend {
	case config.BackendSQS:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		hc.Publisher = aws.NewPublisher(c.SQS, cfg.Events.QueueURL)
	case config.BackendAMQP:
		pool, err := rabbitmq.NewChannelPool(cfg.Events.RabbitMQURL, cfg.Events.RabbitMQQueue, cfg.Events.ChannelPoolSize, logger)
		if err != nil {
			return nil, err
		}
		p := rabbitmq.NewPublisher(pool, cfg.Events.RabbitMQQueue)
		a.closers = append(a.closers, p.Close)
		hc.Publisher = p
	default:
		hc.Publisher = basketevents.Nop{}
	}

	logger.Info("basket api configured",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.Int("catalog_products", len(catalog)),
		zap.Bool("preserve_references", cfg.Server.PreserveReferences))

	a.router = handlers.NewRouter(hc)
	return a, nil
}

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

	a, err := setup(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up basket api", zap.Error(err))
	}
	defer a.close()

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":" + cfg.Server.Port
		logger.Info("running local server", zap.String("addr", addr))
		if err := a.router.Run(addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(a.router)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
