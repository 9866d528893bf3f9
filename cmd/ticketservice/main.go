package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"service-desk-bot/internal/integrations/paramstore"
	"service-desk-bot/internal/ticketservice"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	ticketTable := mustEnv("TICKET_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	secrets, err := paramstore.NewSecrets(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create secrets resolver", "err", err)
		os.Exit(1)
	}
	functionKey, err := secrets.Secret(ctx, "ticket-service")
	if err != nil {
		slog.Error("failed to resolve function key", "err", err)
		os.Exit(1)
	}
	store, err := ticketservice.NewStore(awsdynamodb.NewFromConfig(cfg), ticketTable)
	if err != nil {
		slog.Error("failed to create ticket store", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := ticketservice.NewHandler(store, functionKey, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
