package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"book-sms-agent/handler"
	"book-sms-agent/internal/config"
	"book-sms-agent/internal/conversation"
	"book-sms-agent/internal/handlers"
	"book-sms-agent/internal/integrations/openai"
	"book-sms-agent/internal/integrations/paramstore"
	"book-sms-agent/internal/intent"
	"book-sms-agent/internal/repository"
	"book-sms-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(logger, "failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal(logger, "failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.BooksTable)
	if err != nil {
		fatal(logger, "failed to create book store", err)
	}

	var ai intent.AIClient
	if cfg.AIEnabled {
		openaiClient, err := openai.NewClient(ssmClient, cfg.ParamPrefix,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithModel(cfg.OpenAIModel),
		)
		if err != nil {
			fatal(logger, "failed to create OpenAI client", err)
		}
		ai = openaiClient
	}

	// ---- Pipeline ----
	classifier, err := intent.NewAIClassifier(intent.NewPatternClassifier(), ai, cfg.AIConfidenceThreshold, cfg.MaxMessageLength, logger)
	if err != nil {
		fatal(logger, "failed to create classifier", err)
	}
	registry, err := handlers.NewRegistry(handlers.Deps{
		Books:    store,
		Logger:   logger,
		PageSize: cfg.ResultsPageSize,
	})
	if err != nil {
		fatal(logger, "failed to create handler registry", err)
	}
	svc, err := usecase.NewMessageService(
		classifier,
		registry,
		conversation.NewStore(cfg.ContextTTL),
		store,
		logger,
		cfg.MaxMessageLength,
	)
	if err != nil {
		fatal(logger, "failed to create message service", err)
	}

	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		fatal(logger, "failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
