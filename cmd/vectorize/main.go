package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"docchat-agent/handler"
	"docchat-agent/internal/integrations/openai"
	"docchat-agent/internal/integrations/paramstore"
	"docchat-agent/internal/integrations/storage"
	"docchat-agent/internal/repository"
	"docchat-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	byUserIndex := mustEnv("BY_USER_INDEX")
	paramPrefix := mustEnv("PARAM_PREFIX")
	pollInterval := envInt("POLL_INTERVAL_SECONDS", 1)
	pollCeiling := envInt("POLL_CEILING_SECONDS", 30)

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
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable, byUserIndex)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	bucketClient, err := storage.New(awss3.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create storage client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Pipeline ----
	pipeline, err := usecase.NewVectorizeService(bucketClient, openaiClient, store,
		usecase.WithPollTiming(time.Duration(pollInterval)*time.Second, time.Duration(pollCeiling)*time.Second),
	)
	if err != nil {
		slog.Error("failed to create vectorize service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewVectorizeHandler(pipeline)
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

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
