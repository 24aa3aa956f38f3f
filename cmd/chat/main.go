package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"docchat-agent/handler"
	"docchat-agent/internal/domain"
	"docchat-agent/internal/integrations/openai"
	"docchat-agent/internal/integrations/paramstore"
	"docchat-agent/internal/repository"
	"docchat-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	byUserIndex := mustEnv("BY_USER_INDEX")
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
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable, byUserIndex)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	memories := func(userID, sessionID string) domain.ConversationMemory {
		return repository.NewSessionStore(store, userID, sessionID)
	}
	chatService, err := usecase.NewChatService(store, store, openaiClient, memories)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	sessionService, err := usecase.NewSessionService(store)
	if err != nil {
		slog.Error("failed to create session service", "err", err)
		os.Exit(1)
	}
	documentService, err := usecase.NewDocumentService(store, openaiClient)
	if err != nil {
		slog.Error("failed to create document service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	auth, err := handler.NewAuthenticator(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create authenticator", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewAPIHandler(auth, chatService, sessionService, documentService)
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
