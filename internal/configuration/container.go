package configuration

import (
	"Parley/internal/db"
	"Parley/internal/handler"
	"Parley/internal/hub"
	"Parley/internal/job"
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"Parley/internal/service"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	UserHandler handler.UserHandler
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Engine      *reactive.Engine
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	cron        *cron.Cron
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()

	var (
		userRepo     repo.UserRepository
		convRepo     repo.ConversationRepository
		messageRepo  repo.MessageRepository
		receiptRepo  repo.ReceiptRepository
		typingRepo   repo.TypingRepository
		mongoDB      *mongo.Database
	)

	switch config.Storage.Backend {
	case "memory":
		store := repo.NewMemoryStore()
		userRepo = store.Users()
		convRepo = store.Conversations()
		messageRepo = store.Messages()
		receiptRepo = store.Receipts()
		typingRepo = store.Typing()
	case "mongo":
		con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
		if err != nil {
			return nil, err
		}
		mongoDB = con

		users := db.NewRepository[model.User](con, config.Mongo.UsersCollection)
		conversations := db.NewRepository[model.Conversation](con, config.Mongo.ConversationsCollection)
		messages := db.NewRepository[model.Message](con, config.Mongo.MessagesCollection)
		receipts := db.NewRepository[model.ReadReceipt](con, config.Mongo.ReceiptsCollection)
		typing := db.NewRepository[model.TypingIndicator](con, config.Mongo.TypingCollection)

		if err := ensureIndexes(users, conversations, messages, receipts, typing); err != nil {
			return nil, err
		}

		userRepo = repo.NewUserRepository(users, logger)
		convRepo = repo.NewConversationRepository(conversations, logger)
		messageRepo = repo.NewMessageRepository(messages, logger)
		receiptRepo = repo.NewReceiptRepository(receipts, logger)
		typingRepo = repo.NewTypingRepository(typing, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	engine := reactive.NewEngine(logger)

	userService := service.NewUserService(userRepo, engine, logger)
	presenceService := service.NewPresenceService(userRepo, engine, logger)
	convService := service.NewConversationService(convRepo, messageRepo, receiptRepo, userRepo, engine, logger)
	messageService := service.NewMessageService(messageRepo, convRepo, engine, logger)
	typingService := service.NewTypingService(typingRepo, userRepo, engine, logger)

	engine.SetExecutor(service.NewQueryExecutor(userService, convService, messageService, typingService))

	h := hub.NewHub(engine, hub.Services{
		Users:         userService,
		Conversations: convService,
		Messages:      messageService,
		Presence:      presenceService,
		Typing:        typingService,
	}, config.Server.AllowedOrigins)

	userHandler := handler.NewUserHandler(userService)
	chatHandler := handler.NewChatHandler(convService, messageService)

	c := cron.New()
	sweeper := job.NewTypingSweeper(typingService, logger)
	if _, err := c.AddFunc(config.Jobs.TypingSweepSpec, sweeper.Run); err != nil {
		return nil, fmt.Errorf("invalid typing sweep spec: %w", err)
	}
	c.Start()

	return &Container{
		UserHandler: userHandler,
		ChatHandler: chatHandler,
		Hub:         h,
		Engine:      engine,
		Config:      *config,
		Logger:      logger,
		cron:        c,
		mongoClient: mongoDB,
	}, nil
}

func ensureIndexes(
	users *db.Repository[model.User],
	conversations *db.Repository[model.Conversation],
	messages *db.Repository[model.Message],
	receipts *db.Repository[model.ReadReceipt],
	typing *db.Repository[model.TypingIndicator],
) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := users.EnsureIndex(ctx, bson.D{{Key: "user_id", Value: 1}}, true); err != nil {
		return err
	}
	if err := conversations.EnsureIndex(ctx, bson.D{{Key: "pair_key", Value: 1}}, true); err != nil {
		return err
	}
	if err := messages.EnsureIndex(ctx, bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}, false); err != nil {
		return err
	}
	if err := receipts.EnsureIndex(ctx, bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}}, true); err != nil {
		return err
	}
	if err := typing.EnsureIndex(ctx, bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}}, true); err != nil {
		return err
	}
	return nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	if c.cron != nil {
		c.cron.Stop()
	}

	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Engine != nil {
		c.Engine.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
