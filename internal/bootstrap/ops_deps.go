package bootstrap

import (
	"context"
	"os"
	"strings"
	"time"

	"bizops_server/adapter/out/crm"
	"bizops_server/adapter/out/graph"
	"bizops_server/adapter/out/mailbox"
	"bizops_server/adapter/out/mongodb"
	"bizops_server/adapter/out/notify"
	"bizops_server/adapter/out/persistence"
	"bizops_server/config"
	"bizops_server/core/agent/llm"
	"bizops_server/core/port/out"
	"bizops_server/core/service/classify"
	"bizops_server/core/service/crmsync"
	"bizops_server/core/service/overrides"
	"bizops_server/core/service/remediation"
	"bizops_server/core/service/retainer"
	"bizops_server/core/service/workitem"
	"bizops_server/infra/database"
	"bizops_server/pkg/cache"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/metrics"
	"bizops_server/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies holds the wired adapters and services.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	// Repositories
	MessageRepo     out.MessageRepository
	RuleRepo        out.RuleRepository
	FolderMapRepo   out.FolderMapRepository
	ClientRepo      out.ClientRepository
	AuditRepo       out.AuditRepository
	TokenRepo       out.TokenRepository
	SecretRepo      out.SecretRepository
	CRMCacheRepo    out.CRMCacheRepository
	SyncStateRepo   out.SyncStateRepository
	WorkItemRepo    out.WorkItemRepository
	RetainerRepo    out.RetainerRepository
	RemediationRepo out.RemediationLogRepository
	BodyArchive     out.BodyArchive

	// Outbound adapters
	CRM      out.CRM
	Mailbox  out.Mailbox
	Notifier out.Notifier
	Graph    out.AssociationGraph
	AI       out.AIClassifier

	// Services
	ClassifyService    *classify.Service
	OverrideService    *overrides.Service
	SyncService        *crmsync.Service
	RemediationService *remediation.Service
	WorkItemService    *workitem.Service
	RetainerService    *retainer.Service

	// Observability
	Metrics *metrics.Registry
}

// NewDependencies wires the dependency graph. The returned cleanup closes
// every opened connection in reverse order.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config:  cfg,
		Metrics: metrics.NewRegistry(),
	}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool for health/stats)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx over the pgx stdlib driver for the adapters)
	// simple_protocol avoids prepared statement conflicts behind PgBouncer
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis (snapshot cache + CRM rate limiter; optional)
	var snapshotCache *cache.RedisCache
	var crmLimiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			snapshotCache = cache.NewRedisCache(redisClient)
			crmLimiter = ratelimit.NewLimiter(redisClient, "hubspot", cfg.HubSpotRatePerSec, time.Second)
		}
	}

	// MongoDB (body archive; optional)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			archive := mongodb.NewBodyArchiveAdapter(
				mongoClient.Database(cfg.MongoDBName), 90*24*time.Hour)
			if err := archive.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure Mongo indexes: %v", err)
			}
			deps.BodyArchive = archive
		}
	}

	// Neo4j (association graph; optional)
	if cfg.Neo4jURL != "" {
		neo4jDriver, err := graph.NewDriver(cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			logger.Warn("Neo4j connection failed: %v", err)
		} else {
			deps.Neo4j = neo4jDriver
			cleanups = append(cleanups, func() {
				neo4jDriver.Close(context.Background())
			})

			assocAdapter := graph.NewAssociationAdapter(neo4jDriver, "neo4j")
			if err := assocAdapter.EnsureConstraints(context.Background()); err != nil {
				logger.Warn("Failed to ensure Neo4j constraints: %v", err)
			}
			deps.Graph = assocAdapter
		}
	}

	// Repositories
	deps.MessageRepo = persistence.NewMessageAdapter(sqlDB)
	deps.RuleRepo = persistence.NewRuleAdapter(sqlDB)
	deps.FolderMapRepo = persistence.NewFolderMapAdapter(sqlDB)
	deps.ClientRepo = persistence.NewClientAdapter(sqlDB)
	deps.AuditRepo = persistence.NewAuditAdapter(sqlDB)
	deps.TokenRepo = persistence.NewTokenAdapter(sqlDB)
	deps.SecretRepo = persistence.NewSecretAdapter(sqlDB)
	deps.CRMCacheRepo = persistence.NewCRMCacheAdapter(sqlDB)
	deps.SyncStateRepo = persistence.NewSyncStateAdapter(sqlDB)
	deps.WorkItemRepo = persistence.NewWorkItemAdapter(sqlDB)
	deps.RetainerRepo = persistence.NewRetainerAdapter(sqlDB)
	deps.RemediationRepo = persistence.NewRemediationLogAdapter(sqlDB)

	// HubSpot
	hubspotToken := cfg.HubSpotToken
	if hubspotToken == "" {
		if v, err := deps.SecretRepo.Get(context.Background(), "hubspot_token"); err == nil {
			hubspotToken = v
		}
	}
	deps.CRM = crm.NewHubSpotAdapter(&crm.Config{AccessToken: hubspotToken})

	// Microsoft Graph mailbox
	deps.Mailbox = mailbox.NewGraphAdapter(&mailbox.GraphConfig{
		ClientID:     cfg.MSClientID,
		ClientSecret: cfg.MSClientSecret,
		TenantID:     cfg.MSTenantID,
		Mailbox:      cfg.MailboxAddress,
	}, deps.TokenRepo)

	// Slack
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	deps.Notifier = notify.NewSlackAdapter(cfg.SlackWebhookURL, zlog)

	// LLM classifier
	llmClient := llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	deps.AI = llm.NewEmailClassifier(llmClient)

	// Services
	snapshotLoader := classify.NewSnapshotLoader(
		deps.RuleRepo,
		deps.FolderMapRepo,
		deps.ClientRepo,
		snapshotCache,
		cfg.SnapshotTTL,
		cfg.HubSpotCustomerMarker,
	)

	deps.ClassifyService = classify.NewService(
		classify.Config{
			BatchSize:            cfg.BatchSize,
			LearnThresholdBatch:  cfg.LearnThresholdBatch,
			LearnThresholdSingle: cfg.LearnThresholdSingle,
			ThreadConfidence:     cfg.ThreadConfidence,
		},
		snapshotLoader,
		deps.MessageRepo,
		deps.RuleRepo,
		deps.CRM,
		deps.AI,
		deps.Mailbox,
		deps.Notifier,
		deps.AuditRepo,
		deps.Metrics,
	)

	deps.OverrideService = overrides.NewService(
		overrides.Policy{
			LookbackHours:      cfg.OverrideLookbackHours,
			NoLearnFolders:     cfg.OverrideNoLearnFolders,
			DeactivateExisting: cfg.OverrideDeactivate,
		},
		deps.MessageRepo,
		deps.RuleRepo,
		deps.FolderMapRepo,
		deps.Mailbox,
		deps.AuditRepo,
	)

	deps.SyncService = crmsync.NewService(
		crmsync.Config{PageLimit: cfg.HubSpotPageLimit},
		deps.CRM,
		deps.CRMCacheRepo,
		deps.SyncStateRepo,
		deps.Graph,
		deps.AuditRepo,
		crmLimiter,
	)

	deps.RemediationService = remediation.NewService(
		deps.CRM,
		deps.CRMCacheRepo,
		deps.Graph,
		deps.RemediationRepo,
		deps.AuditRepo,
	)

	deps.WorkItemService = workitem.NewService(
		deps.WorkItemRepo,
		deps.CRM,
		deps.CRMCacheRepo,
		deps.Graph,
		deps.ClientRepo,
		deps.AuditRepo,
	)

	deps.RetainerService = retainer.NewService(
		deps.RetainerRepo,
		deps.ClientRepo,
		deps.CRM,
		deps.WorkItemRepo,
		deps.AuditRepo,
	)

	logger.Info("dependency graph initialized")

	return deps, cleanup, nil
}
