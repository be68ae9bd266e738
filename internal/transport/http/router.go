package http

import (
	"github.com/agora/backend/internal/config"
	"github.com/agora/backend/internal/core/services"
	"github.com/agora/backend/internal/infrastructure/balance"
	"github.com/agora/backend/internal/infrastructure/db"
	"github.com/agora/backend/internal/infrastructure/llm"
	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/agora/backend/internal/infrastructure/push"
	"github.com/agora/backend/internal/infrastructure/rates"
	"github.com/agora/backend/internal/infrastructure/relay"
	"github.com/agora/backend/internal/transport/http/handlers"
	httpmw "github.com/agora/backend/internal/transport/http/middleware"
	"github.com/agora/backend/internal/transport/ws"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
}

// Wiring is everything main still has to start and stop after the routes
// are registered.
type Wiring struct {
	Engine *services.Engine
	Rates  *services.RatesService
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) (*Wiring, error) {
	// Repositories
	taskRepo := db.NewTaskRepository(cfg.DB, cfg.Logger)
	usageRepo := db.NewUsageRepository(cfg.DB, cfg.Logger)
	knowledgeRepo := db.NewKnowledgeRepository(cfg.DB, cfg.Logger)
	settingRepo := db.NewSystemSettingRepository(cfg.DB, cfg.Logger)

	// External collaborators
	relayClient := relay.NewClient(cfg.Config.Relay, cfg.Logger)
	balanceClient := balance.NewClient(cfg.Config.Balance, cfg.Logger)
	notifier := push.NewNotifier(cfg.Config.Push, cfg.Logger)
	rateSource := rates.NewClient(cfg.Config.Rates, cfg.Logger)
	completer, err := llm.NewGeminiCompleter(cfg.Config.LLM, cfg.Logger)
	if err != nil {
		return nil, err
	}

	// Live connection hub
	hub := ws.NewHub(cfg.Logger)

	// Services
	ratesService := services.NewRatesService(settingRepo, rateSource, cfg.Logger, cfg.Config.Engine.RateRefreshInterval)
	enrichmentService := services.NewEnrichmentService(relayClient, balanceClient, cfg.Logger, cfg.Config.Engine.EnrichTimeout)
	reasoningService := services.NewReasoningService(completer, cfg.Logger, cfg.Config.LLM.PromptCostPerTok, cfg.Config.LLM.OutputCostPerTok)
	deliveryService := services.NewDeliveryService(hub, notifier, cfg.Logger)
	questionService := services.NewQuestionService(taskRepo, ratesService, cfg.Logger, cfg.Config.Engine.MaxRetries)

	engine := services.NewEngine(
		taskRepo,
		usageRepo,
		knowledgeRepo,
		enrichmentService,
		reasoningService,
		deliveryService,
		cfg.Logger,
		cfg.Config.Engine,
	)

	// Handlers
	questionHandler := handlers.NewQuestionHandler(questionService, cfg.Logger)
	usageHandler := handlers.NewUsageHandler(usageRepo, cfg.Logger)

	// Live delivery socket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:requesterId", websocket.New(hub.Handle))

	api := app.Group("/api/v1")

	questions := api.Group("/questions")
	questions.Post("/", questionHandler.Ask)
	questions.Get("/latest", questionHandler.Latest)

	usage := api.Group("/usage", httpmw.AdminAuth(cfg.Config))
	usage.Get("/", usageHandler.Totals)

	return &Wiring{Engine: engine, Rates: ratesService}, nil
}
