package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/wrrk/support/internal/ai"
	httptransport "github.com/wrrk/support/internal/api/http"
	"github.com/wrrk/support/internal/api/http/handlers"
	"github.com/wrrk/support/internal/auth"
	"github.com/wrrk/support/internal/config"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/mail"
	"github.com/wrrk/support/internal/observability"
	"github.com/wrrk/support/internal/persistence"
	"github.com/wrrk/support/internal/repository"
	"github.com/wrrk/support/internal/rotation"
	"github.com/wrrk/support/internal/service"
	"github.com/wrrk/support/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	orgRepo := repository.NewOrganizationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	invitationRepo := repository.NewInvitationRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var subtreeCache hierarchy.Cache
	var cursor rotation.CursorStore = rotation.NewMemoryCursor()
	var notifier events.Notifier = events.NopNotifier{}
	if client := redis.Client; client != nil {
		subtreeCache = hierarchy.NewRedisCache(client)
		cursor = rotation.NewRedisCursor(client)
		notifier = events.NewRedisNotifier(client, logger)
	}
	resolver := hierarchy.NewResolver(userRepo, subtreeCache)

	var mailer mail.Mailer = mail.NopMailer{}
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens, userRepo)

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:       userRepo,
		OrgRepo:        orgRepo,
		InvitationRepo: invitationRepo,
		AuditRepo:      auditRepo,
		Resolver:       resolver,
		Cache:          subtreeCache,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Config:         cfg.Auth,
	})
	customerService := service.NewCustomerService(customerRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		OrgRepo:      orgRepo,
		CustomerRepo: customerRepo,
		AuditRepo:    auditRepo,
		Resolver:     resolver,
		Dispatcher:   dispatcher,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		AuditRepo:  auditRepo,
		Resolver:   resolver,
		Cursor:     cursor,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		CustomerRepo: customerRepo,
		Resolver:     resolver,
		Mailer:       mailer,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	triageService := service.NewTriageService(ai.NewClient(cfg.AI), cfg.AI, logger, metrics)
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		CustomerRepo: customerRepo,
		TicketRepo:   ticketRepo,
		OrgRepo:      orgRepo,
		MessageRepo:  messageRepo,
		Triage:       triageService,
		Allocator:    assignmentService,
		Mailer:       mailer,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(dispatcher, notifier, logger)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService, messageService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Intake:         handlers.NewIntakeHandler(intakeService, messageService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
