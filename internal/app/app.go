package app

import (
	"errors"
	"time"

	"biblioteca/internal/handlers"
	"biblioteca/internal/middleware"
	"biblioteca/internal/models"
	"biblioteca/internal/repositories"
	"biblioteca/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options holds the collaborators and settings the application is built from.
type Options struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Revoker   services.TokenRevoker   // nil disables logout
	Publisher services.EventPublisher // nil disables loan events

	JWTSecret      string
	TokenTTL       time.Duration
	BlockReturned  bool
	LoginRateLimit int
	AccessLog      bool
	// AllowAdminRegistration lets POST /usuarios create admins.
	AllowAdminRegistration bool
}

// App is the assembled HTTP application and the services behind it.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService
	Users *services.UserService
	Books *services.BookService
	Loans *services.LoanService
}

// New wires repositories, services, handlers and middleware into a Fiber app.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}

	// --- Repositories ---
	bookRepo := repositories.NewGORMBookRepository(opts.DB)
	userRepo := repositories.NewGORMUserRepository(opts.DB)
	loanRepo := repositories.NewGORMLoanRepository(opts.DB)

	// --- Services ---
	authService := services.NewAuthService(userRepo, opts.JWTSecret, opts.TokenTTL, opts.Revoker, logger)
	userService := services.NewUserService(userRepo, logger,
		services.UserOptions{AllowAdminRegistration: opts.AllowAdminRegistration})
	bookService := services.NewBookService(bookRepo)
	loanService := services.NewLoanService(loanRepo, bookRepo, userRepo, opts.Publisher, logger,
		services.LoanOptions{BlockReturned: opts.BlockReturned})

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	bookHandler := handlers.NewBookHandler(bookService, logger)
	loanHandler := handlers.NewLoanHandler(loanService, logger)

	app := fiber.New(fiber.Config{
		AppName:               "biblioteca",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler:          errorHandler(logger),
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${respHeader:X-Request-Id} ${status} ${method} ${path} ${latency}\n",
		}))
	}

	auth := middleware.AuthRequired(authService, logger)
	admin := middleware.RequireRole(authService, models.RoleAdmin, logger)
	loginLimit := limiter.New(limiter.Config{
		Max:        opts.LoginRateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many login attempts, try again later",
			})
		},
	})

	// --- Routes ---
	authHandler.RegisterRoutes(app, loginLimit, auth)
	bookHandler.RegisterRoutes(app, auth, admin)
	userHandler.RegisterRoutes(app, auth, admin)
	loanHandler.RegisterRoutes(app, auth, admin)

	// --- Health Check Endpoint ---
	app.Get("/health", healthHandler(opts.DB, opts.Publisher != nil))

	return &App{
		Fiber: app,
		Auth:  authService,
		Users: userService,
		Books: bookService,
		Loans: loanService,
	}
}

func healthHandler(db *gorm.DB, eventsEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		database := "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status, code, database = "degraded", fiber.StatusServiceUnavailable, "down"
		}
		events := "disabled"
		if eventsEnabled {
			events = "enabled"
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"events":   events,
		})
	}
}

// errorHandler answers errors that escape the handlers, such as unknown
// routes and recovered panics, without exposing internal detail.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}
		logger.Error("unhandled error",
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
