package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kyc-flow/kyc_flow/internal/auth"
	"github.com/kyc-flow/kyc_flow/internal/bank"
	"github.com/kyc-flow/kyc_flow/internal/config"
	"github.com/kyc-flow/kyc_flow/internal/geo"
	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/middleware"
	"github.com/kyc-flow/kyc_flow/internal/notification"
	"github.com/kyc-flow/kyc_flow/internal/otp"
	"github.com/kyc-flow/kyc_flow/internal/pan"
)

// Deps aggregates shared dependencies required to wire routes. Only the
// store matching Cfg.StoreDriver needs to be set; Producer is optional.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Mongo    *mongo.Database
	Cache    *redis.Client
	Producer notification.Publisher
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	users, accounts, err := stores(d)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDevelopment() {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	locator := geo.NewLocator(geo.Options{
		PrimaryURL:       d.Cfg.GeoPrimaryURL,
		BackupURL:        d.Cfg.GeoBackupURL,
		Timeout:          d.Cfg.GeoTimeout,
		LocalCountry:     d.Cfg.GeoLocalCountry,
		LocalCountryCode: d.Cfg.GeoLocalCode,
		CacheTTL:         d.Cfg.GeoCacheTTL,
	}, d.Cache, d.Logger)

	identitySvc := identity.NewService(users, identity.NewBcryptHasher(d.Cfg.BcryptCost), d.Logger)

	var notifier notification.Notifier
	if d.Producer != nil {
		notifier = notification.NewNSQNotifier(d.Producer, d.Cfg.NSQOTPTopic, d.Logger)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger, d.Cfg.ExposeOTP())
	}

	pending := otp.NewRedisPendingStore(d.Cache)
	otpOpts := otp.Options{TTL: d.Cfg.OTPTTL}
	issuer := otp.NewIssuer(identitySvc, pending, notifier, otpOpts, d.Logger)
	finalizer := otp.NewFinalizer(identitySvc, pending, identitySvc.Hasher(), d.Logger)
	verifier := otp.NewVerifier(identitySvc, pending, finalizer, otpOpts, d.Logger)

	tokens, err := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	if err != nil {
		return err
	}

	otpHandler := otp.NewHandler(issuer, verifier, locator, d.Cfg.ExposeOTP())
	authHandler := auth.NewHandler(identitySvc, tokens, locator)
	identityHandler := identity.NewHandler(identitySvc, locator)
	panHandler := pan.NewHandler(pan.NewService(users, pan.NewRandomDecider(d.Cfg.PANApprovalRate), d.Logger))
	bankHandler := bank.NewHandler(bank.NewService(accounts, users, d.Logger))

	// API routes
	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAuthRoutes(api, AuthHandlers{OTP: otpHandler, SignIn: authHandler, Identity: identityHandler}, AuthLimiters{
		IssueOTP:  middleware.RateLimit(d.Cache, "otp", d.Cfg.OTPRateLimitPerMin, d.Logger),
		VerifyOTP: middleware.RateLimit(d.Cache, "otp-verify", d.Cfg.OTPVerifyRateLimitPerMin, d.Logger),
		SignIn:    middleware.RateLimit(d.Cache, "signin", d.Cfg.SignInRateLimitPerMin, d.Logger),
	})
	if d.Cfg.IsDevelopment() {
		api.Get("/debug/ip-analysis", geo.NewHandler(locator).IPAnalysis)
	}

	// Protected routes
	jwtmw := middleware.JWTAuth(tokens, users)
	RegisterAccountRoutes(api, jwtmw, identityHandler, panHandler, bankHandler,
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	return nil
}

func stores(d Deps) (identity.Repository, bank.Repository, error) {
	switch d.Cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if d.DB == nil {
			return nil, nil, fmt.Errorf("database is required when STORE_DRIVER=%s", d.Cfg.StoreDriver)
		}
		return identity.NewPostgresRepository(d.DB), bank.NewPostgresRepository(d.DB), nil
	case config.StoreDriverMongo:
		if d.Mongo == nil {
			return nil, nil, fmt.Errorf("mongo is required when STORE_DRIVER=%s", d.Cfg.StoreDriver)
		}
		return identity.NewMongoRepository(d.Mongo), bank.NewMongoRepository(d.Mongo), nil
	case config.StoreDriverMemory:
		return identity.NewMemoryRepository(), bank.NewMemoryRepository(), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", d.Cfg.StoreDriver)
	}
}
