package router

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"rescueboard/internal/auth"
	"rescueboard/internal/config"
	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/handler"
	"rescueboard/internal/logging"
	"rescueboard/internal/metrics"
	"rescueboard/internal/service"
	"rescueboard/internal/storage"
	"rescueboard/internal/validation"
)

// Deps carries what the router needs to build middleware and mount handlers.
type Deps struct {
	Config      *config.Config
	Logger      *slog.Logger
	Validator   *validation.Validator
	JWTService  *auth.JWTService
	AuthService service.AuthService
	AuthHandler *handler.AuthHandler
	FoodHandler *handler.FoodHandler
	// LocalStore is served under /storage when images are kept on disk.
	LocalStore *storage.LocalStore
}

// Register wires routes and middleware.
func Register(e *echo.Echo, d Deps) {
	cfg := d.Config

	e.Validator = &CustomValidator{validator: d.Validator}
	e.HTTPErrorHandler = errorHandler(d.Logger)

	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger(d.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit:   "6M",
		Skipper: isFoodUpload,
	}))
	e.Use(metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if d.LocalStore != nil {
		files := http.FileServer(afero.NewHttpFs(d.LocalStore.Fs()))
		e.GET("/storage/*", echo.WrapHandler(http.StripPrefix("/storage", files)))
	}

	api := e.Group("/api")

	// Public routes
	throttle := authRateLimiter(cfg.AuthRateLimit)
	api.POST("/register", d.AuthHandler.Register, throttle)
	api.POST("/login", d.AuthHandler.Login, throttle)

	// Secured routes (require a live session)
	secured := api.Group("", authenticate(d.JWTService, d.AuthService))

	secured.POST("/logout", d.AuthHandler.Logout)
	secured.GET("/user", d.AuthHandler.Me)
	secured.POST("/update-fcm", d.AuthHandler.UpdateFCM)

	secured.GET("/foods", d.FoodHandler.Index)
	secured.GET("/foods/all", d.FoodHandler.All)
	secured.GET("/foods/stats", d.FoodHandler.Stats)
	secured.GET("/my-foods", d.FoodHandler.Mine)
	secured.POST("/foods", d.FoodHandler.Create, uploadLimit(uploadBodyLimit))
	secured.POST("/foods/:id/claim", d.FoodHandler.Claim)
	secured.DELETE("/foods/:id", d.FoodHandler.Delete)
}

// uploadBodyLimit bounds multipart food uploads. It sits well above
// service.MaxImageSize so oversized photos are rejected with the field error.
const uploadBodyLimit = "64M"

func isFoodUpload(c echo.Context) bool {
	return c.Request().Method == http.MethodPost && c.Path() == "/api/foods"
}

// uploadLimit caps the request body and reports an overflow as an image size
// validation error instead of 413.
func uploadLimit(limit string) echo.MiddlewareFunc {
	bodyLimit := middleware.BodyLimit(limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := bodyLimit(next)
		return func(c echo.Context) error {
			err := h(c)
			if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				return service.ErrImageTooLarge
			}
			return err
		}
	}
}

// sessionError marks failures of the session lookup itself (database or
// redis), which must not be reported as a bad token.
type sessionError struct {
	err error
}

func (e *sessionError) Error() string { return e.err.Error() }
func (e *sessionError) Unwrap() error { return e.err }

// authenticate validates the bearer JWT, checks its session in Redis and puts
// both the claims and the user on the context.
func authenticate(jwtService *auth.JWTService, authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: handler.ContextKeyClaims,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				return nil, apperrors.ErrUnauthenticated
			}
			user, err := authService.Authenticate(c.Request().Context(), claims)
			if err != nil {
				if errors.Is(err, apperrors.ErrUnauthenticated) {
					return nil, err
				}
				return nil, &sessionError{err: err}
			}
			c.Set(handler.ContextKeyUser, user)
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var se *sessionError
			if errors.As(err, &se) {
				return se.err
			}
			return apperrors.ErrUnauthenticated
		},
	})
}

func authRateLimiter(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(time.Minute / time.Duration(perMinute)),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{Message: "Too Many Attempts."})
		},
	})
}

// errorHandler renders every failure as {message, errors?}.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   apperrors.ErrorResponse
			he     *echo.HTTPError
		)
		if errors.As(err, &he) {
			status = he.Code
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			body = apperrors.ErrorResponse{Message: msg}
		} else {
			status, body = apperrors.MapErrorToHTTP(err)
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.ErrorContext(c.Request().Context(), "write error response", "error", err)
		}
	}
}

// CustomValidator wraps validation.Validator for Echo.
type CustomValidator struct {
	validator *validation.Validator
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
