package router

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskdesk/internal/auth"
	"taskdesk/internal/config"
	apperrors "taskdesk/internal/errors"
	"taskdesk/internal/handler"
)

// maxAttachmentSize caps task create/update bodies, attachment included.
const maxAttachmentSize = "5M"

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	adminHandler *handler.AdminHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Attachments are served straight from the upload directory.
	e.Static("/uploads", cfg.UploadDir)

	api := e.Group("/api")

	// Public routes: registration, login and reset bypass the token gate.
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/reset-password", authHandler.ResetPassword)

	// Secured routes: every request passes token verification before any
	// handler runs. Verified claims land in the context as *auth.Claims.
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.Verify(token)
			if err != nil {
				return nil, err
			}
			blacklisted, _ := tokenStore.IsBlacklisted(c.Request().Context(), claims.ID)
			if blacklisted {
				return nil, auth.ErrInvalidToken
			}
			return claims, nil
		},
		ErrorHandler: unauthenticated,
	}))

	secured.POST("/auth/logout", authHandler.Logout)

	tasks := secured.Group("/tasks", middleware.BodyLimit(maxAttachmentSize))
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.PATCH("/:id", taskHandler.Update)
	tasks.PATCH("/:id/toggle", taskHandler.Toggle)
	tasks.DELETE("/:id", taskHandler.Delete)

	admin := secured.Group("/auth/admin", adminOnly)
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)
	admin.POST("/create", adminHandler.CreateAdmin)
}

// unauthenticated turns every token failure into a 401 with the error
// taxonomy codes; a missing header and a bad signature must not leak more
// than that.
func unauthenticated(c echo.Context, err error) error {
	code := "UNAUTHENTICATED"
	message := "missing or invalid token"
	if stderrors.Is(err, auth.ErrExpiredToken) {
		code = "TOKEN_EXPIRED"
		message = auth.ErrExpiredToken.Error()
	}
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// adminOnly rejects authenticated callers whose claims lack the admin flag.
func adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get("user").(*auth.Claims)
		if !ok || !claims.IsAdmin {
			httpErr := apperrors.MapErrorToHTTP(apperrors.ErrForbidden)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
		return next(c)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
