package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/domain/repositories"
	"github.com/fraudwatch/server/internal/audio"
	"github.com/fraudwatch/server/internal/auth"
	"github.com/fraudwatch/server/internal/websocket"
	"github.com/fraudwatch/server/usecase"
)

const userIDContextKey = "user_id"

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	service *usecase.AnalysisService,
	users repositories.UserRepository,
	analyses repositories.AnalysisRepository,
	tokens *auth.TokenIssuer,
	hub *websocket.Hub,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "fraudwatch-server",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	requireUser := authMiddleware(tokens, logger)

	// User Management APIs
	v1 := e.Group("/api/v1")
	v1.POST("/usuarios/registro", func(c echo.Context) error {
		return userRegister(c, users, logger)
	})
	v1.POST("/usuarios/login", func(c echo.Context) error {
		return userLogin(c, users, tokens, logger)
	})

	// Analysis record APIs
	v1.GET("/analisis", func(c echo.Context) error {
		return listAnalyses(c, analyses, logger)
	}, requireUser)
	v1.DELETE("/analisis/:id", func(c echo.Context) error {
		return deleteAnalysis(c, analyses, logger)
	}, requireUser)

	// Analysis pipeline APIs. Route names match the original service's
	// public contract.
	e.POST("/analizar-texto", func(c echo.Context) error {
		return analyzeText(c, service, logger)
	}, requireUser)
	e.POST("/transcribir-audio", func(c echo.Context) error {
		return transcribeAudio(c, service, logger)
	})
	e.POST("/analizar-audio-stream", func(c echo.Context) error {
		return analyzeAudioStream(c, service, logger)
	}, requireUser)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, tokens, logger)
	})
}

// authMiddleware validates the bearer token and stores the principal in
// the request context.
func authMiddleware(tokens *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Bearer token is required in Authorization header",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired token",
				})
			}

			c.Set(userIDContextKey, claims.UserID)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func currentUserID(c echo.Context) int64 {
	id, _ := c.Get(userIDContextKey).(int64)
	return id
}

func userRegister(c echo.Context, users repositories.UserRepository, logger *zap.Logger) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Username, email and password are required",
		})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_password",
			Message: err.Error(),
		})
	}

	user := &entities.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hash,
	}
	if err := users.Create(c.Request().Context(), user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "already_exists",
				Message: "El usuario o el email ya está registrado",
			})
		}
		logger.Error("Failed to create user", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		RegisteredAt: user.RegisteredAt,
	})
}

func userLogin(c echo.Context, users repositories.UserRepository, tokens *auth.TokenIssuer, logger *zap.Logger) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	user, err := users.GetByUsername(c.Request().Context(), req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalidCredentials(c)
		}
		logger.Error("Failed to load user", zap.Error(err))
		return internalError(c)
	}
	if err := auth.VerifyPassword(req.Password, user.HashedPassword); err != nil {
		return invalidCredentials(c)
	}

	token, expiresAt, err := tokens.GenerateUserToken(user.ID, user.Username)
	if err != nil {
		logger.Error("Failed to generate token", zap.Int64("userID", user.ID), zap.Error(err))
		return internalError(c)
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

func analyzeText(c echo.Context, service *usecase.AnalysisService, logger *zap.Logger) error {
	var req TextAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	result, err := service.HandleText(c.Request().Context(), req.Text, req.SessionID, req.Origin, currentUserID(c))
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyText) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "empty_text",
				Message: "Texto vacío",
			})
		}
		if errors.Is(err, usecase.ErrClassification) {
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "classification_failed",
				Message: "El análisis no está disponible en este momento",
			})
		}
		logger.Error("Text analysis failed", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(http.StatusOK, TextAnalysisResponse{Result: result})
}

func transcribeAudio(c echo.Context, service *usecase.AnalysisService, logger *zap.Logger) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "No se pudo leer el archivo de audio.",
		})
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".wav") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_extension",
			Message: "Solo se aceptan archivos .wav",
		})
	}

	data, err := readMultipartFile(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_file",
			Message: "No se pudo leer el archivo de audio.",
		})
	}

	transcript, err := service.Transcribe(c.Request().Context(), data)
	if err != nil {
		if errors.Is(err, audio.ErrInvalidFormat) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_format",
				Message: "El archivo no es un WAV válido.",
			})
		}
		logger.Error("Transcription failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "transcription_failed",
			Message: "La transcripción no está disponible en este momento",
		})
	}

	return c.JSON(http.StatusOK, TranscriptionResponse{Transcript: transcript})
}

func analyzeAudioStream(c echo.Context, service *usecase.AnalysisService, logger *zap.Logger) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "No se pudo leer el archivo de audio.",
		})
	}
	data, err := readMultipartFile(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_file",
			Message: "No se pudo leer el archivo de audio.",
		})
	}

	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	accumulated := c.FormValue("texto_acumulado")

	result, err := service.HandleChunk(c.Request().Context(), data, sessionID, accumulated, usecase.OriginAudioStream, currentUserID(c))
	if err != nil {
		if errors.Is(err, audio.ErrInvalidFormat) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_format",
				Message: "El archivo no es un WAV válido.",
			})
		}
		if errors.Is(err, usecase.ErrClassification) {
			return c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "classification_failed",
				Message: "El análisis no está disponible en este momento",
			})
		}
		logger.Error("Chunk analysis failed", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(http.StatusOK, AudioStreamResponse{
		SessionID:  result.SessionID,
		Transcript: result.Transcript,
		Result:     result.Result,
		ScratchRef: result.ScratchRef,
	})
}

func listAnalyses(c echo.Context, analyses repositories.AnalysisRepository, logger *zap.Logger) error {
	records, err := analyses.ListByUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		logger.Error("Failed to list analyses", zap.Error(err))
		return internalError(c)
	}
	if records == nil {
		records = []*entities.Analysis{}
	}
	return c.JSON(http.StatusOK, records)
}

func deleteAnalysis(c echo.Context, analyses repositories.AnalysisRepository, logger *zap.Logger) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Record id must be numeric",
		})
	}

	err = analyses.Delete(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Análisis no encontrado",
			})
		case errors.Is(err, repositories.ErrNotOwned):
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "not_owned",
				Message: "El análisis pertenece a otro usuario",
			})
		default:
			logger.Error("Failed to delete analysis", zap.Error(err))
			return internalError(c)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, tokens *auth.TokenIssuer, logger *zap.Logger) error {
	token := bearerToken(c)
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Bearer token is required in Authorization header",
		})
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired token",
		})
	}

	logger.Info("WebSocket connection authenticated", zap.Int64("userID", claims.UserID))
	return websocket.HandleWebSocketWithAuth(hub, c, claims.UserID, logger)
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "invalid_credentials",
		Message: "Usuario o contraseña incorrectos",
	})
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Unexpected server error",
	})
}
