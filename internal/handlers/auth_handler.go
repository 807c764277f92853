package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth      *services.AuthService
	google    *googleauth.Refresher
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, google *googleauth.Refresher, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, google: google, jwtSecret: jwtSecret, logger: logger}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if request.Email == "" || request.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password required"})
	}

	user, err := h.auth.Register(c.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailInUse) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "User registered successfully", "user": user})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token, role, err := h.auth.Login(c.Context(), request.Email, request.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"token": token, "role": role})
}

// GoogleConnect hands back the consent URL that starts the Drive linking
// flow. The state parameter is a short-lived signed token carrying the user
// identity, so the unauthenticated callback can attribute the code.
func (h *AuthHandler) GoogleConnect(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	claims := jwt.MapClaims{
		"user_id": userID,
		"nonce":   uuid.NewString(),
		"exp":     time.Now().Add(10 * time.Minute).Unix(),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"url": h.google.AuthCodeURL(state)})
}

// GoogleCallback finishes the linking flow: it validates the state token,
// exchanges the authorization code, and stores the credential pair.
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "state and code required"})
	}

	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid state"})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid state claims"})
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid state payload"})
	}

	if err := h.google.LinkAccount(c.Context(), userID, code); err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}
