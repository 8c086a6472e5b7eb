package handler

import (
	"time"

	"license-activation-service/internal/model"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates the operator account and issues a bearer token
// for the admin routes.
func (h *Handler) HandleLogin(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid input data",
		})
	}

	var user model.User
	result := h.db.Where("username = ?", input.Username).First(&user)
	if result.Error != nil {
		return h.loginFailed(c, 0)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return h.loginFailed(c, user.ID)
	}

	h.db.Create(&model.LoginLog{
		UserID:    user.ID,
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
		Status:    "success",
		CreatedAt: time.Now(),
	})
	user.LastLogin = time.Now()
	h.db.Save(&user)

	token, err := h.issuer.Generate(user.ID)
	if err != nil {
		return h.internalError(c, "login", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (h *Handler) loginFailed(c *fiber.Ctx, userID uint) error {
	h.db.Create(&model.LoginLog{
		UserID:    userID,
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
		Status:    "failed",
		CreatedAt: time.Now(),
	})
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "invalid username or password",
	})
}
