package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/mail"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"contentops-backend/apperr"
	"contentops-backend/auth"
	"contentops-backend/database"
	"contentops-backend/middlewares"
	"contentops-backend/models"
)

var authLog = logrus.StandardLogger()

// SetLogger wires the shared controller logger.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		authLog = l
	}
}

type registrationInput struct {
	ClientName      string `json:"client_name" validate:"required,min=2"`
	ContactEmail    string `json:"contact_email" validate:"required,email"`
	FallbackPolicy  string `json:"fallback_policy" validate:"omitempty,oneof=send_anyway discard notify"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

// Register onboards a tenant: one client row plus its owner user. The
// engine setup call at the end is best-effort; its failure is logged and
// never fails the registration.
func Register(c *fiber.Ctx) error {
	var data registrationInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	if data.Password != data.PasswordConfirm {
		return apperr.New(apperr.Validation, "passwords do not match")
	}

	var mailExist models.User
	database.DB.Where("email = ?", data.Email).First(&mailExist)
	if mailExist.Email != "" {
		return apperr.New(apperr.Validation, "email already exists")
	}

	fallback := data.FallbackPolicy
	if fallback == "" {
		fallback = models.FallbackNotify
	}

	tx := database.DB.Begin()

	client := models.Client{
		Name:           data.ClientName,
		ContactEmail:   data.ContactEmail,
		FallbackPolicy: fallback,
		Active:         true,
	}
	if err := tx.Create(&client).Error; err != nil {
		tx.Rollback()
		return apperr.Wrap(apperr.Validation, "could not create client", err)
	}

	user := models.User{
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		Role:      models.RoleClient,
		ClientID:  &client.Id,
	}
	if err := user.SetPassword(data.Password); err != nil {
		tx.Rollback()
		return apperr.Wrap(apperr.Downstream, "could not hash password", err)
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return apperr.Wrap(apperr.Validation, "could not create user", err)
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Wrap(apperr.Downstream, "registration commit failed", err)
	}

	// One synchronous setup call to the workflow engine. Tolerated and
	// logged on failure; the tenant is already onboarded.
	notifyEngineSetup(client.Id)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"client": client,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FirstName + " " + user.LastName,
			"email": user.Email,
		},
	})
}

func notifyEngineSetup(clientID string) {
	engineURL := os.Getenv("ENGINE_URL")
	if engineURL == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{"client_id": clientID, "action": "setup"})
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Post(engineURL+"/setup", "application/json", bytes.NewReader(body))
	if err != nil {
		authLog.WithError(err).WithField("client_id", clientID).Warn("engine setup call failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		authLog.WithFields(logrus.Fields{
			"client_id": clientID,
			"status":    resp.StatusCode,
		}).Warn("engine setup call rejected")
	}
}

type loginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func Login(c *fiber.Ctx) error {
	var data loginInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(data.Email); err != nil {
		return apperr.New(apperr.Validation, "invalid email format")
	}

	var user models.User
	database.DB.Where("email = ?", data.Email).First(&user)
	if user.Id == "" {
		return apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	if err := user.ComparePassword(data.Password); err != nil {
		return apperr.New(apperr.Unauthorized, "invalid credentials")
	}

	token, err := auth.IssueToken(user.Id, user.ClientID, user.Role, 24*time.Hour)
	if err != nil {
		return apperr.Wrap(apperr.Downstream, "could not issue token", err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":        user.Id,
			"name":      user.FirstName + " " + user.LastName,
			"email":     user.Email,
			"role":      user.Role,
			"client_id": user.ClientID,
		},
	})
}

// Logout exists for client symmetry; tokens are self-certifying and
// simply expire.
func Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "success"})
}
