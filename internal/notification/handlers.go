package notification

import (
	"net/http"

	"ms-watchmarket/internal/auth"
	"ms-watchmarket/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	mailer Mailer
	// SupportAddress receives contact form submissions.
	SupportAddress string
	logger         *logger.Logger
}

func NewHandler(mailer Mailer, supportAddress string, log *logger.Logger) *Handler {
	return &Handler{mailer: mailer, SupportAddress: supportAddress, logger: log}
}

// reply is the body of every email endpoint response.
type reply struct {
	Success    bool   `json:"success"`
	TemplateID string `json:"templateId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RegisterRoutes mounts the email endpoints behind bearer auth. Mail to
// arbitrary addresses is reserved to internal services; any signed-in user
// may write to support.
func (h *Handler) RegisterRoutes(r gin.IRouter, v auth.Verifier) {
	email := r.Group("/email", auth.GinMiddleware(v, h.logger))
	email.POST("/password-reset", auth.GinRequireRole(auth.RoleService), h.PasswordReset)
	email.POST("/contact", h.Contact)
	email.POST("/new-user", auth.GinRequireRole(auth.RoleService), h.NewUser)
}

func (h *Handler) invalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, reply{Error: "invalid request payload: " + err.Error()})
}

type passwordResetRequest struct {
	Email     string `json:"email" binding:"required,email"`
	ResetLink string `json:"resetLink" binding:"required,url"`
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required,max=5000"`
}

type newUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"required"`
}

func (h *Handler) PasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	h.send(c, Message{
		RecipientAddress:   req.Email,
		TemplateID:         TemplatePasswordReset,
		SubstitutionFields: map[string]string{"resetLink": req.ResetLink},
	})
}

func (h *Handler) Contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	h.send(c, Message{
		RecipientAddress: h.SupportAddress,
		TemplateID:       TemplateContact,
		SubstitutionFields: map[string]string{
			"name":    req.Name,
			"email":   req.Email,
			"subject": req.Subject,
			"message": req.Message,
			"userId":  auth.UserID(c.Request.Context()),
		},
	})
}

func (h *Handler) NewUser(c *gin.Context) {
	var req newUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, err)
		return
	}
	h.send(c, Message{
		RecipientAddress:   req.Email,
		TemplateID:         TemplateNewUser,
		SubstitutionFields: map[string]string{"name": req.FullName},
	})
}

func (h *Handler) send(c *gin.Context, msg Message) {
	if err := h.mailer.Send(c.Request.Context(), msg); err != nil {
		h.logger.Error("EMAIL", "send "+msg.TemplateID+": "+err.Error())
		c.JSON(http.StatusBadGateway, reply{TemplateID: msg.TemplateID, Error: "email provider unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, reply{Success: true, TemplateID: msg.TemplateID})
}
