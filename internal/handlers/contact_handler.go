package handlers

import (
	"net/http"
	"strings"

	"projectron-api/internal/email"

	"github.com/gin-gonic/gin"
)

// ContactRequest is the public contact form
type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Type    string `json:"type" binding:"required,oneof=feature bug question other"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type ContactHandler struct {
	mailer *email.Mailer
}

func NewContactHandler(mailer *email.Mailer) *ContactHandler {
	return &ContactHandler{mailer: mailer}
}

// Submit handles POST /contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := email.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   req.Email,
		Type:    req.Type,
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	// lengths are checked after trimming
	switch {
	case len(msg.Name) < 2:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be at least 2 characters long"})
		return
	case len(msg.Subject) < 5:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject must be at least 5 characters long"})
		return
	case len(msg.Message) < 10:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be at least 10 characters long"})
		return
	}

	if err := h.mailer.SendContact(c.Request.Context(), msg); err != nil {
		respondError(c, err, "Failed to send contact form email. Please try again later.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Thank you for your message! We'll get back to you soon."})
}
