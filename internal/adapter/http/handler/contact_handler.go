package handler

import (
	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// ContactHandler handles the contact list.
type ContactHandler struct {
	contactSvc ports.ContactService
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(contactSvc ports.ContactService) *ContactHandler {
	return &ContactHandler{contactSvc: contactSvc}
}

// List handles GET /api/v1/contacts.
func (h *ContactHandler) List(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	contacts, err := h.contactSvc.List(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contacts)
}

// Add handles POST /api/v1/contacts.
func (h *ContactHandler) Add(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.AddContactRequest
	if !bindJSON(c, &req) {
		return
	}
	contact, err := h.contactSvc.Add(c.Request.Context(), owner, req.Phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contact)
}

// ToggleFavorite handles POST /api/v1/contacts/:id/favorite, where :id is
// the peer account.
func (h *ContactHandler) ToggleFavorite(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	peer, ok := pathID(c, "Contact")
	if !ok {
		return
	}
	rel, err := h.contactSvc.ToggleFavorite(c.Request.Context(), owner, peer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rel)
}
