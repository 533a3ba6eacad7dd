package handler

import (
	"io"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClientHandler handles client endpoints
type ClientHandler struct {
	BaseHandler
	clientService *billingapp.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clientService *billingapp.ClientService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		BaseHandler:   BaseHandler{logger: logger},
		clientService: clientService,
	}
}

// Create adds a client
// POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req billingapp.CreateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, client)
}

// Get returns a client
// GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "client")
	if !ok {
		return
	}

	client, err := h.clientService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, client)
}

// List returns a page of clients
// GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	var filter billingapp.ClientListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	page, err := h.clientService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	SuccessPage(c, page)
}

// Search matches clients by name, company or email
// GET /clients/search?q=
func (h *ClientHandler) Search(c *gin.Context) {
	clients, err := h.clientService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, clients)
}

// Update changes client details
// PUT /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "client")
	if !ok {
		return
	}
	var req billingapp.UpdateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, client)
}

// Delete removes a client without projects or unpaid invoices
// DELETE /clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "client")
	if !ok {
		return
	}

	if err := h.clientService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ExportCSV downloads every client as CSV
// GET /clients/export
func (h *ClientHandler) ExportCSV(c *gin.Context) {
	h.sendCSV(c, "clients.csv", func(w io.Writer) error {
		return h.clientService.ExportCSV(c.Request.Context(), w)
	})
}
