package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"grapevpn/keyhub/internal/model"
	"grapevpn/keyhub/internal/service"
	"grapevpn/keyhub/pkg/response"
)

const exportFilename = "export_vpn.csv"

type AdminHandler struct {
	admin    service.AdminService
	sessions service.AdminSessionService
}

func NewAdminHandler(admin service.AdminService, sessions service.AdminSessionService) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		sessions: sessions,
	}
}

func (h *AdminHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.admin.Accounts(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"accounts": accounts})
}

func (h *AdminHandler) ListTokens(c *gin.Context) {
	tokens, err := h.admin.Tokens(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"tokens": tokens})
}

// GrantToken issues a token to an account without the daily limit.
func (h *AdminHandler) GrantToken(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.admin.GrantToken(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"token": res})
}

type MarkPaidRequest struct {
	Paid *bool `json:"paid"`
}

func (h *AdminHandler) MarkPaid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	if req.Paid == nil {
		response.BadRequest(c, response.CodeBadRequest)
		return
	}
	if err := h.admin.MarkPaid(c.Request.Context(), id, *req.Paid); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": id, "paid": *req.Paid})
}

// ExportCSV streams every account and token as one CSV attachment.
func (h *AdminHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.admin.ExportCSV(c.Request.Context(), &buf); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type TextRequest struct {
	Text string `json:"text"`
}

func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	res, err := h.admin.Broadcast(c.Request.Context(), req.Text)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"broadcast": res})
}

type BeginSessionRequest struct {
	Action model.AdminAction `json:"action"`
}

// BeginSession puts an admin into the awaiting-input state for an action.
func (h *AdminHandler) BeginSession(c *gin.Context) {
	adminID, ok := parseIDParam(c, "admin_id")
	if !ok {
		return
	}
	var req BeginSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	session, err := h.sessions.Begin(c.Request.Context(), adminID, req.Action)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"session": session})
}

// SubmitInput feeds the admin's next message to the pending action.
func (h *AdminHandler) SubmitInput(c *gin.Context) {
	adminID, ok := parseIDParam(c, "admin_id")
	if !ok {
		return
	}
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	res, err := h.sessions.Submit(c.Request.Context(), adminID, req.Text)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"result": res})
}

func (h *AdminHandler) CancelSession(c *gin.Context) {
	adminID, ok := parseIDParam(c, "admin_id")
	if !ok {
		return
	}
	if err := h.sessions.Cancel(c.Request.Context(), adminID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": true})
}
