package handler

import (
	"github.com/gin-gonic/gin"

	"grapevpn/keyhub/internal/service"
	"grapevpn/keyhub/pkg/response"
)

type MemberHandler struct {
	members service.MemberService
}

func NewMemberHandler(members service.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type RegisterRequest struct {
	UserID       int64  `json:"user_id"`
	StartPayload string `json:"start_payload"`
}

// Register records a member, optionally referred through a start payload.
func (h *MemberHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	if req.UserID <= 0 {
		response.BadRequest(c, response.CodeBadRequest)
		return
	}

	referrer := service.ParseReferralPayload(req.StartPayload, req.UserID)
	created, err := h.members.Register(c.Request.Context(), req.UserID, referrer)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"created": created})
}

// RequestToken issues a token subject to the daily limit.
func (h *MemberHandler) RequestToken(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.members.RequestToken(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"address":    res.Address,
		"wg_public":  res.PublicKey,
		"wg_config":  res.ClientConfig,
		"key_source": res.KeySource,
	})
}

func (h *MemberHandler) ListTokens(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	tokens, err := h.members.Tokens(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"tokens": tokens})
}

func (h *MemberHandler) Referrals(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.members.ReferralStats(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"referrals": stats})
}
