package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"grapevpn/keyhub/internal/handler/middleware"
	"grapevpn/keyhub/internal/service"
	"grapevpn/keyhub/pkg/response"
)

// BearerIssuer mints bearer credentials and checks the admin secret.
type BearerIssuer interface {
	Issue() (string, error)
	SecretMatches(candidate string) bool
}

// RedeemHandler serves the VPN server facing API.
type RedeemHandler struct {
	redemptions service.RedemptionService
	issuer      BearerIssuer
}

func NewRedeemHandler(redemptions service.RedemptionService, issuer BearerIssuer) *RedeemHandler {
	return &RedeemHandler{
		redemptions: redemptions,
		issuer:      issuer,
	}
}

// RedeemRequest fields accept any JSON value. A present but non-string
// value is passed on in its JSON form, so a numeric jwt fails verification
// with bad_jwt rather than bad_json.
type RedeemRequest struct {
	JWT   any `json:"jwt"`
	Token any `json:"token"`
}

// present treats null, false, zero and empty values as missing.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

// Redeem consumes a token on behalf of the VPN server.
func (h *RedeemHandler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeBadJSON)
		return
	}
	if !present(req.JWT) || !present(req.Token) {
		response.BadRequest(c, response.CodeMissingFields)
		return
	}

	redemption, err := h.redemptions.Redeem(c.Request.Context(), asString(req.JWT), asString(req.Token))
	if err != nil {
		if errors.Is(err, service.ErrBadBearer) {
			response.Forbidden(c, response.CodeBadJWT)
			return
		}
		if reason := service.FailureReason(err); reason != "" {
			response.BadRequest(c, reason)
			return
		}
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"status": "redeemed", "info": redemption})
}

// IssueJWT mints a bearer credential for a caller holding the admin secret.
func (h *RedeemHandler) IssueJWT(c *gin.Context) {
	if !h.issuer.SecretMatches(c.GetHeader(middleware.HeaderAdminSecret)) {
		response.Forbidden(c, response.CodeBadSecret)
		return
	}
	token, err := h.issuer.Issue()
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"jwt": token})
}
