package web

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type subscriptionRequest struct {
	ChatID json.RawMessage `json:"chat_id"`
}

// chatID accepts the chat ID as a JSON number or string.
func (r subscriptionRequest) chatID() (string, bool) {
	raw := strings.Trim(strings.TrimSpace(string(r.ChatID)), `"`)
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

func (s *Server) handleSubscription(subscribe bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, "chat_id required", nil)
			return
		}
		id, ok := req.chatID()
		if !ok {
			s.fail(c, http.StatusBadRequest, "chat_id required", nil)
			return
		}

		status := "subscribed"
		var err error
		if subscribe {
			err = s.deps.Subscribers.Add(id)
		} else {
			status = "unsubscribed"
			err = s.deps.Subscribers.Remove(id)
		}
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "Failed to update subscription", err)
			return
		}
		s.log.InfoContext(c.Request.Context(), "Updated reminder subscription", "chat_id", id, "status", status)
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (r loginRequest) user() string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.Username), "@"))
}

func (s *Server) handleLoginRequest(c *gin.Context) {
	ctx := c.Request.Context()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	user := req.user()
	if !s.deps.Config.IsAllowedUsername(user) {
		s.fail(c, http.StatusForbidden, "User not allowed", nil)
		return
	}

	code, err := newLoginCode()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to create login code", err)
		return
	}
	if err := s.deps.Logins.SaveLoginCode(ctx, user, code); err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to create login code", err)
		return
	}
	if err := s.deps.Codes.SendCode(ctx, user, code); err != nil {
		// The user may not have started a chat with the bot yet.
		s.log.WarnContext(ctx, "Could not deliver login code", "username", user, "error", err)
	} else {
		s.log.InfoContext(ctx, "Sent login code", "username", user)
	}
	c.JSON(http.StatusOK, gin.H{"status": "code_sent"})
}

func (s *Server) handleLoginVerify(c *gin.Context) {
	ctx := c.Request.Context()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	user := req.user()
	if !s.deps.Config.IsAllowedUsername(user) {
		s.fail(c, http.StatusForbidden, "User not allowed", nil)
		return
	}

	ok, err := s.deps.Logins.ConsumeLoginCode(ctx, user, strings.TrimSpace(req.Code), codeMaxAge)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to verify code", err)
		return
	}
	if !ok {
		s.fail(c, http.StatusBadRequest, "Invalid or expired code.", nil)
		return
	}

	c.SetCookie(sessionCookie, user, int(sessionMaxAge.Seconds()), "/", "", false, true)
	s.log.InfoContext(ctx, "User logged in", "username", user)
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

// newLoginCode returns a random six digit code.
func newLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
