package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/staff-directory/internal/application"
	"github.com/oksasatya/staff-directory/internal/interface/middleware"
	"github.com/oksasatya/staff-directory/pkg/response"
	"github.com/oksasatya/staff-directory/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type authResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    userapp.UserRef `json:"user"`
}

// statusFor maps service errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, userapp.ErrInvalidInput):
		return http.StatusBadRequest, "invalid payload"
	case errors.Is(err, userapp.ErrDuplicateAccount):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, userapp.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, userapp.ErrNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *UserHandler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	var details map[string]string
	var ie *userapp.InputError
	if errors.As(err, &ie) {
		details = ie.Fields
	}
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("request_id", c.GetString(middleware.CtxRequestIDKey)).Error("request failed")
	}
	response.Abort(c, status, msg, details)
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req userapp.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Abort(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Signup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Message: "signup successful", Token: res.Token, User: res.User})
}

func (h *UserHandler) Signin(c *gin.Context) {
	var req userapp.SigninInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Abort(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Signin(c.Request.Context(), req)
	if errors.Is(err, userapp.ErrUnauthorized) {
		response.Abort(c, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Message: "signin successful", Token: res.Token, User: res.User})
}

func (h *UserHandler) Details(c *gin.Context) {
	p, err := h.Svc.Details(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

// Bulk searches the directory. userPositionIndex may only narrow the caller's
// own seniority; userid is accepted for compatibility and ignored.
func (h *UserHandler) Bulk(c *gin.Context) {
	in := userapp.SearchInput{
		CallerID: c.GetString(middleware.CtxUserIDKey),
		Filter:   c.Query("filter"),
	}
	if raw := c.Query("userPositionIndex"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			response.Abort(c, http.StatusBadRequest, "invalid payload", map[string]string{"userPositionIndex": "must be an integer"})
			return
		}
		in.ClaimedSeniority = &idx
	}
	if claimed := c.Query("userid"); claimed != "" && claimed != in.CallerID {
		h.Logger.WithFields(logrus.Fields{"user_id": in.CallerID, "claimed_user_id": claimed}).Debug("bulk: ignoring userid parameter")
	}

	users, err := h.Svc.Search(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": users})
}
