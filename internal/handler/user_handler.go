package handler

import (
	"net/http"

	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/service"
	"cashops/pkg/pagination"
	"cashops/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	auth  service.AuthService
	users service.UserService
}

func NewUserHandler(auth service.AuthService, users service.UserService) *UserHandler {
	return &UserHandler{auth: auth, users: users}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.RequireRole(model.RoleMaker, model.RoleChecker, model.RoleAdmin, model.RoleAuditor), h.Me)
	}

	admin := router.Group("/api/admin/users")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	{
		admin.POST("", h.CreateUser)
		admin.GET("", h.ListUsers)
		admin.GET("/:employeeID", h.GetUser)
		admin.PUT("/:employeeID", h.UpdateUser)
	}
}

// Login exchanges credentials for a token pair
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  service.LoginRequest  true  "Credentials"
// @Success      200  {object}  response.Response{data=service.TokenPair}
// @Router       /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "employee_id and password are required"))
		return
	}
	pair, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	middleware.SetTokenCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// Refresh rotates the refresh token and issues a new token pair
// @Summary      Refresh tokens
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.TokenPair}
// @Router       /api/auth/refresh [post]
func (h *UserHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie("refresh_token")
	if err != nil || token == "" {
		var body struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "refresh_token is required"))
			return
		}
		token = body.RefreshToken
	}
	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	middleware.SetTokenCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// Logout revokes the refresh token and clears cookies
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie("refresh_token"); err == nil && token != "" {
		_ = h.auth.Logout(c.Request.Context(), token)
	}
	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"logged_out": true}))
}

// Me returns the caller's identity as seen by the workflow
// @Summary      Current identity
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.Identity}
// @Router       /api/auth/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, middleware.Identity(c)))
}

// CreateUser provisions a new operator account
// @Summary      Create user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body  service.CreateUserRequest  true  "New account"
// @Success      201  {object}  response.Response{data=model.UserAccount}
// @Router       /api/admin/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "employee_id, full_name, role and password are required"))
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), middleware.Identity(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListUsers returns operator accounts, paginated
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	users, total, err := h.users.ListUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, users, total, p))
}

// GetUser returns a single operator account
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        employeeID  path  string  true  "Employee ID"
// @Success      200  {object}  response.Response{data=model.UserAccount}
// @Router       /api/admin/users/{employeeID} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("employeeID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser changes role, status, name or password of an account
// @Summary      Update user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        employeeID  path  string                     true  "Employee ID"
// @Param        body        body  service.UpdateUserRequest  true  "Fields to change"
// @Success      200  {object}  response.Response{data=model.UserAccount}
// @Router       /api/admin/users/{employeeID} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid update payload"))
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), middleware.Identity(c), c.Param("employeeID"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
