package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/middleware"
	"github.com/joshua-takyi/eventbook/internal/services"
)

func Register(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.WriteError(c, helpers.Validation("invalid request payload", err))
			return
		}

		res, err := a.Register(c.Request.Context(), req)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

func Login(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.WriteError(c, helpers.Validation("invalid request payload", err))
			return
		}

		res, err := a.Login(c.Request.Context(), req)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func Me(a *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.GetCaller(c)
		if !ok {
			middleware.WriteError(c, helpers.Unauthenticated("Authentication required", helpers.ReasonNoHeader))
			return
		}

		user, err := a.GetUser(c.Request.Context(), caller.ID)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
