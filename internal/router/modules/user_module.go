package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/staff-directory/internal/interface/http"
	"github.com/oksasatya/staff-directory/internal/interface/middleware"
	"github.com/oksasatya/staff-directory/pkg/helpers"
)

// UserModule wires the directory handlers into routes.
// Public: POST /signup, POST /signin
// Protected (bearer token): GET /details, GET /bulk
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rg.POST("/signup", m.Handler.Signup)
	rg.POST("/signin", m.Handler.Signin)

	auth := rg.Group("/")
	auth.Use(middleware.JWTAuth(m.JWT))
	{
		auth.GET("/details", m.Handler.Details)
		auth.GET("/bulk", m.Handler.Bulk)
	}
}
