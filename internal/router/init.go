package router

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/staff-directory/internal/container"
	handlers "github.com/oksasatya/staff-directory/internal/interface/http"
	"github.com/oksasatya/staff-directory/internal/router/modules"
)

// InitModules wires every feature module from the container into the registry.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	r.Add(ModuleFunc(func(rg *gin.RouterGroup) {
		rg.GET("/health", handlers.Health)
	}))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(c.Service, c.Logger), c.JWT))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
