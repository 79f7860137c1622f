package approuters

import (
	"Parley/internal/configuration"

	"github.com/gin-gonic/gin"
)

func UserRouters(router *gin.Engine, container *configuration.Container) {
	userRoute := router.Group("/py/api/users")
	{
		userRoute.POST("/sync", container.UserHandler.SyncUser)
		userRoute.GET("/list", container.UserHandler.ListUsers)
		userRoute.GET("/:userId", container.UserHandler.GetUser)
	}
}
