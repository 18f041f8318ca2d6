package routes

import (
	"log"
	"net/http"

	"avtotest/handlers"
	"avtotest/middleware"
	"avtotest/models"
	"avtotest/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from another origin
	},
}

type Handlers struct {
	Auth      *handlers.AuthHandler
	Provision *handlers.ProvisionHandler
	Test      *handlers.TestHandler
	Ticket    *handlers.TicketHandler
	Profile   *handlers.ProfileHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, hub *services.Hub, identity middleware.Identity) {
	// Privileged account provisioning. It authenticates the caller itself so
	// that its error responses stay exact.
	functions := router.Group("/functions/v1")
	{
		functions.OPTIONS("/create-user", h.Provision.Preflight)
		functions.POST("/create-user", h.Provision.CreateUser)
	}

	api := router.Group("/api")
	{
		api.POST("/auth/login", h.Auth.Login)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(identity))
		{
			protected.GET("/auth/profile", h.Auth.GetProfile)

			anyRole := middleware.RequireRole(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

			protected.GET("/tickets", anyRole, h.Ticket.ListTickets)
			protected.GET("/results/me", anyRole, h.Ticket.ListMyResults)

			testSession := protected.Group("/test-session", anyRole)
			{
				testSession.GET("", h.Test.GetSession)
				testSession.POST("/start", h.Test.Start)
				testSession.POST("/answer", h.Test.Answer)
				testSession.POST("/next", h.Test.Next)
				testSession.POST("/prev", h.Test.Prev)
				testSession.POST("/finish", h.Test.Finish)
				testSession.POST("/reset", h.Test.Reset)
			}

			admin := protected.Group("/", middleware.RequireRole(models.RoleAdmin))
			{
				admin.PATCH("/profiles/:user_id/expiry", h.Profile.SetExpiry)
			}
		}
	}

	// WebSocket endpoint for live result events. Browsers cannot set headers
	// on a websocket handshake, so the token comes as a query parameter.
	router.GET("/ws", func(c *gin.Context) {
		user, err := identity.ResolveToken(c.Request.Context(), c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		role, err := identity.GetUserRole(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "No role assigned to this account"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for user %s: %v", user.ID, err)
			return
		}

		hub.RegisterClient(conn, user.ID, role)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
