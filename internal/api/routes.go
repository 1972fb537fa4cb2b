package api

import (
	"net/http"

	"github.com/zihernwong/AthleteBridge-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	bookingService service.BookingService,
	hub *ChatHub,
) {
	authHandler := NewAuthHandler(authService)
	bookingHandler := NewBookingHandler(bookingService)
	chatHandler := NewChatHandler(hub)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		// --- Booking Routes ---
		bookingGroup := protected.Group("/bookings")
		{
			bookingGroup.POST("", bookingHandler.CreateBooking)
			bookingGroup.GET("", bookingHandler.ListBookings)
			bookingGroup.PATCH("/:id/status", bookingHandler.UpdateStatus)
			bookingGroup.PATCH("/:id/payment-status", bookingHandler.UpdatePaymentStatus)
		}

		// --- Chat Routes ---
		chatGroup := protected.Group("/chat")
		{
			chatGroup.POST("/subscribe", chatHandler.Subscribe)
			chatGroup.DELETE("/subscribe", chatHandler.Unsubscribe)
			chatGroup.GET("/conversations", chatHandler.Conversations)
			chatGroup.POST("/conversations", chatHandler.CreateConversation)
			chatGroup.POST("/conversations/:id/open", chatHandler.OpenConversation)
			chatGroup.DELETE("/conversations/:id/open", chatHandler.CloseConversation)
			chatGroup.GET("/conversations/:id/messages", chatHandler.Messages)
			chatGroup.POST("/conversations/:id/messages", chatHandler.SendMessage)
		}
	}
}
