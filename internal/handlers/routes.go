package handlers

import (
	"github.com/gofiber/fiber/v2"

	"supportportal/internal/auth"
	"supportportal/internal/middleware"
)

// RegisterRoutes mounts the account API under /user. Handlers expect the
// config, users, issuer and avatars locals to be set by an earlier handler.
func RegisterRoutes(router fiber.Router) {
	user := router.Group("/user")
	user.Post("/login", Login)
	user.Post("/register", Register)
	user.Get("/resetpassword/:email", ResetPassword)
	user.Get("/image/profile/:username", GetTemporaryProfileImage)
	user.Get("/image/:username/:filename", GetProfileImage)

	user.Post("/add", middleware.AuthMiddleware, middleware.RequireAuthority(auth.AuthorityUserCreate), AddNewUser)
	user.Post("/update", middleware.AuthMiddleware, middleware.RequireAuthority(auth.AuthorityUserUpdate), UpdateUser)
	user.Get("/find/:username", middleware.AuthMiddleware, middleware.RequireAuthority(auth.AuthorityUserRead), FindUser)
	user.Delete("/delete/:id", middleware.AuthMiddleware, middleware.RequireAuthority(auth.AuthorityUserDelete), DeleteUser)
	user.Post("/unlock/:username", middleware.AuthMiddleware, middleware.RequireAuthority(auth.AuthorityUserUpdate), UnlockUser)
	user.Post("/updateProfileImage", middleware.AuthMiddleware, UpdateProfileImage)
}
