package router

import (
	"github.com/wb-go/wbf/ginext"

	authhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/auth"
	domainhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/domain"
	imagehdl "github.com/aliskhannn/pix-erase/internal/api/handlers/image"
	taskhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/task"
	userhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/user"
	"github.com/aliskhannn/pix-erase/internal/middleware"
)

// Handlers bundles the handler groups mounted by Setup.
type Handlers struct {
	Auth   *authhdl.Handler
	Users  *userhdl.Handler
	Images *imagehdl.Handler
	Tasks  *taskhdl.Handler
	Domain *domainhdl.Handler
}

// Setup mounts all routes. Everything under /api except signup and login
// requires a valid access token.
func Setup(h Handlers, authn ginext.HandlerFunc) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/auth/signup", h.Auth.SignUp)
	api.POST("/auth/login", h.Auth.LogIn)

	protected := api.Group("")
	protected.Use(authn)

	protected.GET("/users/me", h.Users.Me)
	protected.GET("/users", h.Users.List)
	protected.GET("/users/:id", h.Users.Get)
	protected.POST("/users", h.Users.Create)
	protected.DELETE("/users/:id", h.Users.Delete)
	protected.POST("/users/:id/grant-admin", h.Users.GrantAdmin)
	protected.POST("/users/:id/revoke-admin", h.Users.RevokeAdmin)
	protected.POST("/users/:id/activate", h.Users.Activate)
	protected.POST("/users/:id/deactivate", h.Users.Deactivate)
	protected.PATCH("/users/:id/name", h.Users.ChangeName)
	protected.PATCH("/users/:id/email", h.Users.ChangeEmail)
	protected.PATCH("/users/:id/password", h.Users.ChangePassword)

	protected.POST("/images", h.Images.Upload)
	protected.GET("/images/:id", h.Images.Get)
	protected.GET("/images/:id/meta", h.Images.GetMeta)
	protected.GET("/images/:id/exif", h.Images.Exif)
	protected.DELETE("/images/:id", h.Images.Delete)
	protected.PATCH("/images/:id/name", h.Images.Rename)

	protected.POST("/images/:id/grayscale", h.Images.Grayscale)
	protected.POST("/images/:id/color-to-gray", h.Images.ColorToGray)
	protected.POST("/images/:id/remove-watermark", h.Images.RemoveWatermark)
	protected.POST("/images/:id/remove-background", h.Images.RemoveBackground)
	protected.POST("/images/:id/upscale", h.Images.Upscale)
	protected.POST("/images/:id/resize", h.Images.Resize)
	protected.POST("/images/:id/rotate", h.Images.Rotate)
	protected.POST("/images/:id/compress", h.Images.Compress)
	protected.POST("/images/:id/crop", h.Images.Crop)
	protected.POST("/images/compare", h.Images.Compare)

	protected.GET("/tasks/:id", h.Tasks.Status)

	protected.POST("/domains/analyze", h.Domain.Analyze)
	protected.POST("/domains/schedules", h.Domain.Schedule)
	protected.DELETE("/domains/schedules/:id", h.Domain.CancelSchedule)

	return r
}
