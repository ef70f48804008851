package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osvaldoandrade/budgetauth/internal/controllers"
	"github.com/osvaldoandrade/budgetauth/internal/middleware"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

func SetupMappings(app *Application) {
	health := controllers.NewHealthController(2*time.Second,
		controllers.ReadinessCheck{Name: "directory", Check: app.Directory.Health},
		controllers.ReadinessCheck{Name: "revocationStore", Check: app.pingStore},
	)
	app.Engine.GET("/healthz", health.Live)
	app.Engine.GET("/readyz", health.Ready)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.GET("/me", controllers.NewMeController().Handle)
		authGroup.POST("/login", controllers.NewLoginController(app.Sessions).Handle)
		authGroup.POST("/refresh", controllers.NewRefreshController(app.Sessions).Handle)
		authGroup.POST("/logout", middleware.RequireAuth(), controllers.NewLogoutController(app.Sessions).Handle)
		authGroup.POST("/email-verification", middleware.RequireAuth(), controllers.NewIssueEmailVerificationController(app.Verification).Handle)
		authGroup.POST("/email-verification/confirm", controllers.NewConfirmEmailVerificationController(app.Verification).Handle)
		authGroup.POST("/password-reset/verify", controllers.NewVerifyPasswordResetController(app.Verification).Handle)

		v1.POST("/families/:familyId/invitations",
			middleware.RequireEmailVerified(),
			middleware.RequirePermission(domain.PermInviteMembers),
			middleware.RequireFamilyAccess("familyId"),
			controllers.NewCreateInvitationController(app.Invitations).Handle,
		)
		v1.POST("/invitations/preview", controllers.NewPreviewInvitationController(app.Invitations).Handle)
		v1.GET("/users/:userId", middleware.RequireSelfOrAdmin("userId"), controllers.NewGetUserController(app.Directory).Handle)

		admin := v1.Group("/admin", middleware.RequireAdminKey(app.Config.AdminAPIKey))
		admin.GET("/revocations/stats", controllers.NewRevocationStatsController(app.Revocations).Handle)
		admin.POST("/revocations/info", controllers.NewRevocationInfoController(app.Revocations).Handle)
		admin.POST("/revocations/cleanup", controllers.NewRevocationCleanupController(app.Revocations).Handle)
		admin.POST("/revocations", controllers.NewRevokeTokenController(app.Revocations).Handle)
		admin.POST("/password-reset", controllers.NewIssuePasswordResetController(app.Verification).Handle)
	}
}
