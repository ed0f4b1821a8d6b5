package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/handler"
	"github.com/noah-isme/college-timetable-api/internal/middleware"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/service"
	"github.com/noah-isme/college-timetable-api/pkg/config"
	"github.com/noah-isme/college-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-timetable-api/pkg/middleware/requestid"
)

// Dependencies carries the collaborators the router mounts.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *service.MetricsService
	Verifier  middleware.TokenValidator
	Timetable *handler.TimetableHandler
	Ops       *handler.MetricsHandler
}

// New builds the gin engine with every route registered.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth, roles := guards(cfg, deps.Verifier)
	admin := roles(models.RoleAdmin)
	staff := roles(models.RoleAdmin, models.RoleTeacher)

	api := r.Group(cfg.APIPrefix)
	api.Use(auth)
	{
		timetables := api.Group("/timetables")
		timetables.POST("/generate", admin, middleware.Audit(deps.Logger, middleware.AuditActionGenerateCore), deps.Timetable.Generate)
		timetables.POST("/labs/generate", admin, middleware.Audit(deps.Logger, middleware.AuditActionGenerateLabs), deps.Timetable.GenerateLabs)
		timetables.GET("/teacher", staff, deps.Timetable.Teacher)
		timetables.GET("/student", deps.Timetable.Student)
		timetables.GET("/:id", admin, deps.Timetable.Get)

		api.GET("/system/metrics", admin, deps.Ops.SystemMetrics)
	}

	if cfg.Features.LegacyRoutes {
		v1 := cfg.APIPrefix + "/timetables"
		r.POST("/generate_timetable", middleware.LegacyRoute(v1+"/generate"), middleware.Audit(deps.Logger, middleware.AuditActionGenerateCore), deps.Timetable.LegacyGenerate)
		r.POST("/generate_lab_timetable", middleware.LegacyRoute(v1+"/labs/generate"), middleware.Audit(deps.Logger, middleware.AuditActionGenerateLabs), deps.Timetable.LegacyGenerateLabs)
		r.GET("/get_timetable_teacher", middleware.LegacyRoute(v1+"/teacher"), deps.Timetable.LegacyTeacher)
	}

	return r
}

// guards returns the authentication middleware and a role guard factory. With auth disabled
// every request passes and claims are attached only when a valid token is sent.
func guards(cfg *config.Config, verifier middleware.TokenValidator) (gin.HandlerFunc, func(...models.UserRole) gin.HandlerFunc) {
	if !cfg.JWT.Enabled || verifier == nil {
		pass := func(c *gin.Context) { c.Next() }
		if verifier == nil {
			return pass, func(...models.UserRole) gin.HandlerFunc { return pass }
		}
		return middleware.OptionalJWT(verifier), func(...models.UserRole) gin.HandlerFunc { return pass }
	}
	return middleware.JWT(verifier), middleware.RequireRoles
}
