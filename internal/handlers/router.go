package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/validator"
)

type HandlerManager struct {
	serviceManager     services.ServiceManager
	examHandler        *ExamHandler
	attemptHandler     *AttemptHandler
	gradingHandler     *GradingHandler
	leaderboardHandler *LeaderboardHandler
	userHandler        *UserHandler
	auth               Authenticator
	logger             utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	auth Authenticator,
	identity repositories.IdentityRepository,
	allowedOrigins []string,
) *HandlerManager {
	return &HandlerManager{
		serviceManager:     serviceManager,
		examHandler:        NewExamHandler(serviceManager.Exam(), validator, logger),
		attemptHandler:     NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler:     NewGradingHandler(serviceManager.Grading(), logger),
		leaderboardHandler: NewLeaderboardHandler(serviceManager.Ranking(), logger, allowedOrigins),
		userHandler:        NewUserHandler(identity, logger),
		auth:               auth,
		logger:             logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	staff := RequireRoleMiddleware(models.RoleFaculty)
	adminOnly := RequireRoleMiddleware(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth.AuthMiddleware())
	{
		exams := v1.Group("/exams")
		{
			exams.POST("", staff, hm.examHandler.CreateExam)
			exams.PUT("/:id", staff, hm.examHandler.UpdateExam)
			exams.PUT("/:id/questions", staff, hm.examHandler.SetQuestions)
			exams.POST("/:id/publish", staff, hm.examHandler.PublishExam())
			exams.POST("/:id/cancel", staff, hm.examHandler.CancelExam())
			exams.GET("/:id/pending-answers", staff, hm.gradingHandler.ListPendingAnswers)

			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/status", hm.examHandler.GetExamStatus)

			exams.POST("/:id/attempts", hm.attemptHandler.BeginAttempt)
		}

		competitions := v1.Group("/competitions")
		{
			competitions.POST("", staff, hm.examHandler.CreateCompetition)
			competitions.POST("/:id/publish", staff, hm.examHandler.PublishCompetition())
			competitions.POST("/:id/approve", adminOnly, hm.examHandler.ApproveCompetition())
			competitions.POST("/:id/go-live", staff, hm.examHandler.GoLiveCompetition())
			competitions.POST("/:id/cancel", staff, hm.examHandler.CancelCompetition())
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/tab-switch", hm.attemptHandler.RecordTabSwitch)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)

			attempts.POST("/:id/answers/:question_id/grade", staff, hm.gradingHandler.GradeAnswer)
		}

		leaderboards := v1.Group("/leaderboards")
		{
			leaderboards.GET("/:scope", hm.leaderboardHandler.GetLeaderboard)
			leaderboards.GET("/:scope/me", hm.leaderboardHandler.GetMyRank)
			leaderboards.GET("/:scope/export", staff, hm.leaderboardHandler.ExportLeaderboard)
		}

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetCurrentUser)
			users.GET("/:id", staff, hm.userHandler.GetUser)
		}
	}

	ws := router.Group("/ws/v1")
	ws.Use(hm.auth.AuthMiddleware())
	{
		ws.GET("/leaderboards/:scope", hm.leaderboardHandler.StreamLeaderboard)
	}
}

// HealthCheck reports whether the services and their storage are reachable.
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	body := gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339), "service": "exam-engine"}
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		utils.GetLogger(c, hm.logger).Warn("Health check failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	body["status"] = status
	c.JSON(code, body)
}
