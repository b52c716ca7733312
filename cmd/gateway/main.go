package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/skillpath/skillpath-lms/internal/api/http"
	auth "github.com/skillpath/skillpath-lms/internal/auth/middleware"
	"github.com/skillpath/skillpath-lms/internal/config"
	"github.com/skillpath/skillpath-lms/internal/db"
	"github.com/skillpath/skillpath-lms/internal/eventlog"
	"github.com/skillpath/skillpath-lms/internal/exam"
	"github.com/skillpath/skillpath-lms/internal/progress"
	"github.com/skillpath/skillpath-lms/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// Make sure the bootstrap admin exists so a fresh install is reachable.
	if _, err := dbh.ExecContext(ctx, `INSERT INTO users (id,username,role,password_hash)
		VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
		"admin", cfg.AdminUser, "superadmin", cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// --- Core services ---
	events := eventlog.NewRepo(dbh)
	examStore := exam.NewSQLStore(dbh)
	progStore := progress.NewSQLStore(dbh)
	progSvc := progress.NewService(progStore, events, time.Now)
	ledger := exam.NewLedger(examStore, exam.NewScorer(), progSvc, events, time.Now)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Public certificate verification (QR code target).
	r.Get("/certificates/{code}/verify", api.VerifyCertificateHandler(progSvc))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring (professor/admin)
		pr.With(rbac.Require("course:create")).
			Post("/courses", api.PutCourseHandler(progStore))
		pr.With(rbac.Require("module:create")).
			Post("/modules", api.PutModuleHandler(progStore))
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.UploadExamHandler(examStore))

		// Student flow
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(examStore))
		pr.With(rbac.Require("attempt:create")).
			Get("/exams/{examID}/gate", api.GateStatusHandler(ledger))
		pr.With(rbac.Require("attempt:create")).
			Post("/exams/{examID}/attempts", api.SubmitAttemptHandler(ledger))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(ledger))

		// Retry payments
		pr.With(rbac.Require("payment:create")).
			Post("/exams/{examID}/retry-payments", api.CreateRetryPaymentHandler(ledger))
		pr.With(rbac.Require("payment:confirm")).
			Post("/retry-payments/{paymentID}/confirm", api.ConfirmRetryPaymentHandler(ledger))

		// Progression + certification
		pr.With(rbac.RequireAny("progress:view-own", "progress:view-all")).
			Get("/courses/{courseID}/progress", api.CourseProgressHandler(progSvc))
		pr.With(rbac.Require("certificate:view-own")).
			Get("/courses/{courseID}/certificate", api.CertificateHandler(progSvc))

		// Event feed for external consumers (admin)
		pr.With(rbac.Require("events:read")).
			Get("/events", api.ListEventsHandler(events))

		// Users (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
