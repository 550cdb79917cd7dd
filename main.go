package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fabiortecnologia/sghss/internal/api"
	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/cache"
	"github.com/fabiortecnologia/sghss/internal/config"
	"github.com/fabiortecnologia/sghss/internal/crypto"
	"github.com/fabiortecnologia/sghss/internal/middleware"
	"github.com/fabiortecnologia/sghss/internal/migrate"
	"github.com/fabiortecnologia/sghss/internal/seed"
)

func main() {
	cfg := config.Load()

	keys, err := crypto.ParseKeysEnv(cfg.DataEncryptionKeys)
	if err != nil {
		log.Fatalf("DATA_ENCRYPTION_KEYS: %v", err)
	}
	if _, ok := keys[cfg.CurrentDataKeyVer]; !ok {
		log.Fatalf("CURRENT_DATA_KEY_VERSION %q não está em DATA_ENCRYPTION_KEYS", cfg.CurrentDataKeyVer)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL é obrigatória")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("config postgres: %v", err)
	}
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.DBMinConns > 0 {
		poolConfig.MinConns = int32(cfg.DBMinConns)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("conexão postgres: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("gorm: %v", err)
	}

	if err := migrate.Run(context.Background(), pool, "migrations"); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := seed.Run(context.Background(), pool, keys, cfg.CurrentDataKeyVer); err != nil {
		log.Printf("[seed] (ignorado se já aplicado): %v", err)
	}

	h := &api.Handler{
		Pool:  pool,
		DB:    db,
		Cfg:   cfg,
		Cache: cache.New(30 * time.Second),
		Keys:  keys,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)

	open := r.PathPrefix("/api").Subrouter()
	open.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	open.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.RequireAuthMiddleware(cfg.JWTSecret))
	protected.HandleFunc("/me", h.Me).Methods(http.MethodGet)

	staff := middleware.RequireRole(auth.RoleAdmin, auth.RoleReceptionist)
	admin := middleware.RequireRole(auth.RoleAdmin)
	clinical := middleware.RequireRole(auth.RoleAdmin, auth.RoleProfessional)

	// Pacientes
	protected.Handle("/patients", staff(http.HandlerFunc(h.ListPatients))).Methods(http.MethodGet)
	protected.Handle("/patients", staff(http.HandlerFunc(h.CreatePatient))).Methods(http.MethodPost)
	protected.HandleFunc("/patients/{id}", h.GetPatient).Methods(http.MethodGet)
	protected.Handle("/patients/{id}", staff(http.HandlerFunc(h.UpdatePatient))).Methods(http.MethodPatch)
	protected.Handle("/patients/{id}", admin(http.HandlerFunc(h.DeletePatient))).Methods(http.MethodDelete)
	protected.Handle("/patients/{id}/access", staff(http.HandlerFunc(h.CreatePatientAccess))).Methods(http.MethodPost)
	protected.Handle("/patients/{id}/anonymize", admin(http.HandlerFunc(h.AnonymizePatient))).Methods(http.MethodPost)

	// Profissionais
	protected.HandleFunc("/professionals", h.ListProfessionals).Methods(http.MethodGet)
	protected.Handle("/professionals", admin(http.HandlerFunc(h.CreateProfessional))).Methods(http.MethodPost)
	protected.HandleFunc("/professionals/{id}", h.GetProfessional).Methods(http.MethodGet)
	protected.Handle("/professionals/{id}", admin(http.HandlerFunc(h.UpdateProfessional))).Methods(http.MethodPatch)
	protected.Handle("/professionals/{id}", admin(http.HandlerFunc(h.DeactivateProfessional))).Methods(http.MethodDelete)
	protected.Handle("/professionals/{id}/reactivate", admin(http.HandlerFunc(h.ReactivateProfessional))).Methods(http.MethodPost)
	protected.Handle("/professionals/{id}/access", admin(http.HandlerFunc(h.CreateProfessionalAccess))).Methods(http.MethodPost)

	// Agendamentos
	protected.HandleFunc("/appointments", h.ListAppointments).Methods(http.MethodGet)
	protected.Handle("/appointments", staff(http.HandlerFunc(h.BookAppointment))).Methods(http.MethodPost)
	protected.HandleFunc("/appointments/{id}", h.GetAppointment).Methods(http.MethodGet)
	protected.Handle("/appointments/{id}/cancel", staff(http.HandlerFunc(h.CancelAppointment))).Methods(http.MethodPatch)
	protected.Handle("/appointments/{id}/reschedule", staff(http.HandlerFunc(h.RescheduleAppointment))).Methods(http.MethodPatch)

	// Prontuários
	protected.Handle("/records", clinical(http.HandlerFunc(h.CreateRecord))).Methods(http.MethodPost)
	protected.HandleFunc("/records/patient/{id}", h.ListRecordsForPatient).Methods(http.MethodGet)
	protected.HandleFunc("/records/{id}", h.GetRecord).Methods(http.MethodGet)
	protected.Handle("/records/{id}", clinical(http.HandlerFunc(h.UpdateRecord))).Methods(http.MethodPatch)
	protected.HandleFunc("/records/{id}/prescription", h.GetPrescriptionView).Methods(http.MethodGet)
	protected.HandleFunc("/records/{id}/prescription.pdf", h.PrescriptionPDF).Methods(http.MethodGet)

	// Auditoria
	protected.Handle("/audit-logs", admin(http.HandlerFunc(h.ListAuditLogs))).Methods(http.MethodGet)

	chain := middleware.Recover(middleware.RequestID(middleware.Timeout(cfg.RequestTimeoutSec)(middleware.CORS(cfg.CORSOrigins)(middleware.Gzip(r)))))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("sghss listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("sghss stopped")
}
