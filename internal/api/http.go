package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/wattbuy/planengine/internal/api/swagger"
	"github.com/wattbuy/planengine/internal/auth"
	"github.com/wattbuy/planengine/internal/config"
	"github.com/wattbuy/planengine/internal/metrics"
	migrate "github.com/wattbuy/planengine/internal/migrate"
	"github.com/wattbuy/planengine/internal/notification"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/queue"
	"github.com/wattbuy/planengine/internal/storage"
	"github.com/wattbuy/planengine/internal/wiring"
)

// NewMux constructs the HTTP mux, wiring storage, auth, the pipeline
// orchestrator, and the ambient health/metrics/swagger endpoints.
func NewMux() *http.ServeMux {
	cfg := config.FromEnv()

	if cfg.AutoMigrate {
		ctx := context.Background()
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	ctxInit := context.Background()
	st, err := storage.Open(ctxInit, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s dsn=%s): %v; falling back to in-memory storage", cfg.DBDriver, cfg.DBDSN, err)
		st = storage.NewMemory()
	} else {
		log.Printf("storage backend ready driver=%s", cfg.DBDriver)
	}

	repos, err := storage.ReposFor(st)
	if err != nil {
		log.Fatalf("storage backend does not expose pipeline repositories: %v", err)
	}

	notifSvc := notification.NewService(st)

	var authSvc *auth.Service
	authSvc, err = auth.NewService(st)
	if err != nil {
		log.Printf("failed to initialize auth service: %v", err)
		authSvc = nil
	} else {
		users, err := st.ListUsers(ctxInit)
		if err == nil && len(users) == 0 {
			log.Println("No users found. Waiting for initial setup via UI.")
		}
	}

	orch := wiring.BuildOrchestrator(cfg, repos)

	mux := http.NewServeMux()

	if authSvc != nil {
		mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			users, err := st.ListUsers(r.Context())
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]bool{
				"initialized": len(users) > 0,
			})
		})

		mux.HandleFunc("/auth/setup", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			users, err := st.ListUsers(r.Context())
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if len(users) > 0 {
				http.Error(w, "System already initialized", http.StatusForbidden)
				return
			}

			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
				Email    string `json:"email"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}

			if req.Username == "" || req.Password == "" {
				http.Error(w, "Username and password required", http.StatusBadRequest)
				return
			}

			user, err := authSvc.Register(r.Context(), req.Username, req.Password, req.Email, "admin")
			if err != nil {
				log.Printf("Failed to create user: %v", err)
				http.Error(w, "Failed to create user", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(user)
		})

		mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			user, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
			if err != nil {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			if existingTokens, err := st.ListTokens(r.Context(), user.ID); err == nil {
				now := time.Now()
				for _, token := range existingTokens {
					if token.Name == "session" && token.ExpiresAt != nil && token.ExpiresAt.Before(now) {
						st.DeleteToken(r.Context(), token.ID)
					}
				}
			}

			expiresAt := time.Now().Add(24 * time.Hour)
			_, tokenValue, err := authSvc.CreateToken(r.Context(), user.ID, "session", user.Role, &expiresAt)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"token": tokenValue,
				"user":  user,
			})
		})

		mux.Handle("/auth/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				tokenObj, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
				if !ok {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				tokens, err := st.ListTokens(r.Context(), tokenObj.UserID)
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(tokens)
				return
			}
			if r.Method == http.MethodPost {
				var req struct {
					Name      string `json:"name"`
					Role      string `json:"role"`
					ExpiresIn string `json:"expires_in"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "Invalid request", http.StatusBadRequest)
					return
				}

				tokenObj, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
				if !ok {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}

				expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
				if err != nil {
					http.Error(w, fmt.Sprintf("Invalid expires_in: %v", err), http.StatusBadRequest)
					return
				}

				t, val, err := authSvc.CreateToken(r.Context(), tokenObj.UserID, req.Name, req.Role, expiresAt)
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]interface{}{
					"token":       t,
					"token_value": val,
				})
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))

		mux.Handle("/auth/tokens/", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			id := strings.TrimPrefix(r.URL.Path, "/auth/tokens/")
			if id == "" {
				http.Error(w, "Missing ID", http.StatusBadRequest)
				return
			}

			tokenObj, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			target, err := st.GetToken(r.Context(), id)
			if err != nil {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			if target.UserID != tokenObj.UserID {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if err := st.DeleteToken(r.Context(), id); err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		})))

		mux.Handle("/auth/users", authSvc.Middleware(authSvc.RequirePermission("users", "read", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			users, err := st.ListUsers(r.Context())
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			for i := range users {
				users[i].PasswordHash = ""
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(users)
		}))))

		mux.Handle("/auth/roles", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(auth.RoleContextKey).(string)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if r.Method == http.MethodGet {
				allowed, err := authSvc.Enforce(role, "roles", "read")
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				if !allowed {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}

				roles, err := authSvc.GetAllRoles()
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(roles)
				return
			}

			if r.Method == http.MethodPost {
				allowed, err := authSvc.Enforce(role, "roles", "write")
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				if !allowed {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}

				var req struct {
					Role     string        `json:"role"`
					Policies []auth.Policy `json:"policies"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "Invalid request", http.StatusBadRequest)
					return
				}
				if req.Role == "" {
					http.Error(w, "Role name required", http.StatusBadRequest)
					return
				}
				if _, err := authSvc.CreateRole(req.Role, req.Policies); err != nil {
					http.Error(w, "Failed to create role", http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]bool{"success": true})
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))

		mux.Handle("/auth/privileges", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(auth.RoleContextKey).(string)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if r.Method == http.MethodGet {
				allowed, err := authSvc.Enforce(role, "privileges", "read")
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				if !allowed {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}

				rawPolicies, err := authSvc.GetAllPolicies()
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}

				type Policy struct {
					Role     string `json:"role"`
					Resource string `json:"resource"`
					Action   string `json:"action"`
				}

				var policies []Policy
				for _, p := range rawPolicies {
					if len(p) >= 3 {
						policies = append(policies, Policy{
							Role:     p[0],
							Resource: p[1],
							Action:   p[2],
						})
					}
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(policies)
				return
			}

			if r.Method == http.MethodPost {
				allowed, err := authSvc.Enforce(role, "privileges", "write")
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				if !allowed {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}

				var req struct {
					Role     string `json:"role"`
					Resource string `json:"resource"`
					Action   string `json:"action"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "Invalid request", http.StatusBadRequest)
					return
				}

				if _, err := authSvc.AddPolicy(req.Role, req.Resource, req.Action); err != nil {
					http.Error(w, "Failed to add policy", http.StatusInternalServerError)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]bool{"success": true})
				return
			}

			if r.Method == http.MethodDelete {
				allowed, err := authSvc.Enforce(role, "privileges", "write")
				if err != nil {
					http.Error(w, "Internal error", http.StatusInternalServerError)
					return
				}
				if !allowed {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}

				var req struct {
					Role     string `json:"role"`
					Resource string `json:"resource"`
					Action   string `json:"action"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					http.Error(w, "Invalid request", http.StatusBadRequest)
					return
				}

				if _, err := authSvc.RemovePolicy(req.Role, req.Resource, req.Action); err != nil {
					http.Error(w, "Failed to remove policy", http.StatusInternalServerError)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]bool{"success": true})
				return
			}

			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})))

		registerNotificationRoutes(mux, authSvc, notifSvc)
	}

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Home estimates API.
	estimatesHandler := http.Handler(handleHomeEstimates(orch, repos))
	if authSvc != nil {
		estimatesHandler = authSvc.Middleware(authSvc.RequirePermission("estimates", "read", estimatesHandler))
	}
	mux.Handle("/homes/", estimatesHandler)

	// Admin review queue API.
	queueHandler := http.Handler(handleReviewQueue(repos))
	resolveHandler := queueHandler
	if authSvc != nil {
		queueHandler = authSvc.Middleware(authSvc.RequirePermission("queue", "read", queueHandler))
		resolveHandler = authSvc.Middleware(authSvc.RequirePermission("queue", "write", resolveHandler))
	}
	mux.Handle("/admin/review-queue", queueHandler)
	mux.Handle("/admin/review-queue/", resolveHandler)

	// System Info
	mux.HandleFunc("/system/info", func(w http.ResponseWriter, r *http.Request) {
		displayStorage := "SQLite"
		if cfg.DBDriver == "postgres" || cfg.DBDriver == "postgrespool" {
			displayStorage = "PostgreSQL"
		} else if cfg.DBDriver != "sqlite" {
			displayStorage = cfg.DBDriver
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"storage":        displayStorage,
			"calc_version":   cfg.CalcVersion,
			"engine_version": cfg.EngineVersion,
		})
	})

	// Settings API
	mux.HandleFunc("/settings/refresh-interval", handleRefreshInterval(st))

	// Swagger API documentation
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"service": "planengine"})
	})

	return mux
}

// handleHomeEstimates serves GET /homes/{homeID}/estimates, triggering a
// pipeline run on demand (reason=dashboard_bootstrap, spec §4.10 Inputs) and
// returning its resulting job snapshot. The response does not include the
// materialized estimates themselves.
func handleHomeEstimates(orch *pipeline.Orchestrator, repos storage.PipelineRepos) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := strings.TrimPrefix(r.URL.Path, "/homes/")
		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "estimates" {
			metrics.RequestErrorsTotal.WithLabelValues(r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}
		homeID := parts[0]

		labelsPath := "/homes/estimates"
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(labelsPath).Observe(time.Since(start).Seconds())
		}()
		metrics.RequestsTotal.WithLabelValues(labelsPath).Inc()

		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		addr, ok, err := repos.HouseAddresses.Get(r.Context(), homeID)
		if err != nil || !ok {
			metrics.RequestErrorsTotal.WithLabelValues(labelsPath, "404").Inc()
			http.Error(w, "home not found", http.StatusNotFound)
			return
		}

		job, runErr := orch.Run(r.Context(), pipeline.RunInput{
			HomeID:   homeID,
			Reason:   pipeline.ReasonDashboardBootstrap,
			IsRenter: addr.IsRenter,
			Budgets:  pipeline.DefaultBudgets(),
		})
		if runErr != nil {
			log.Printf("pipeline run for home %s failed: %v", homeID, runErr)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"job": job,
		})
	}
}

// handleReviewQueue serves GET /admin/review-queue (list) and
// POST /admin/review-queue/{kind}/{dedupeKey}/resolve, the Admin Review
// Queue's read and resolve operations (spec §4.11).
func handleReviewQueue(repos storage.PipelineRepos) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		labelsPath := "/admin/review-queue"
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(labelsPath).Observe(time.Since(start).Seconds())
		}()
		metrics.RequestsTotal.WithLabelValues(labelsPath).Inc()

		if r.URL.Path == "/admin/review-queue" {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if repos.QueueList == nil {
				http.Error(w, "review queue listing unavailable", http.StatusNotImplemented)
				return
			}
			items, err := repos.QueueList.List()
			if err != nil {
				metrics.RequestErrorsTotal.WithLabelValues(labelsPath, "500").Inc()
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(items)
			return
		}

		// /admin/review-queue/{kind}/{dedupeKey}/resolve
		rest := strings.TrimPrefix(r.URL.Path, "/admin/review-queue/")
		parts := strings.Split(rest, "/")
		if len(parts) != 3 || parts[2] != "resolve" {
			metrics.RequestErrorsTotal.WithLabelValues(labelsPath, "404").Inc()
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			ResolvedBy string `json:"resolved_by"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResolvedBy == "" {
			req.ResolvedBy = "admin"
		}

		if err := repos.Queue.Resolve(queue.Kind(parts[0]), parts[1], req.ResolvedBy, time.Now()); err != nil {
			metrics.RequestErrorsTotal.WithLabelValues(labelsPath, "500").Inc()
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func handleRefreshInterval(st storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method == http.MethodGet {
			val, err := st.GetSetting(ctx, "refresh_interval_seconds")
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if val == "" {
				val = "300"
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"interval": val})
			return
		}
		if r.Method == http.MethodPost {
			var req struct {
				Interval string `json:"interval"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if _, err := strconv.Atoi(req.Interval); err != nil {
				if _, cronErr := cron.ParseStandard(req.Interval); cronErr != nil {
					http.Error(w, "invalid interval or cron expression", http.StatusBadRequest)
					return
				}
			}
			if err := st.SetSetting(ctx, "refresh_interval_seconds", req.Interval); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// getUserID reads the authenticated request's user ID out of context, set by
// auth.Service.Middleware.
func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}
