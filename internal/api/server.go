package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/store"
)

// Options configures a Server beyond its storage handle.
type Options struct {
	// AdminToken guards the /admin surface. Empty disables admin routes
	// entirely rather than leaving them open.
	AdminToken string

	// AllowedOrigins is the CORS allowlist. Empty allows any origin,
	// which is only acceptable in development.
	AllowedOrigins []string

	// Now is injectable for daily-reset tests. Defaults to time.Now.
	Now func() time.Time
}

// Server handles the arcade backend's HTTP surface.
type Server struct {
	db   store.DB
	opts Options
}

// NewServer creates a new API server over db.
func NewServer(db store.DB, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{db: db, opts: opts}
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Heartbeat("/health"))
	r.Use(s.corsMiddleware)

	r.Post("/get_user", s.handleGetUser)
	r.Get("/get_user", s.handleGetUser)
	r.Post("/update_user", s.handleUpdateUser)
	r.Post("/update_game_score", s.handleUpdateGameScore)
	r.Post("/transaction", s.handleTransaction)
	r.Post("/start_game", s.handleStartGame)
	r.Post("/buy_games", s.handleBuyGames)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Post("/leaderboard", s.handleLeaderboard)
	r.Get("/daily_winner", s.handleDailyWinner)

	if s.opts.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Get("/users", s.handleAdminUsers)
			r.Get("/transactions", s.handleAdminTransactions)
			r.Post("/reset-balances", s.handleAdminResetBalances)
		})
	}

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// adminAuth requires the configured bearer token on operator routes.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.opts.AdminToken {
			log.Printf("admin_auth_rejected path=%s remote=%s", r.URL.Path, r.RemoteAddr)
			s.writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
