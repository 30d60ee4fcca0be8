package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const TokenHeader = "X-TRACKER-TOKEN"

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=auth_test

type sessionManager interface {
	Login(ctx context.Context, accessCode string) (*Session, error)
	Logout(ctx context.Context, token string) (*Session, error)
}

// logoutListener tears down per-user state when a session ends.
type logoutListener interface {
	Evict(userID string)
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  workout.User `json:"user"`
}

type Handler struct {
	sessions       sessionManager
	logoutListener logoutListener
	metricsManager *metrics.Manager
}

func NewHandler(
	sessions sessionManager,
	logoutListener logoutListener,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		sessions:       sessions,
		logoutListener: logoutListener,
		metricsManager: metricsManager,
	}
}

// SetupRoutes registers login, logout and session routes on the given (sub)router.
func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/login", handler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/logout", handler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	r.HandleFunc("/session", handler.HandleSession).Methods("GET", "OPTIONS").Name("session")
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	type loginRequest struct {
		AccessCode string `json:"accessCode"`
	}

	var loginReq loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusBadRequest)
			return
		}
		loginReq.AccessCode = r.Form.Get("accessCode")
	}

	session, err := handler.sessions.Login(ctx, loginReq.AccessCode)
	if errors.Is(err, ErrInvalidAccessCode) {
		handler.metricsManager.CounterLogins.WithLabelValues("failed").Inc()
		log.Tracef("failed login attempt")
		http.Error(w, "invalid access code", http.StatusUnauthorized)
		return
	}
	if err != nil {
		handler.metricsManager.CounterLogins.WithLabelValues("error").Inc()
		log.Errorf("login failed: %s", err)
		http.Error(w, "login error", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterLogins.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("user.id", session.User.ID))

	respJson, err := json.Marshal(LoginResponse{
		Token: session.Token,
		User:  session.User,
	})
	if err != nil {
		log.Errorf("marshal login response: %s", err)
		http.Error(w, "login error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success for user [%s]", session.User.ID)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get(TokenHeader)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	session, err := handler.sessions.Logout(ctx, authToken)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Errorf("logout failed: %s", err)
		http.Error(w, "logout error", http.StatusInternalServerError)
		return
	}

	handler.logoutListener.Evict(session.User.ID)
	pkg.WriteTextResponseOK(w, "logged-out")
}

// HandleSession returns the session restored by the auth middleware.
func (handler *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	session, ok := FromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("marshal session: %s", err)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, sessionJson)
}
