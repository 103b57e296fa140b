package auth

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/entities"
)

var _ catalog.VisitCounter = (*SessionManager)(nil)

// Session data keys
const (
	SessionKeyUserID   = "user_id"
	SessionKeyUsername = "username"
	SessionKeyLoginAt  = "login_at"
	SessionKeyVisits   = "num_visits"
)

func init() {
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with application-specific methods.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager. Sessions live in
// the sqlite database next to the catalog; other drivers keep them in memory.
func NewSessionManager(sqlDB *sql.DB, driver config.DatabaseDriver, cfg config.Auth) (*SessionManager, error) {
	sm := scs.New()

	if driver == config.DriverPostgres {
		sm.Store = memstore.New()
	} else {
		if err := createSessionsTable(sqlDB); err != nil {
			return nil, err
		}
		sm.Store = sqlite3store.New(sqlDB)
	}

	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2 // Half of lifetime for inactivity

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteLaxMode // login redirects carry the cookie
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

func createSessionsTable(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	return err
}

// CreateSession creates a new session for a user after successful authentication.
func (sm *SessionManager) CreateSession(r *http.Request, user *entities.User) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	// Store user ID as int to match GetInt() retrieval
	sm.Put(r.Context(), SessionKeyUserID, int(user.ID))
	sm.Put(r.Context(), SessionKeyUsername, user.Username)
	sm.Put(r.Context(), SessionKeyLoginAt, time.Now())

	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetUserID retrieves the user ID from the session.
// Returns 0 if not authenticated.
func (sm *SessionManager) GetUserID(r *http.Request) uint {
	return uint(sm.GetInt(r.Context(), SessionKeyUserID))
}

func (sm *SessionManager) GetUsername(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyUsername)
}

func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	return sm.GetUserID(r) != 0
}

// IncrementVisits bumps the visit counter of the session loaded into ctx and
// returns the new value, so the first visit reports 1.
func (sm *SessionManager) IncrementVisits(ctx context.Context) (int, error) {
	n := sm.GetInt(ctx, SessionKeyVisits) + 1
	sm.Put(ctx, SessionKeyVisits, n)
	return n, nil
}
