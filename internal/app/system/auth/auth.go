// internal/app/system/auth/auth.go

// Package auth resolves the calling student's identity from the session
// cookie and injects it into the request context. Login itself (roster
// claiming, SSO) lives upstream; this package only reads the session that
// upstream wrote. Engine packages never touch it — handlers extract the
// student ID here and pass it as an explicit parameter.
package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	isAuthKey    = "is_authenticated"
	studentIDKey = "student_id"
	orgIDKey     = "org_id"
	adminKey     = "is_admin"
)

// SessionStudent is what we cache in the session and inject into r.Context().
type SessionStudent struct {
	ID             primitive.ObjectID
	OrganizationID primitive.ObjectID
	Admin          bool
}

type ctxKey string

const currentStudentKey ctxKey = "currentStudent"

// SessionManager wraps the cookie store configuration.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	log   *zap.Logger
}

// NewSessionManager builds the cookie store. An empty key generates a
// random one, which invalidates sessions on restart; fine for development,
// wrong for production.
func NewSessionManager(key, name, domain string, secure bool, log *zap.Logger) *SessionManager {
	keyBytes := []byte(key)
	if key == "" {
		keyBytes = securecookie.GenerateRandomKey(32)
		log.Warn("session key not configured; generated a random key (sessions reset on restart)")
	}
	store := sessions.NewCookieStore(keyBytes)
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, name: name, log: log}
}

// CurrentStudent returns the student in context and a "found?" flag.
func CurrentStudent(r *http.Request) (*SessionStudent, bool) {
	s, ok := r.Context().Value(currentStudentKey).(*SessionStudent)
	return s, ok
}

// LoadSessionStudent injects the student into context if they are signed in.
func (m *SessionManager) LoadSessionStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := m.store.Get(r, m.name)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			sid, sidOK := parseID(sess.Values[studentIDKey])
			oid, oidOK := parseID(sess.Values[orgIDKey])
			if sidOK && oidOK {
				admin, _ := sess.Values[adminKey].(bool)
				r = withStudent(r, &SessionStudent{ID: sid, OrganizationID: oid, Admin: admin})
			}
		}
		next.ServeHTTP(w, r)
	})
}

func parseID(v any) (primitive.ObjectID, bool) {
	hex, ok := v.(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func withStudent(r *http.Request, s *SessionStudent) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentStudentKey, s))
}

// WithTestStudent injects a student directly into the request context,
// bypassing the cookie store. For handler tests only.
func WithTestStudent(r *http.Request, s *SessionStudent) *http.Request {
	return withStudent(r, s)
}
