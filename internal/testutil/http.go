// internal/testutil/http.go
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hallmatch/hallmatch/internal/app/system/auth"
)

// TestStudent is the identity handler tests inject in place of a session.
type TestStudent struct {
	ID             primitive.ObjectID
	OrganizationID primitive.ObjectID
	Admin          bool
}

// StudentIdentity returns a TestStudent for an existing roster entry.
func StudentIdentity(studentID, orgID primitive.ObjectID) TestStudent {
	return TestStudent{ID: studentID, OrganizationID: orgID}
}

// AdminIdentity returns a TestStudent with the admin flag set.
func AdminIdentity(orgID primitive.ObjectID) TestStudent {
	return TestStudent{ID: primitive.NewObjectID(), OrganizationID: orgID, Admin: true}
}

// WithStudent adds a student to the request context for testing
// authenticated handlers, bypassing the session middleware.
func WithStudent(r *http.Request, s TestStudent) *http.Request {
	return auth.WithTestStudent(r, &auth.SessionStudent{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		Admin:          s.Admin,
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates a request carrying a JSON body.
func NewJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with a student in context.
func NewAuthenticatedRequest(method, target string, s TestStudent) *http.Request {
	return WithStudent(httptest.NewRequest(method, target, nil), s)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
