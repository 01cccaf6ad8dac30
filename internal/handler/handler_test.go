package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"museum_nav/internal/auth"
	"museum_nav/internal/models"
	"museum_nav/internal/service"
	"museum_nav/internal/storage"
)

type testServer struct {
	router *gin.Engine
	store  *storage.MemoryStorage
	tokens *auth.TokenService
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *string         `json:"error"`
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStorage()
	tokens := auth.NewTokenService([]byte("handler-secret"), time.Hour, auth.NewMemoryRevocationStore(), log)
	svc := service.New(store, tokens, service.Config{
		BcryptCost:          bcrypt.MinCost,
		IDAttempts:          3,
		WalkingSpeedKmh:     5,
		DeviationThresholdM: 50,
		StopPenalty:         120 * time.Second,
		MinutesPerExhibit:   10,
		PersonalizedLimit:   5,
	}, log)

	return &testServer{
		router: NewHandler(svc, opts, log).InitRoutes(),
		store:  store,
		tokens: tokens,
	}
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(token string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }
}

func (s *testServer) do(t *testing.T, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// userToken stores a user and returns a valid token for it.
func (s *testServer) userToken(t *testing.T, id int64, username string) string {
	t.Helper()

	require.NoError(t, s.store.Users().Create(context.Background(), models.User{
		ID:                       id,
		Username:                 username,
		Email:                    username + "@example.com",
		Role:                     models.RoleUser,
		Preferences:              []string{"painting"},
		CreatedAt:                time.Now(),
		PersonalizationAvailable: true,
	}))

	token, err := s.tokens.Issue(models.Principal{UserID: id, Username: username, Role: models.RoleUser}, 0)
	require.NoError(t, err)
	return token
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()

	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func requireFailure(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	require.Equal(t, status, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, message, env.Message)
	require.NotNil(t, env.Error)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"Str0ng!Pass"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.NotContains(t, string(env.Data), "password")

	w = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Str0ng!Pass"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &login))
	assert.Equal(t, "alice", login.User.Username)
	require.NotEmpty(t, login.Token)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, login.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookies[0].MaxAge)

	w = s.do(t, http.MethodGet, "/api/auth/me", "", withCookie(login.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me models.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &me))
	assert.Equal(t, login.User.ID, me.ID)
}

func TestLogin_SecureCookieInProduction(t *testing.T) {
	s := newTestServer(t, Options{Production: true})

	w := s.do(t, http.MethodPost, "/api/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"Str0ng!Pass"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Str0ng!Pass"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, w.Result().Cookies(), 1)
	assert.True(t, w.Result().Cookies()[0].Secure)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing fields", `{"username":"alice"}`, service.MsgRegisterFieldsRequired},
		{"empty body", ``, service.MsgRegisterFieldsRequired},
		{"non-string username", `{"username":123,"email":"a@b.co","password":"Str0ng!Pass"}`, msgInvalidInputTypes},
		{"malformed json", `{"username":`, msgInvalidRequest},
		{"weak password", `{"username":"alice","email":"alice@example.com","password":"short"}`, auth.MsgPasswordLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Options{})
			w := s.do(t, http.MethodPost, "/api/auth/register", tt.body)
			requireFailure(t, w, http.StatusBadRequest, tt.message)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestServer(t, Options{})
	body := `{"username":"alice","email":"alice@example.com","password":"Str0ng!Pass"}`

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/auth/register", body).Code)
	requireFailure(t, s.do(t, http.MethodPost, "/api/auth/register", body), http.StatusConflict, service.MsgUserExists)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"Str0ng!Pass"}`)
	requireFailure(t, w, http.StatusUnauthorized, service.MsgInvalidCredentials)

	w = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ghost"}`)
	requireFailure(t, w, http.StatusBadRequest, service.MsgLoginFieldsRequired)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	requireFailure(t, s.do(t, http.MethodGet, "/api/auth/me", ""), http.StatusUnauthorized, service.MsgTokenRequired)
	requireFailure(t, s.do(t, http.MethodGet, "/api/auth/me", "", withBearer("garbage")), http.StatusForbidden, service.MsgTokenInvalid)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/auth/me", "", withBearer(token)).Code)

	// The cookie wins over a bearer header.
	w := s.do(t, http.MethodGet, "/api/auth/me", "", withCookie(token), withBearer("garbage"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	w := s.do(t, http.MethodPost, "/api/auth/logout", "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)

	requireFailure(t, s.do(t, http.MethodGet, "/api/auth/me", "", withBearer(token)), http.StatusUnauthorized, service.MsgTokenRevoked)

	t.Run("without a token", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/auth/logout", "").Code)
	})

	t.Run("with a malformed token", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/auth/logout", "", withBearer("not.a.jwt")).Code)
	})
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Options{LoginRatePerMinute: 2})
	body := `{"username":"ghost","password":"Str0ng!Pass"}`

	for range 2 {
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/auth/login", body).Code)
	}
	requireFailure(t, s.do(t, http.MethodPost, "/api/auth/login", body), http.StatusTooManyRequests, msgTooManyRequests)
}

func TestRateLimiter_IdleReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(2 * time.Hour)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func (s *testServer) calculate(t *testing.T, token string) int64 {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/routes", `{"destinationId":1,"startLat":40.7790,"startLng":-73.9640}`, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary models.RouteSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &summary))
	require.NotZero(t, summary.RouteID)
	assert.Equal(t, int64(1), summary.DestinationID)
	_, err := time.Parse(time.RFC3339, summary.CalculationTime)
	require.NoError(t, err)
	return summary.RouteID
}

func TestCalculateRoute_Rejections(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"latitude out of range", `{"destinationId":1,"startLat":91,"startLng":0}`, http.StatusBadRequest, service.MsgInvalidCoordinates},
		{"longitude out of range", `{"destinationId":1,"startLat":0,"startLng":-181}`, http.StatusBadRequest, service.MsgInvalidCoordinates},
		{"string destination", `{"destinationId":"1","startLat":0,"startLng":0}`, http.StatusBadRequest, msgInvalidInputTypes},
		{"string latitude", `{"destinationId":1,"startLat":"40.7","startLng":0}`, http.StatusBadRequest, msgInvalidInputTypes},
		{"malformed json", `{"destinationId":1,`, http.StatusBadRequest, msgInvalidRequest},
		{"missing start", `{"destinationId":1}`, http.StatusBadRequest, "startLat is required"},
		{"unknown destination", `{"destinationId":99,"startLat":0,"startLng":0}`, http.StatusNotFound, service.MsgDestinationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireFailure(t, s.do(t, http.MethodPost, "/api/routes", tt.body, withBearer(token)), tt.status, tt.message)
		})
	}
}

func TestRouteLifecycle(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")
	routeID := s.calculate(t, token)
	path := "/api/routes/" + itoa(routeID)

	w := s.do(t, http.MethodGet, path, "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var route models.Route
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &route))
	assert.Equal(t, routeID, route.ID)
	assert.Len(t, route.Path, 4)

	w = s.do(t, http.MethodGet, path+"?walkingSpeed=2.5", "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var slower models.Route
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &slower))
	assert.Greater(t, slower.EstimatedTime, route.EstimatedTime)

	requireFailure(t, s.do(t, http.MethodGet, path+"?walkingSpeed=fast", "", withBearer(token)), http.StatusBadRequest, service.MsgInvalidSpeed)
	requireFailure(t, s.do(t, http.MethodGet, path+"?walkingSpeed=0", "", withBearer(token)), http.StatusBadRequest, service.MsgInvalidSpeed)

	w = s.do(t, http.MethodPut, path+"/stops", `{"addStops":[3,7]}`, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var update service.StopsUpdate
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &update))
	assert.Equal(t, []int64{3, 7}, update.Stops)
	assert.Equal(t, route.EstimatedTime+240, update.EstimatedTime)

	requireFailure(t, s.do(t, http.MethodPut, path+"/stops", `{"addStops":[]}`, withBearer(token)), http.StatusBadRequest, service.MsgStopsRequired)
	requireFailure(t, s.do(t, http.MethodPut, path+"/stops", `{"addStops":"3"}`, withBearer(token)), http.StatusBadRequest, msgInvalidInputTypes)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, path+"/recalculate", "", withBearer(token)).Code)

	w = s.do(t, http.MethodGet, "/api/routes", "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Route
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &list))
	require.Len(t, list, 1)

	w = s.do(t, http.MethodDelete, path, "", withBearer(token))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	requireFailure(t, s.do(t, http.MethodGet, path, "", withBearer(token)), http.StatusNotFound, service.MsgRouteNotFound)
}

func TestRouteOwner(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.userToken(t, 1, "alice")
	bob := s.userToken(t, 2, "bob")
	routeID := s.calculate(t, alice)

	requireFailure(t, s.do(t, http.MethodGet, "/api/routes/999", "", withBearer(bob)), http.StatusNotFound, service.MsgRouteNotFound)
	requireFailure(t, s.do(t, http.MethodGet, "/api/routes/"+itoa(routeID), "", withBearer(bob)), http.StatusForbidden, service.MsgAccessDenied)
	requireFailure(t, s.do(t, http.MethodDelete, "/api/routes/"+itoa(routeID), "", withBearer(bob)), http.StatusForbidden, service.MsgAccessDenied)
	requireFailure(t, s.do(t, http.MethodGet, "/api/routes/abc", "", withBearer(bob)), http.StatusBadRequest, msgInvalidRouteID)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/routes/"+itoa(routeID), "", withBearer(alice)).Code)
}

func TestPersonalizedRoute(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	w := s.do(t, http.MethodGet, "/api/routes/personalized", "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var route service.PersonalizedRoute
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &route))
	assert.True(t, route.IsPersonalized)
	assert.Equal(t, []int64{3, 4, 7}, route.Stops)
	assert.Equal(t, 3*10*60, route.EstimatedTime)

	w = s.do(t, http.MethodPut, "/api/users/me/preferences", `{"preferences":[]}`, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	requireFailure(t, s.do(t, http.MethodGet, "/api/routes/personalized", "", withBearer(token)), http.StatusBadRequest, service.MsgMissingPreferences)
}

func TestNotify(t *testing.T) {
	s := newTestServer(t, Options{})
	alice := s.userToken(t, 1, "alice")
	bob := s.userToken(t, 2, "bob")
	routeID := s.calculate(t, alice)

	w := s.do(t, http.MethodPost, "/api/notifications",
		`{"routeId":`+itoa(routeID)+`,"currentLat":40.7790,"currentLng":-73.9640}`, withBearer(alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.NotifyResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, models.NotificationInfo, res.Type)
	assert.Equal(t, service.MsgOnTrack, res.Message)

	w = s.do(t, http.MethodPost, "/api/notifications",
		`{"routeId":`+itoa(routeID)+`,"currentLat":40.79,"currentLng":-73.95}`, withBearer(alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, models.NotificationRouteDeviation, res.Type)
	assert.NotZero(t, res.NotificationID)

	requireFailure(t, s.do(t, http.MethodPost, "/api/notifications",
		`{"routeId":`+itoa(routeID)+`,"currentLat":40.79,"currentLng":-73.95}`, withBearer(bob)), http.StatusForbidden, service.MsgAccessDenied)
	requireFailure(t, s.do(t, http.MethodPost, "/api/notifications",
		`{"routeId":999,"currentLat":40.79,"currentLng":-73.95}`, withBearer(alice)), http.StatusNotFound, service.MsgRouteNotFound)
	requireFailure(t, s.do(t, http.MethodPost, "/api/notifications",
		`{"routeId":1,"currentLat":"north","currentLng":-73.95}`, withBearer(alice)), http.StatusBadRequest, msgInvalidInputTypes)

	w = s.do(t, http.MethodGet, "/api/notifications", "", withBearer(alice))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Notification
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationInfo, list[0].Type)
	assert.Equal(t, models.NotificationRouteDeviation, list[1].Type)
}

func TestSync(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	for _, body := range []string{`{"operations":{"operation_type":"rating"}}`, `{"operations":"x"}`, `{}`} {
		requireFailure(t, s.do(t, http.MethodPost, "/api/sync", body, withBearer(token)), http.StatusBadRequest, msgOperationsArray)
	}

	w := s.do(t, http.MethodPost, "/api/sync", `{"operations":[
		{"operation_type":"rating","exhibit_id":1,"rating":5},
		{"operation_type":"add_favorite","exhibit_id":2},
		{"operation_type":"rating","exhibit_id":999,"rating":4},
		{"operation_type":"teleport","exhibit_id":1}
	]}`, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.SyncResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, res.Conflicts)
	require.Len(t, res.Details.Failed, 2)
	assert.Equal(t, service.MsgExhibitNotFound, res.Details.Failed[0].Reason)
}

func TestSync_IllTypedItemFailsAlone(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")

	w := s.do(t, http.MethodPost, "/api/sync", `{"operations":[
		{"operation_type":"add_favorite","exhibit_id":2},
		{"operation_type":"rating","exhibit_id":1,"rating":"5"},
		{"operation_type":"add_favorite","exhibit_id":3}
	]}`, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.SyncResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Details.Failed, 1)
	assert.Equal(t, msgInvalidInputTypes, res.Details.Failed[0].Reason)
	assert.Equal(t, models.SyncRating, res.Details.Failed[0].Operation.OperationType)
	assert.Equal(t, int64(1), res.Details.Failed[0].Operation.ExhibitID)

	user, err := s.store.Users().FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, user.Favourites)

	exhibit, err := s.store.Exhibits().FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, exhibit.RatingCount)
}

func TestListExhibits(t *testing.T) {
	s := newTestServer(t, Options{})
	token := s.userToken(t, 1, "alice")
	require.NoError(t, s.store.Users().AddFavorite(context.Background(), 1, 7))

	var anonymous []service.ExhibitView
	w := s.do(t, http.MethodGet, "/api/exhibits", "", withBearer("garbage"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &anonymous))
	require.Len(t, anonymous, 8)
	for _, e := range anonymous {
		assert.False(t, e.Favourite)
	}

	var viewed []service.ExhibitView
	w = s.do(t, http.MethodGet, "/api/exhibits", "", withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &viewed))
	for _, e := range viewed {
		assert.Equal(t, e.ID == 7, e.Favourite, "exhibit %d", e.ID)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Options{})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)

	w := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
