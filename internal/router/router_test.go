package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rescueboard/internal/auth"
	"rescueboard/internal/cache"
	"rescueboard/internal/config"
	"rescueboard/internal/db"
	"rescueboard/internal/handler"
	"rescueboard/internal/model"
	"rescueboard/internal/notification"
	"rescueboard/internal/repository"
	"rescueboard/internal/service"
	"rescueboard/internal/storage"
	"rescueboard/internal/validation"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type testApp struct {
	e     *echo.Echo
	db    *gorm.DB
	fs    afero.Fs
	redis *miniredis.Miniredis
}

func newTestApp(t *testing.T, configure ...func(*config.Config)) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	gormDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{
		AppURL:      "http://rescue.test",
		CORSOrigins: []string{"*"},
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
	}
	for _, fn := range configure {
		fn(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cacheClient := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cacheClient.Close() })

	fs := afero.NewMemMapFs()
	localStore := storage.NewLocalStoreFs(fs, cfg.StoragePublicURL())

	userRepo := repository.NewUserRepository(gormDB)
	foodRepo := repository.NewFoodRepository(gormDB)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	v := validation.New()

	userService := service.NewUserService(userRepo, cacheClient)
	authService := service.NewAuthService(userRepo, userService, jwtService, auth.NewTokenStore(cacheClient), v)
	foodService := service.NewFoodService(foodRepo, userRepo, localStore, notification.Noop{}, v, logger, service.FoodServiceOptions{
		AdminOnlyListings: cfg.AdminOnlyListings,
	})

	e := echo.New()
	Register(e, Deps{
		Config:      cfg,
		Logger:      logger,
		Validator:   v,
		JWTService:  jwtService,
		AuthService: authService,
		AuthHandler: handler.NewAuthHandler(authService),
		FoodHandler: handler.NewFoodHandler(foodService),
		LocalStore:  localStore,
	})

	return &testApp{e: e, db: gormDB, fs: fs, redis: mr}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postFood(t *testing.T, token string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/foods", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// register creates a student through the API and returns its token.
func (a *testApp) register(t *testing.T, name, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": "password", "password_confirmation": "password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Token
}

// admin inserts an admin row directly and logs in as it.
func (a *testApp) admin(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, a.db.Create(&model.User{
		Name: "Admin", Email: "admin@rezeki.com", PasswordHash: string(hash), Role: model.RoleAdmin,
	}).Error)

	rec := a.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "admin@rezeki.com", "password": "password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ali", "email": "Ali@Student.com", "password": "password", "password_confirmation": "password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered struct {
		Message string                 `json:"message"`
		User    map[string]interface{} `json:"user"`
		Token   string                 `json:"token"`
	}
	decode(t, rec, &registered)
	assert.Equal(t, "Registration successful", registered.Message)
	assert.Equal(t, "ali@student.com", registered.User["email"])
	assert.Equal(t, "student", registered.User["role"])
	assert.NotContains(t, registered.User, "password")
	assert.NotEmpty(t, registered.Token)

	// Duplicate email, any case
	rec = app.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ali", "email": "ALI@student.com", "password": "password", "password_confirmation": "password",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"message":"The email has already been taken.","errors":{"email":["The email has already been taken."]}}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ali@student.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials.","errors":{"email":["Invalid credentials."]}}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@student.com", "password": "password"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials.")

	rec = app.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ali@student.com", "password": "password"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	decode(t, rec, &second)
	assert.Equal(t, "Login successful", second.Message)

	rec = app.do(t, http.MethodGet, "/api/user", registered.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ali"`)

	rec = app.do(t, http.MethodPost, "/api/update-fcm", registered.Token, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "The fcm token field is required.")

	rec = app.do(t, http.MethodPost, "/api/update-fcm", registered.Token, map[string]string{"fcm_token": "device-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"FCM token updated"}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/user", second.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fcm_token":"device-1"`)

	// Logout revokes only the session it was called with
	rec = app.do(t, http.MethodPost, "/api/logout", registered.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/user", registered.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/user", second.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthenticated(t *testing.T) {
	app := newTestApp(t)

	for _, token := range []string{"", "not-a-jwt"} {
		rec := app.do(t, http.MethodGet, "/api/foods", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"message":"Unauthenticated."}`, rec.Body.String())
	}

	// A well-signed token without a session is rejected too
	_, token, err := auth.NewJWTService("test-secret", time.Hour).GenerateToken(1, "admin")
	require.NoError(t, err)
	rec := app.do(t, http.MethodGet, "/api/foods", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ali", "email": "not-an-email", "password": "abc", "password_confirmation": "abd",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "The email field must be a valid email address.", body.Message)
	assert.Contains(t, body.Errors, "email")
	assert.Contains(t, body.Errors, "password")
}

func TestFoodLifecycle(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "Alice", "alice@student.com")
	bob := app.register(t, "Bob", "bob@student.com")
	carol := app.register(t, "Carol", "carol@student.com")
	admin := app.admin(t)

	rec := app.postFood(t, alice, map[string]string{"title": "Pizza", "location": "Library"}, pngBytes)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var posted struct {
		Message string     `json:"message"`
		Food    model.Food `json:"food"`
	}
	decode(t, rec, &posted)
	assert.Equal(t, "Food posted successfully!", posted.Message)
	assert.Equal(t, model.FoodStatusAvailable, posted.Food.Status)
	require.NotNil(t, posted.Food.User)
	assert.Equal(t, "Alice", posted.Food.User.Name)
	require.NotNil(t, posted.Food.ImageURL)
	assert.True(t, strings.HasPrefix(*posted.Food.ImageURL, "http://rescue.test/storage/foods/"))
	assert.True(t, strings.HasSuffix(*posted.Food.ImageURL, ".png"))

	imagePath := strings.TrimPrefix(*posted.Food.ImageURL, "http://rescue.test")
	rec = app.do(t, http.MethodGet, imagePath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.postFood(t, alice, map[string]string{"title": "Kuih", "location": "Cafe", "description": "Two boxes"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second struct {
		Food model.Food `json:"food"`
	}
	decode(t, rec, &second)

	rec = app.postFood(t, alice, map[string]string{"title": "Bad"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "The location field is required.")

	rec = app.postFood(t, alice, map[string]string{"title": "Bad", "location": "Cafe"}, []byte("plain text, not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"image"`)

	foodPath := fmt.Sprintf("/api/foods/%d", posted.Food.ID)

	// Self-claim is forbidden
	rec = app.do(t, http.MethodPost, foodPath+"/claim", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"You cannot claim your own food."}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, foodPath+"/claim", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claimed struct {
		Message string     `json:"message"`
		Food    model.Food `json:"food"`
	}
	decode(t, rec, &claimed)
	assert.Equal(t, "Food claimed successfully!", claimed.Message)
	assert.Equal(t, model.FoodStatusTaken, claimed.Food.Status)
	require.NotNil(t, claimed.Food.Claimer)
	assert.Equal(t, "Bob", claimed.Food.Claimer.Name)
	assert.NotNil(t, claimed.Food.ClaimedAt)

	rec = app.do(t, http.MethodPost, foodPath+"/claim", carol, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"message":"Food is no longer available."}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, foodPath+"/claim", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/foods/9999/claim", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Listings
	var foods []model.Food
	rec = app.do(t, http.MethodGet, "/api/foods", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &foods)
	require.Len(t, foods, 1)
	assert.Equal(t, second.Food.ID, foods[0].ID)

	rec = app.do(t, http.MethodGet, "/api/foods?status=taken", bob, nil)
	decode(t, rec, &foods)
	require.Len(t, foods, 1)
	assert.Equal(t, posted.Food.ID, foods[0].ID)

	rec = app.do(t, http.MethodGet, "/api/foods?status=unknown", bob, nil)
	decode(t, rec, &foods)
	assert.Empty(t, foods)

	rec = app.do(t, http.MethodGet, "/api/foods/all", bob, nil)
	decode(t, rec, &foods)
	assert.Len(t, foods, 2)

	rec = app.do(t, http.MethodGet, "/api/my-foods", alice, nil)
	decode(t, rec, &foods)
	assert.Len(t, foods, 2)
	rec = app.do(t, http.MethodGet, "/api/my-foods", bob, nil)
	decode(t, rec, &foods)
	assert.Empty(t, foods)

	rec = app.do(t, http.MethodGet, "/api/foods/stats", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_foods":2,"available":1,"taken":1,"expired":0}`, rec.Body.String())

	// Deletion
	rec = app.do(t, http.MethodDelete, foodPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized. Admin only."}`, rec.Body.String())

	rec = app.do(t, http.MethodDelete, foodPath, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Food deleted successfully."}`, rec.Body.String())

	exists, err := afero.Exists(app.fs, strings.TrimPrefix(imagePath, "/storage"))
	require.NoError(t, err)
	assert.False(t, exists)

	rec = app.do(t, http.MethodDelete, foodPath, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/foods/all", admin, nil)
	decode(t, rec, &foods)
	require.Len(t, foods, 1)
	assert.Equal(t, second.Food.ID, foods[0].ID)
}

func TestAdminOnlyListings(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.AdminOnlyListings = true })
	student := app.register(t, "Ali", "ali@student.com")
	admin := app.admin(t)

	rec := app.do(t, http.MethodGet, "/api/foods/all", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/foods/stats", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/foods/stats", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.AuthRateLimit = 2 })

	creds := map[string]string{"email": "ghost@student.com", "password": "password"}
	for i := 0; i < 2; i++ {
		rec := app.do(t, http.MethodPost, "/api/login", "", creds)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	rec := app.do(t, http.MethodPost, "/api/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"message":"Too Many Attempts."}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rescue_http_requests_total")
}

func TestLostSessionIsUnauthenticated(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Ali", "ali@student.com")

	app.redis.FlushAll()
	rec := app.do(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateFoodRejectsBlankFields(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Ali", "ali@student.com")

	rec := app.postFood(t, token, map[string]string{"title": "   ", "location": "\t "}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "The title field is required.", body.Message)
	assert.Contains(t, body.Errors, "title")
	assert.Contains(t, body.Errors, "location")

	var count int64
	require.NoError(t, app.db.Model(&model.Food{}).Count(&count).Error)
	assert.Zero(t, count)

	rec = app.postFood(t, token, map[string]string{"title": "  Nasi Lemak  ", "location": " Cafe ", "description": "  "}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var posted struct {
		Food model.Food `json:"food"`
	}
	decode(t, rec, &posted)
	assert.Equal(t, "Nasi Lemak", posted.Food.Title)
	assert.Equal(t, "Cafe", posted.Food.Location)
	assert.Nil(t, posted.Food.Description)
}

func TestRegisterRejectsBlankName(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "   ", "email": "ali@student.com", "password": "secret1", "password_confirmation": "secret1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, []string{"The name field is required."}, body.Errors["name"])
}

func TestCreateFoodOversizedImage(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Ali", "ali@student.com")

	for _, size := range []int{service.MaxImageSize + 1024, 7 * 1024 * 1024} {
		image := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, size)...)
		rec := app.postFood(t, token, map[string]string{"title": "Pizza", "location": "Library"}, image)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "size %d", size)
		var body struct {
			Message string              `json:"message"`
			Errors  map[string][]string `json:"errors"`
		}
		decode(t, rec, &body)
		assert.Equal(t, "The image field must not be greater than 5120 kilobytes.", body.Message)
		assert.Contains(t, body.Errors, "image")
	}

	var count int64
	require.NoError(t, app.db.Model(&model.Food{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadLimitReportsImageSize(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.POST("/api/foods", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, uploadLimit("1K"))

	req := httptest.NewRequest(http.MethodPost, "/api/foods", bytes.NewReader(make([]byte, 4096)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "5120 kilobytes")
}
