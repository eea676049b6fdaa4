package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/handlers"
	"github.com/fulljjb/server/internal/hash"
	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/service"
	"github.com/fulljjb/server/internal/tokens"
	"github.com/fulljjb/server/internal/upload"
)

type sentMail struct {
	To   string
	Name string
	Link string
}

type stubMailer struct {
	sent []sentMail
	fail bool
}

func (m *stubMailer) SendConfirmation(to, name, link string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{To: to, Name: name, Link: link})
	return nil
}

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *tokens.Service
	Mailer *stubMailer
	A      *handlers.AuthHandler
	TH     *handlers.TechniqueHandler
	CH     *handlers.ChatHandler
	Gate   *service.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Technique{}, &models.ChatMessage{}))

	tok := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"))
	mailer := &stubMailer{}

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	return &testEnv{
		E:      echo.New(),
		DB:     db,
		Tokens: tok,
		Mailer: mailer,
		A: &handlers.AuthHandler{
			DB:          db,
			Tokens:      tok,
			Mailer:      mailer,
			FrontendURL: "http://localhost:5173",
		},
		TH: &handlers.TechniqueHandler{
			DB:       db,
			Uploads:  uploads,
			Validate: validator.New(),
		},
		CH:   &handlers.ChatHandler{Chat: &service.ChatService{DB: db}},
		Gate: &service.TokenService{DB: db, Tokens: tok},
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(t *testing.T, name, email, password string, confirmed bool) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  pwHash,
		Confirmed: confirmed,
		Role:      "user",
	}
	require.NoError(t, env.DB.Create(user).Error)
	return user
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
