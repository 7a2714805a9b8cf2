package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/apiclient"
	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/abdelhadiDevWeb/labocart/internal/cartview"
	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/config"
	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Storage:        storage.Options{Driver: storage.DriverFile, Dir: t.TempDir()},
		CartKey:        "cart",
		CatalogDriver:  catalog.DriverStatic,
		TaxRate:        decimal.RequireFromString("0.20"),
		CurrencySymbol: "€",
		LogLevel:       "info",
	}
}

// syncBuffer lets a running command write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCtx(ctx context.Context, cfg config.Config, out io.Writer, args ...string) error {
	cmd := newRootCmd(cfg)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCtx(context.Background(), cfg, &out, args...)
	return out.String(), err
}

func mustRun(t *testing.T, cfg config.Config, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, args...)
	require.NoError(t, err, "cartctl %v", args)
	return out
}

func TestCatalogCommands(t *testing.T) {
	cfg := testConfig(t)

	out := mustRun(t, cfg, "products", "-q", "adn")
	assert.Contains(t, out, "Test ADN paternité")
	assert.NotContains(t, out, "Analyse de l'eau")

	out = mustRun(t, cfg, "products", "-q", "radiographie")
	assert.Contains(t, out, "no products found")

	out = mustRun(t, cfg, "categories")
	assert.Equal(t, catalog.AllCategories, out[:len(catalog.AllCategories)])

	out = mustRun(t, cfg, "compare", "1", "2")
	assert.Contains(t, out, "Analyse de sang complète")
	assert.Contains(t, out, "Test ADN paternité")

	_, err := run(t, cfg, "compare", "1", "x")
	assert.Error(t, err)
	_, err = run(t, cfg, "compare", "1", "99")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCartCommands(t *testing.T) {
	cfg := testConfig(t)

	assert.Contains(t, mustRun(t, cfg, "cart", "list"), "cart is empty")

	mustRun(t, cfg, "cart", "add", "1", "2")
	mustRun(t, cfg, "cart", "add", "9")

	out := mustRun(t, cfg, "cart", "list")
	assert.Contains(t, out, "Analyse de sang complète")
	assert.Contains(t, out, "Analyse de l'eau")
	assert.Contains(t, out, "3 articles")
	assert.Contains(t, out, "307€")

	out = mustRun(t, cfg, "invoice")
	assert.Contains(t, out, "61,40€")
	assert.Contains(t, out, "368,40€")

	mustRun(t, cfg, "cart", "set", "1", "0")
	out = mustRun(t, cfg, "cart", "list")
	assert.NotContains(t, out, "Analyse de sang complète")
	assert.Contains(t, out, "1 articles")

	mustRun(t, cfg, "cart", "remove", "9")
	assert.Contains(t, mustRun(t, cfg, "cart", "list"), "cart is empty")

	_, err := run(t, cfg, "cart", "add", "404")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = run(t, cfg, "cart", "add", "1", "0")
	assert.Error(t, err)
	_, err = run(t, cfg, "cart", "set", "1", "-2")
	assert.Error(t, err)
}

func TestCartCommands_SeparateKeys(t *testing.T) {
	cfg := testConfig(t)

	mustRun(t, cfg, "--key", "cart-a", "cart", "add", "4")
	assert.Contains(t, mustRun(t, cfg, "--key", "cart-b", "cart", "list"), "cart is empty")
	assert.Contains(t, mustRun(t, cfg, "--key", "cart-a", "cart", "list"), "Test de dépistage")

	mustRun(t, cfg, "--key", "cart-a", "cart", "clear")
	assert.Contains(t, mustRun(t, cfg, "--key", "cart-a", "cart", "list"), "cart is empty")
}

func TestPurchase(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "purchase")
	assert.ErrorIs(t, err, cartview.ErrEmptyCart)

	mustRun(t, cfg, "cart", "add", "2")
	out := mustRun(t, cfg, "purchase")
	assert.Contains(t, out, "238,80€")
	assert.Contains(t, out, "purchase confirmed")

	assert.Contains(t, mustRun(t, cfg, "cart", "list"), "cart is empty")
}

func TestWatch(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- runCtx(ctx, cfg, &out, "watch") }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("cart is empty"))
	}, 5*time.Second, 20*time.Millisecond)

	mustRun(t, cfg, "cart", "add", "8")
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Test génétique"))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func backend(t *testing.T, role string) *httptest.Server {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: "client@example.com",
		Role:  role,
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/client/login", func(w http.ResponseWriter, r *http.Request) {
		var creds apiclient.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		w.Header().Set("Content-Type", "application/json")
		if creds.Password != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "token": token})
	})
	mux.HandleFunc("/client/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Compte créé", "token": token})
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"message":"Non authentifié"}`))
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/client/profile", authed(func(w http.ResponseWriter, r *http.Request) {
		profile := apiclient.ClientData{FirstName: "Amina", LastName: "Benali", Email: "client@example.com"}
		if r.Method == http.MethodPut {
			var form apiclient.ProfileUpdate
			_ = json.NewDecoder(r.Body).Decode(&form)
			profile.FirstName, profile.LastName, profile.Phone = form.FirstName, form.LastName, form.Phone
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": profile})
	}))
	mux.HandleFunc("/client/password", authed(func(w http.ResponseWriter, r *http.Request) {
		var form apiclient.PasswordUpdate
		_ = json.NewDecoder(r.Body).Decode(&form)
		if form.CurrentPassword != "Secret123" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Mot de passe actuel incorrect"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	mux.HandleFunc("/client/devices", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": apiclient.DeviceList{
			Devices: []apiclient.Device{{ID: "d1", Name: "Laptop", Type: "desktop", Browser: "Firefox", LastActive: "now", Current: true}},
		}})
	}))
	mux.HandleFunc("/supplier/documents", authed(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil || len(r.MultipartForm.File) != 3 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"bad upload"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Documents reçus"})
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAccountCommands(t *testing.T) {
	cfg := testConfig(t)
	srv := backend(t, auth.RoleClient)

	assert.Contains(t, mustRun(t, cfg, "whoami"), "not logged in")

	_, err := run(t, cfg, "--api", srv.URL, "login", "--email", "client@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	out := mustRun(t, cfg, "--api", srv.URL, "login", "--email", "client@example.com", "--password", "Secret123")
	assert.Contains(t, out, "logged in as client")

	out = mustRun(t, cfg, "whoami")
	assert.Contains(t, out, "role: client")
	assert.Contains(t, out, "client@example.com")

	mustRun(t, cfg, "cart", "add", "3")
	assert.Contains(t, mustRun(t, cfg, "logout"), "logged out")
	assert.Contains(t, mustRun(t, cfg, "whoami"), "not logged in")
	assert.Contains(t, mustRun(t, cfg, "cart", "list"), "cart is empty")
}

func TestRegister(t *testing.T) {
	cfg := testConfig(t)
	srv := backend(t, auth.RoleClient)

	_, err := run(t, cfg, "--api", srv.URL, "register",
		"--first-name", "Amina", "--last-name", "Benali", "--email", "amina@example.com",
		"--password", "Secret123", "--confirm-password", "Secret124")
	require.Error(t, err)
	assert.Contains(t, err.Error(), apiclient.MsgPasswordMismatch)
	assert.Contains(t, mustRun(t, cfg, "whoami"), "not logged in")

	out := mustRun(t, cfg, "--api", srv.URL, "register",
		"--first-name", "Amina", "--last-name", "Benali", "--email", "amina@example.com",
		"--password", "Secret123", "--confirm-password", "Secret123")
	assert.Contains(t, out, "Compte créé")
	assert.Contains(t, mustRun(t, cfg, "whoami"), "role: client")
}

func TestProfileCommands(t *testing.T) {
	cfg := testConfig(t)
	srv := backend(t, auth.RoleClient)

	_, err := run(t, cfg, "--api", srv.URL, "profile")
	assert.ErrorIs(t, err, apiclient.ErrNotAuthenticated)

	mustRun(t, cfg, "--api", srv.URL, "login", "--email", "client@example.com", "--password", "Secret123")

	out := mustRun(t, cfg, "--api", srv.URL, "profile")
	assert.Contains(t, out, "name: Amina Benali")
	assert.Contains(t, out, "email: client@example.com")

	out = mustRun(t, cfg, "--api", srv.URL, "profile", "update", "--first-name", "Amina", "--last-name", "Haddad", "--phone", "0550")
	assert.Contains(t, out, "name: Amina Haddad")
	assert.Contains(t, out, "phone: 0550")

	_, err = run(t, cfg, "--api", srv.URL, "profile", "update", "--first-name", "Amina")
	assert.ErrorContains(t, err, "invalid form")

	out = mustRun(t, cfg, "--api", srv.URL, "devices")
	assert.Contains(t, out, "Laptop")
	assert.Contains(t, out, "(this device)")
}

func TestPasswordCommand(t *testing.T) {
	cfg := testConfig(t)
	srv := backend(t, auth.RoleClient)
	mustRun(t, cfg, "--api", srv.URL, "login", "--email", "client@example.com", "--password", "Secret123")

	_, err := run(t, cfg, "--api", srv.URL, "password", "--current", "Secret123", "--new", "Nouveau123", "--confirm", "Nouveau124")
	assert.ErrorContains(t, err, apiclient.MsgPasswordMismatch)

	_, err = run(t, cfg, "--api", srv.URL, "password", "--current", "wrong", "--new", "Nouveau123", "--confirm", "Nouveau123")
	assert.ErrorContains(t, err, "Mot de passe actuel incorrect")

	out := mustRun(t, cfg, "--api", srv.URL, "password", "--current", "Secret123", "--new", "Nouveau123", "--confirm", "Nouveau123")
	assert.Contains(t, out, "password changed")
}

func TestUploadDocumentsCommand(t *testing.T) {
	cfg := testConfig(t)
	srv := backend(t, auth.RoleSupplier)
	mustRun(t, cfg, "--api", srv.URL, "login", "--email", "client@example.com", "--password", "Secret123")

	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))
		return path
	}
	tax, id, rc, png := write("tax.pdf"), write("identity.pdf"), write("rc.pdf"), write("scan.png")

	_, err := run(t, cfg, "--api", srv.URL, "upload-documents", "--tax-number", tax)
	assert.ErrorContains(t, err, apiclient.MsgMissingDocuments)

	_, err = run(t, cfg, "--api", srv.URL, "upload-documents", "--tax-number", tax, "--identity", id, "--commercial-register", png)
	assert.ErrorContains(t, err, apiclient.MsgNotPDF)

	_, err = run(t, cfg, "--api", srv.URL, "upload-documents", "--tax-number", tax, "--identity", id, "--commercial-register", filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	out := mustRun(t, cfg, "--api", srv.URL, "upload-documents", "--tax-number", tax, "--identity", id, "--commercial-register", rc)
	assert.Contains(t, out, "Documents reçus")
}

func TestDefaultStorageDriver(t *testing.T) {
	tests := []struct {
		configured string
		want       string
	}{
		{"", storage.DriverFile},
		{storage.DriverMemory, storage.DriverFile},
		{storage.DriverFile, storage.DriverFile},
		{storage.DriverRedis, storage.DriverRedis},
		{storage.DriverMongo, storage.DriverMongo},
	}
	for _, tt := range tests {
		t.Run(tt.configured, func(t *testing.T) {
			cfg := config.Config{Storage: storage.Options{Driver: tt.configured}}
			assert.Equal(t, tt.want, defaultStorageDriver(cfg))

			cmd := newRootCmd(cfg)
			flag := cmd.PersistentFlags().Lookup("storage")
			require.NotNil(t, flag)
			assert.Equal(t, tt.want, flag.DefValue)
		})
	}
}
