package drive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestMultipartBody(t *testing.T) {
	b, err := MultipartBody(File{Name: "r.pdf", Content: "QUJD"})
	require.NoError(t, err)
	want := "\r\n--foo_bar_baz\r\n" +
		"Content-Type: application/json; charset=UTF-8\r\n\r\n" +
		`{"name":"r.pdf","mimeType":"application/pdf"}` +
		"\r\n--foo_bar_baz\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		"QUJD" +
		"\r\n--foo_bar_baz--"
	require.Equal(t, want, string(b))
}

func TestUploadSuccess(t *testing.T) {
	var gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"abc123","name":"r.xlsx"}`)
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Client: srv.Client()}
	res, err := u.Upload(context.Background(), File{Name: "r.xlsx", Content: "QUJD", MimeType: "application/vnd.ms-excel"}, "tok")
	require.NoError(t, err)
	require.Equal(t, "abc123", res.ID)
	require.Equal(t, "https://drive.google.com/file/d/abc123/view", res.URL)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "multipart/related; boundary=foo_bar_baz", gotType)
	require.Contains(t, gotBody, "Content-Type: application/vnd.ms-excel\r\n")
}

func TestUploadAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"quota exceeded"}}`)
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Client: srv.Client()}
	_, err := u.Upload(context.Background(), File{Name: "r.pdf", Content: "QUJD"}, "tok")
	require.Error(t, err)
	require.Equal(t, "Google Drive API Error: quota exceeded", err.Error())

	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	require.Equal(t, http.StatusForbidden, uerr.StatusCode)
	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, http.StatusForbidden, gerr.Code)
}

func TestUploadErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	u := &Uploader{Endpoint: srv.URL, Client: srv.Client()}
	_, err := u.Upload(context.Background(), File{Name: "r.pdf"}, "expired")
	require.EqualError(t, err, "Google Drive API Error: Unauthorized")
}

func TestUploadNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	u := &Uploader{Endpoint: url, Client: &http.Client{Timeout: time.Second}}
	_, err := u.Upload(context.Background(), File{Name: "r.pdf"}, "tok")
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	require.Zero(t, uerr.StatusCode)
}

func TestOAuthTokenProvider(t *testing.T) {
	ctx := context.Background()
	_, err := NewOAuthTokenProvider(ctx, OAuthConfig{})
	require.ErrorIs(t, err, ErrTokenProviderUnavailable)

	_, err = NewOAuthTokenProvider(ctx, OAuthConfig{ClientID: "id"})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"at","token_type":"Bearer","expiry":"`+expiry+`"}`), 0o600))

	p, err := NewOAuthTokenProvider(ctx, OAuthConfig{ClientID: "id", ClientSecret: "s", TokenFile: path})
	require.NoError(t, err)
	tok, err := p.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "at", tok)

	cfg := OAuth2Config("id", "s", "")
	require.Equal(t, []string{"https://www.googleapis.com/auth/drive.file"}, cfg.Scopes)
}

func TestStaticToken(t *testing.T) {
	_, err := StaticToken(" ").AccessToken(context.Background())
	require.Error(t, err)
	tok, err := StaticToken("x").AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "x", tok)
}
