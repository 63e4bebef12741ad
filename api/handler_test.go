package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbclass "github.com/gridbase/gridbase/db"
	"github.com/gridbase/gridbase/models"
)

func newTestServer(t *testing.T) *APIServer {
	t.Helper()
	conn, err := dbclass.Open(":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	return NewAPIServer(":0", conn, t.TempDir(), TokenMap{"token-1": "owner-1"})
}

func doRequest(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer token-1")
	return req
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, httptest.NewRequest("GET", "/tables", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/tables", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = doRequest(t, router, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, authed(httptest.NewRequest("GET", "/tables", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthSkipsAuth(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doRequest(t, router, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func uploadCSV(t *testing.T, router http.Handler, filename, contents string) map[string]any {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := authed(httptest.NewRequest("POST", "/upload", &body))
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := doRequest(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadAndFetchRoundtrip(t *testing.T) {
	router := newTestServer(t).Router()

	resp := uploadCSV(t, router, "cities.csv",
		"City,Population\nOslo,700000\nBergen,290000\n")

	table, _ := resp["tableName"].(string)
	require.NotEmpty(t, table)
	assert.True(t, strings.HasPrefix(table, "tbl_"))

	rec := doRequest(t, router, authed(httptest.NewRequest("GET", "/tables/"+table+"/data", nil)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page models.DataPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Oslo", page.Data[0]["City"])
	assert.EqualValues(t, 700000, page.Data[0]["Population"])
}

func TestUploadIsTenantScoped(t *testing.T) {
	conn, err := dbclass.Open(":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	server := NewAPIServer(":0", conn, t.TempDir(), TokenMap{
		"token-1": "owner-1",
		"token-2": "owner-2",
	})
	router := server.Router()

	resp := uploadCSV(t, router, "cities.csv", "City\nOslo\n")
	table, _ := resp["tableName"].(string)
	require.NotEmpty(t, table)

	req := httptest.NewRequest("GET", "/tables/"+table+"/data", nil)
	req.Header.Set("Authorization", "Bearer token-2")
	rec := doRequest(t, router, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTableDataWithFilter(t *testing.T) {
	router := newTestServer(t).Router()

	resp := uploadCSV(t, router, "cities.csv",
		"City,Population\nOslo,700000\nBergen,290000\nTromso,77000\n")
	table, _ := resp["tableName"].(string)

	filters := url.QueryEscape(`{"items":[{"column":"Population","operator":">","value":100000}]}`)
	rec := doRequest(t, router, authed(httptest.NewRequest(
		"GET", "/tables/"+table+"/data?filters="+filters, nil)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page models.DataPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)

	rec = doRequest(t, router, authed(httptest.NewRequest(
		"GET", "/tables/"+table+"/data?filters=%7Bbroken", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryPreviewRejectsMutation(t *testing.T) {
	router := newTestServer(t).Router()

	resp := uploadCSV(t, router, "cities.csv", "City\nOslo\n")
	table, _ := resp["tableName"].(string)

	body, _ := json.Marshal(models.QueryRequest{SQL: "DROP TABLE \"" + table + "\""})
	req := authed(httptest.NewRequest("POST", "/query/preview", bytes.NewReader(body)))
	rec := doRequest(t, router, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body, _ = json.Marshal(models.QueryRequest{SQL: "SELECT * FROM \"" + table + "\""})
	req = authed(httptest.NewRequest("POST", "/query/preview", bytes.NewReader(body)))
	rec = doRequest(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Oslo", result.Data[0]["City"])
}
