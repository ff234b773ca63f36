package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vericloud/vericloud/pkg/vericloud"
	"github.com/vericloud/vericloud/pkg/vericloud/api"
	memoryrepo "github.com/vericloud/vericloud/pkg/vericloud/repo/memory"
	memorystorage "github.com/vericloud/vericloud/pkg/vericloud/storage/memory"
)

func newTestServer(t *testing.T, maxUploadSize int64) *httptest.Server {
	t.Helper()

	svc, err := vericloud.New(
		vericloud.WithMetadataRepository(memoryrepo.New()),
		vericloud.WithBlobStore("memory", memorystorage.New()),
		vericloud.WithMaxUploadSize(maxUploadSize),
	)
	require.NoError(t, err)

	handler := api.NewHandler(svc, maxUploadSize)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server
}

// multipartBody builds a multipart form with one file per (name, content)
// pair under the given field.
func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Errors  json.RawMessage `json:"errors"`
	Detail  string          `json:"detail"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func uploadFile(t *testing.T, server *httptest.Server, name, content string) vericloud.FileMetadata {
	t.Helper()

	body, contentType := multipartBody(t, "file", map[string]string{name: content})
	resp, err := http.Post(server.URL+"/upload", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	var record vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &record))
	return record
}

func TestUploadFile(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	record := uploadFile(t, server, "notes.txt", "hello vericloud")

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "notes.txt", record.OriginalName)
	assert.Equal(t, int64(len("hello vericloud")), record.Size)
	assert.Contains(t, record.StoredName, record.ID)
}

func TestUploadMissingField(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	body, contentType := multipartBody(t, "wrong-field", map[string]string{"a.txt": "x"})
	resp, err := http.Post(server.URL+"/upload", contentType, body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Detail)
}

func TestUploadTooLarge(t *testing.T) {
	server := newTestServer(t, 16)

	body, contentType := multipartBody(t, "file", map[string]string{
		"big.bin": "this payload is longer than sixteen bytes",
	})
	resp, err := http.Post(server.URL+"/upload", contentType, body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
}

func TestUploadMultiple(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	body, contentType := multipartBody(t, "files", map[string]string{
		"a.txt": "first",
		"b.txt": "second",
	})
	resp, err := http.Post(server.URL+"/upload-multiple", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	var records []vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 2)
}

func TestUploadMultiplePartialFailure(t *testing.T) {
	server := newTestServer(t, 16)

	body, contentType := multipartBody(t, "files", map[string]string{
		"small.txt": "tiny",
		"big.bin":   "this payload is longer than sixteen bytes",
	})
	resp, err := http.Post(server.URL+"/upload-multiple", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	var records []vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "small.txt", records[0].OriginalName)

	var failures []vericloud.BatchFailure
	require.NoError(t, json.Unmarshal(env.Errors, &failures))
	require.Len(t, failures, 1)
	assert.Equal(t, "big.bin", failures[0].FileName)
	assert.NotEmpty(t, failures[0].Reason)
}

func TestUploadMultipleNoFiles(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	body, contentType := multipartBody(t, "files", nil)
	resp, err := http.Post(server.URL+"/upload-multiple", contentType, body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListFiles(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	uploadFile(t, server, "a.txt", "one")
	uploadFile(t, server, "b.txt", "two")

	resp, err := http.Get(server.URL + "/files")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	var records []vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, "b.txt", records[0].OriginalName)
	assert.Equal(t, "a.txt", records[1].OriginalName)
}

func TestGetFile(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "a.txt", "payload")

	resp, err := http.Get(server.URL + "/files/" + record.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var got vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "a.txt", got.OriginalName)
}

func TestGetFileNotFound(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	resp, err := http.Get(server.URL + "/files/20240101_000000_000000001")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
}

func TestGetFileContent(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "a.txt", "readable text")

	resp, err := http.Get(server.URL + "/files/" + record.ID + "/content")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var content vericloud.FileContent
	require.NoError(t, json.Unmarshal(env.Data, &content))
	assert.Equal(t, "readable text", content.Content)
	assert.Equal(t, "a.txt", content.FileName)
}

func TestGetFileContentRejectsBinary(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "bin.dat", "\xff\xfe\x00binary")

	resp, err := http.Get(server.URL + "/files/" + record.ID + "/content")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
}

func TestDownloadFile(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "report.txt", "download me")

	resp, err := http.Get(server.URL + "/download/" + record.ID)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	// multipart.Writer labels parts application/octet-stream and the service
	// keeps a caller-provided content type as-is.
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.txt"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, fmt.Sprintf("%d", len("download me")), resp.Header.Get("Content-Length"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "download me", string(data))
}

func TestDownloadNotFound(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	resp, err := http.Get(server.URL + "/download/missing")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateFile(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "a.txt", "version one")

	body, contentType := multipartBody(t, "file", map[string]string{"ignored.txt": "version two, longer"})
	req, err := http.NewRequest(http.MethodPut, server.URL+"/files/"+record.ID, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var updated vericloud.FileMetadata
	require.NoError(t, json.Unmarshal(env.Data, &updated))

	assert.Equal(t, record.ID, updated.ID)
	assert.Equal(t, "a.txt", updated.OriginalName, "update must not rename the file")
	assert.Equal(t, int64(len("version two, longer")), updated.Size)
	assert.NotNil(t, updated.UpdatedAt)

	// Content actually replaced.
	dl, err := http.Get(server.URL + "/download/" + record.ID)
	require.NoError(t, err)
	defer dl.Body.Close()
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "version two, longer", string(data))
}

func TestUpdateNotFound(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	body, contentType := multipartBody(t, "file", map[string]string{"a.txt": "x"})
	req, err := http.NewRequest(http.MethodPut, server.URL+"/files/missing", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteFile(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)
	record := uploadFile(t, server, "doomed.txt", "bye")

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/files/"+record.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, "File 'doomed.txt' deleted successfully", env.Message)

	// Gone afterwards.
	check, err := http.Get(server.URL + "/files/" + record.ID)
	require.NoError(t, err)
	check.Body.Close()
	assert.Equal(t, http.StatusNotFound, check.StatusCode)
}

func TestDeleteNotFound(t *testing.T) {
	server := newTestServer(t, vericloud.DefaultMaxUploadSize)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/files/missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
