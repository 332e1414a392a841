package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
)

func testJob() *queue.Job {
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &queue.Job{
		Key:           created.UnixNano(),
		ID:            "job-id",
		SchemaVersion: queue.SchemaVersion,
		Metadata: bol.Metadata{
			Company:    "qlm",
			DriverName: "R. Alvarez",
			LoadNumber: "123456",
		},
		Attachments: []bol.Attachment{
			{
				Name:         "bol front.jpg",
				MIMEType:     "image/jpeg",
				Size:         8,
				LastModified: created,
				Content:      []byte("jpegdata"),
			},
		},
		Status:    queue.StatusPending,
		CreatedAt: created,
	}
}

func TestClient_Deliver_SendsMultipartFields(t *testing.T) {
	var gotLoadID, gotCompany, gotTenant string
	var gotFileNames []string
	var gotFileTypes []string
	var gotFileBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		gotLoadID = r.FormValue("load_id")
		gotCompany = r.FormValue("company")
		gotTenant = r.FormValue("tenant_tag")
		for _, fh := range r.MultipartForm.File[FileFieldName] {
			gotFileNames = append(gotFileNames, fh.Filename)
			gotFileTypes = append(gotFileTypes, fh.Header.Get("Content-Type"))
			f, err := fh.Open()
			require.NoError(t, err)
			body, err := io.ReadAll(f)
			require.NoError(t, err)
			gotFileBody = body
			_ = f.Close()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, client.Deliver(context.Background(), testJob()))

	assert.Equal(t, "123456", gotLoadID)
	assert.Equal(t, "qlm", gotCompany)
	assert.Equal(t, "qlm-docs", gotTenant)
	assert.Equal(t, []string{"bol front.jpg"}, gotFileNames)
	assert.Equal(t, []string{"image/jpeg"}, gotFileTypes)
	assert.Equal(t, []byte("jpegdata"), gotFileBody)
}

func TestClient_Deliver_Non2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	err := client.Deliver(context.Background(), testJob())
	require.Error(t, err)

	var delivery *DeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.Equal(t, http.StatusInternalServerError, delivery.StatusCode)
	assert.False(t, delivery.Transport)
}

func TestClient_Deliver_TransportFailureIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(srv.URL, time.Second)
	err := client.Deliver(context.Background(), testJob())
	require.Error(t, err)

	var delivery *DeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.True(t, delivery.Transport)
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Even an error status proves the endpoint is reachable.
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	require.NoError(t, client.Ping(context.Background()))

	srv.Close()
	require.Error(t, client.Ping(context.Background()))
}

func TestClient_SetEndpoint(t *testing.T) {
	client := NewClient("http://old.example/upload", time.Second)
	client.SetEndpoint("http://new.example/upload")
	assert.Equal(t, "http://new.example/upload", client.Endpoint())
}
