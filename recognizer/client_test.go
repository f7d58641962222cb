package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-embedding/", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("student_id"))
		assert.Equal(t, "1AB21CS001_x.jpg", r.URL.Query().Get("image_name"))
		json.NewEncoder(w).Encode(map[string]any{
			"usn":           "42",
			"faceEmbedding": []float64{0.1, 0.2, 0.3},
		})
	}))
	defer srv.Close()

	emb, err := NewClient(srv.URL).GenerateEmbedding(context.Background(), "42", "1AB21CS001_x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, emb)
}

func TestGenerateEmbeddingSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "No faces found in the image."})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateEmbedding(context.Background(), "42", "x.jpg")
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
	assert.Equal(t, "No faces found in the image.", ue.Detail)
}

func TestGenerateEmbeddingEmptyVectorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"usn": "42", "faceEmbedding": []float64{}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateEmbedding(context.Background(), "42", "x.jpg")
	require.Error(t, err)
}

func TestRecognizeStudents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/recognize-students/CS5_OS_1.jpg", r.URL.Path)

		var known []KnownFace
		require.NoError(t, json.NewDecoder(r.Body).Decode(&known))
		require.Len(t, known, 2)
		assert.Equal(t, "1AB21CS001", known[0].USN)

		json.NewEncoder(w).Encode(map[string]any{
			"faces_detected":     3,
			"unrecognized_faces": 1,
			"recognized_usns":    []string{"1AB21CS001", "1AB21CS002"},
		})
	}))
	defer srv.Close()

	rec, err := NewClient(srv.URL).RecognizeStudents(context.Background(), "CS5_OS_1.jpg", []KnownFace{
		{USN: "1AB21CS001", Embedding: []float64{0.1}},
		{USN: "1AB21CS002", Embedding: []float64{0.2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.FacesDetected)
	assert.Equal(t, 1, rec.UnrecognizedFaces)
	assert.ElementsMatch(t, []string{"1AB21CS001", "1AB21CS002"}, rec.RecognizedUSNs)
}

func TestRecognizeStudentsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).RecognizeStudents(context.Background(), "x.jpg", nil)
	require.Error(t, err)

	var ue *UpstreamError
	assert.False(t, errors.As(err, &ue), "transport failure is not an upstream answer")
}

func TestUpstreamErrorFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateEmbedding(context.Background(), "1", "x.jpg")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Internal Server Error", ue.Detail)
}
