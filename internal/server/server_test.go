package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/logging"
	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

type fakeClassifier struct {
	calls int
}

func (f *fakeClassifier) PredictBytes(data []byte) (train.Prediction, error) {
	f.calls++
	if _, _, err := imageproc.Decode(data); err != nil {
		return train.Prediction{}, err
	}
	return train.Prediction{
		Probability: 0.9, Classification: types.StateFresh,
		Freshness: 90, Confidence: 90, Recommendation: types.RecommendBuy,
	}, nil
}

type fakeCatalog struct {
	err error
}

func (f fakeCatalog) Summary() (types.Summary, error) {
	if f.err != nil {
		return types.Summary{}, f.err
	}
	return types.Summary{
		Structure: map[string]map[string]int{
			types.StateFresh:  {"apple": 3},
			types.StateRotten: {"apple": 2},
		},
		TotalImages: 5,
	}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(c Classifier, cat Summarizer) http.Handler {
	return New(Dependencies{
		Classifier: c,
		Catalog:    cat,
		Version:    "test",
		Logger:     logging.Discard(),
		Now:        func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) },
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, "2026-03-04T05:06:07Z", body["timestamp"])
}

func TestAnalyze_JSONDataURL(t *testing.T) {
	clf := &fakeClassifier{}
	h := newTestServer(clf, nil)

	req := jsonRequest(http.MethodPost, "/api/analyze", map[string]string{
		"image": imageproc.DataURL(imageproc.MIMEPNG, pngBytes(t)),
	})
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.StateFresh, resp.Classification)
	assert.Equal(t, types.RecommendBuy, resp.Recommendation)
	assert.Equal(t, 90, resp.Freshness)
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Equal(t, "2026-03-04T05:06:07Z", resp.Timestamp)
	assert.Equal(t, 1, clf.calls)
}

func TestAnalyze_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "apple.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(newTestServer(&fakeClassifier{}, nil), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		classifier Classifier
		body       any
		wantStatus int
		wantCode   string
	}{
		{"no model", nil, map[string]string{"image": "x"}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"missing image", &fakeClassifier{}, map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not a data url", &fakeClassifier{}, map[string]string{"image": "hello"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"placeholder", &fakeClassifier{}, map[string]string{"image": imageproc.PlaceholderDataURL}, http.StatusBadRequest, "BAD_REQUEST"},
		{"undecodable", &fakeClassifier{}, map[string]string{"image": imageproc.DataURL(imageproc.MIMEJPEG, []byte("nope"))}, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestServer(tt.classifier, nil), jsonRequest(http.MethodPost, "/api/analyze", tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAnalyze_MultipartMissingField(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(newTestServer(&fakeClassifier{}, nil), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestAnalyzeBatch(t *testing.T) {
	h := newTestServer(&fakeClassifier{}, nil)
	good := imageproc.DataURL(imageproc.MIMEPNG, pngBytes(t))

	rec := serve(h, jsonRequest(http.MethodPost, "/api/analyze-batch", map[string][]string{
		"images": {good, "broken"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, types.StateFresh, resp.Results[0]["classification"])
	assert.NotContains(t, resp.Results[0], "error")
	assert.NotEmpty(t, resp.Results[1]["error"])

	rec = serve(h, jsonRequest(http.MethodPost, "/api/analyze-batch", map[string][]string{"images": {}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	tooMany := make([]string, maxBatchImages+1)
	rec = serve(h, jsonRequest(http.MethodPost, "/api/analyze-batch", map[string][]string{"images": tooMany}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatasetSummary(t *testing.T) {
	rec := serve(newTestServer(nil, fakeCatalog{}), httptest.NewRequest(http.MethodGet, "/api/dataset/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary types.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 5, summary.TotalImages)
	assert.Equal(t, 3, summary.Structure[types.StateFresh]["apple"])

	rec = serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/api/dataset/summary", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(newTestServer(nil, fakeCatalog{err: errors.New("boom")}), httptest.NewRequest(http.MethodGet, "/api/dataset/summary", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", apiErr.Code)
	assert.Equal(t, "boom", apiErr.Details)
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(decodeError(t, rec).Code, "HTTP_ERROR"))
}
