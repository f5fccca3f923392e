package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/train"
)

// maxBatchImages bounds one analyze-batch request.
const maxBatchImages = 10

type handler struct {
	deps Dependencies
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type batchRequest struct {
	Images []string `json:"images"`
}

// AnalysisResponse is the result of one analyzed image.
type AnalysisResponse struct {
	train.Prediction
	AnalysisID string `json:"analysisId"`
	Timestamp  string `json:"timestamp"`
}

// BatchResponse holds one result or error per submitted image, in order.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}

// BatchItem is a single entry of BatchResponse.
type BatchItem struct {
	*AnalysisResponse
	Error string `json:"error,omitempty"`
}

func (h *handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      "freshset",
		"version":      h.deps.Version,
		"model_loaded": h.deps.Classifier != nil,
		"timestamp":    h.deps.Now().UTC().Format(time.RFC3339),
	})
}

// handleAnalyze accepts a multipart "image" file or a JSON body holding an
// image data URL.
func (h *handler) handleAnalyze(c echo.Context) error {
	if h.deps.Classifier == nil {
		return NewServiceUnavailableError("no trained model loaded")
	}

	var data []byte
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return NewValidationError("image")
		}
		f, err := fh.Open()
		if err != nil {
			return NewBadRequestError("cannot read uploaded image", err)
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return NewBadRequestError("cannot read uploaded image", err)
		}
	} else {
		var req analyzeRequest
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
		if req.Image == "" {
			return NewValidationError("image")
		}
		var err error
		if data, err = decodeImageField(req.Image); err != nil {
			return NewBadRequestError("invalid image data URL", err)
		}
	}

	resp, err := h.analyze(data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) handleAnalyzeBatch(c echo.Context) error {
	if h.deps.Classifier == nil {
		return NewServiceUnavailableError("no trained model loaded")
	}
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if len(req.Images) == 0 || len(req.Images) > maxBatchImages {
		return NewValidationError("images")
	}

	out := BatchResponse{Results: make([]BatchItem, len(req.Images))}
	for i, img := range req.Images {
		data, err := decodeImageField(img)
		if err != nil {
			out.Results[i].Error = err.Error()
			continue
		}
		resp, err := h.analyze(data)
		if err != nil {
			out.Results[i].Error = err.Error()
			continue
		}
		out.Results[i].AnalysisResponse = resp
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) handleSummary(c echo.Context) error {
	if h.deps.Catalog == nil {
		return NewServiceUnavailableError("catalog not attached")
	}
	summary, err := h.deps.Catalog.Summary()
	if err != nil {
		return NewInternalError("summarizing catalog", err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *handler) analyze(data []byte) (*AnalysisResponse, error) {
	pred, err := h.deps.Classifier.PredictBytes(data)
	if err != nil {
		return nil, NewBadRequestError("image could not be decoded", err)
	}
	return &AnalysisResponse{
		Prediction: pred,
		AnalysisID: uuid.NewString(),
		Timestamp:  h.deps.Now().UTC().Format(time.RFC3339),
	}, nil
}

// decodeImageField returns the bytes of a data URL. Placeholder images are
// rejected since they carry no pixels worth classifying.
func decodeImageField(s string) ([]byte, error) {
	if imageproc.IsPlaceholder(s) {
		return nil, errPlaceholder
	}
	_, data, err := imageproc.ParseDataURL(s)
	return data, err
}

var errPlaceholder = errors.New("placeholder image")
