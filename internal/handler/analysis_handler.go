package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinsight/internal/config"
	"clinsight/internal/csvexport"
	"clinsight/internal/domain"
	"clinsight/internal/service"
)

var errPayloadTooLarge = errors.New("submission is too large")

// submitOverhead covers the case text and JSON or multipart framing.
const submitOverhead = 1 << 20

// SubmitLimits bounds a submission before it is read into memory. Zero
// values disable the corresponding check.
type SubmitLimits struct {
	MaxAudioBytes int64
	MaxImageBytes int64
	MaxImages     int
}

// NewSubmitLimits derives the HTTP limits from the pipeline configuration.
func NewSubmitLimits(cfg config.PipelineConfig) SubmitLimits {
	return SubmitLimits{
		MaxAudioBytes: cfg.MaxAudioBytes,
		MaxImageBytes: cfg.MaxImageBytes,
		MaxImages:     cfg.MaxImages,
	}
}

// MaxBodyBytes is the largest request body accepted on submit: every
// attachment at its cap, base64 encoded, plus overhead. It is 0 when any
// attachment limit is unset.
func (l SubmitLimits) MaxBodyBytes() int64 {
	if l.MaxAudioBytes <= 0 || l.MaxImageBytes <= 0 || l.MaxImages <= 0 {
		return 0
	}
	raw := l.MaxAudioBytes + int64(l.MaxImages)*l.MaxImageBytes
	return (raw+2)/3*4 + submitOverhead
}

// AnalysisHandler handles submission and history endpoints.
type AnalysisHandler struct {
	analysis   service.AnalysisService
	history    service.HistoryService
	recordings service.RecordingService
	limits     SubmitLimits
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysis service.AnalysisService, history service.HistoryService, recordings service.RecordingService, limits SubmitLimits) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, history: history, recordings: recordings, limits: limits}
}

// submitJSON is the JSON form of a submission. Binary fields are base64,
// optionally as data URLs.
type submitJSON struct {
	CaseText         string   `json:"caseText"`
	Audio            string   `json:"audio"`
	AudioContentType string   `json:"audioContentType"`
	Images           []string `json:"images"`
	UseRealPipeline  bool     `json:"useRealPipeline"`
	RecordingID      string   `json:"recordingId"`
}

// Submit handles POST /api/v1/analyses
func (h *AnalysisHandler) Submit(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	if maxBody := h.limits.MaxBodyBytes(); maxBody > 0 {
		if c.Request.ContentLength > maxBody {
			RespondError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", errPayloadTooLarge.Error())
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	}

	var (
		req         *domain.AnalysisRequest
		recordingID string
		err         error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, recordingID, err = h.parseMultipartSubmission(c)
	} else {
		req, recordingID, err = parseJSONSubmission(c)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, errPayloadTooLarge) || errors.As(err, &maxErr) {
			RespondError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", errPayloadTooLarge.Error())
			return
		}
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	req.UserID = userID

	if recordingID != "" {
		if req.Audio != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "send either audio or recordingId, not both")
			return
		}
		id, parseErr := uuid.Parse(recordingID)
		if parseErr != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid recording ID")
			return
		}
		// Finishing consumes the session, so refuse a run that would be
		// rejected for credits while the clinician can still resume.
		if req.UseRealPipeline {
			if checkErr := h.analysis.Precheck(c.Request.Context(), userID); checkErr != nil {
				HandleError(c, checkErr)
				return
			}
		}
		audio, finishErr := h.recordings.Finish(c.Request.Context(), userID, id)
		if finishErr != nil {
			HandleError(c, finishErr)
			return
		}
		req.Audio = audio
	}

	result, err := h.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client is gone; nothing useful to write.
			c.Abort()
			return
		}
		HandleError(c, err)
		return
	}

	c.Header("X-Run-ID", result.RunID)
	if result.Record.IsDemo {
		RespondOK(c, result.Record)
		return
	}
	RespondCreated(c, result.Record)
}

// List handles GET /api/v1/analyses?limit=&q=
func (h *AnalysisHandler) List(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	query := strings.TrimSpace(c.Query("q"))

	var (
		records []domain.AnalysisRecord
		err     error
	)
	if query != "" {
		records, err = h.history.Search(c.Request.Context(), userID, query, limit)
	} else {
		records, err = h.history.List(c.Request.Context(), userID, limit)
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	RespondList(c, records, ListMeta{Count: len(records), Limit: limit, Query: query})
}

// GetByID handles GET /api/v1/analyses/:id
func (h *AnalysisHandler) GetByID(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid analysis ID")
		return
	}

	record, err := h.history.Get(c.Request.Context(), userID, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, record)
}

// Delete handles DELETE /api/v1/analyses/:id
func (h *AnalysisHandler) Delete(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid analysis ID")
		return
	}

	if err := h.history.Delete(c.Request.Context(), userID, id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "analysis deleted"})
}

// ImageURL handles GET /api/v1/analyses/:id/images/:index
func (h *AnalysisHandler) ImageURL(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid analysis ID")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid image index")
		return
	}

	url, err := h.history.ImageURL(c.Request.Context(), userID, id, index)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

// ExportCSV handles GET /api/v1/analyses/export/csv
func (h *AnalysisHandler) ExportCSV(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	records, err := h.history.List(c.Request.Context(), userID, exportLimit)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, csvexport.BuildFilename("analyses", time.Now())))
	c.Status(http.StatusOK)

	_, _ = c.Writer.Write(csvexport.BOM)
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}
	if err := w.WriteRecords(records); err != nil {
		return
	}
	w.Flush()
}

// exportLimit matches the history service's upper bound.
const exportLimit = 200

func parseJSONSubmission(c *gin.Context) (*domain.AnalysisRequest, string, error) {
	var body submitJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", errPayloadTooLarge
		}
		return nil, "", fmt.Errorf("invalid request body")
	}

	req := &domain.AnalysisRequest{
		CaseText:        body.CaseText,
		UseRealPipeline: body.UseRealPipeline,
	}
	if body.Audio != "" {
		data, contentType, err := decodeBase64Payload(body.Audio)
		if err != nil {
			return nil, "", fmt.Errorf("audio is not valid base64")
		}
		if body.AudioContentType != "" {
			contentType = body.AudioContentType
		}
		req.Audio = &domain.AudioPayload{Data: data, ContentType: contentType}
	}
	for i, encoded := range body.Images {
		data, contentType, err := decodeBase64Payload(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("image %d is not valid base64", i)
		}
		req.Images = append(req.Images, domain.ImagePayload{Data: data, ContentType: contentType})
	}
	return req, body.RecordingID, nil
}

func (h *AnalysisHandler) parseMultipartSubmission(c *gin.Context) (*domain.AnalysisRequest, string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", errPayloadTooLarge
		}
		return nil, "", fmt.Errorf("invalid multipart form")
	}

	useReal, _ := strconv.ParseBool(c.PostForm("useRealPipeline"))
	req := &domain.AnalysisRequest{
		CaseText:        c.PostForm("caseText"),
		UseRealPipeline: useReal,
	}

	if files := form.File["audio"]; len(files) > 0 {
		if h.limits.MaxAudioBytes > 0 && files[0].Size > h.limits.MaxAudioBytes {
			return nil, "", errPayloadTooLarge
		}
		data, contentType, err := readFormFile(files[0])
		if err != nil {
			return nil, "", err
		}
		req.Audio = &domain.AudioPayload{Data: data, ContentType: contentType, FileName: files[0].Filename}
	}
	images := form.File["images"]
	if h.limits.MaxImages > 0 && len(images) > h.limits.MaxImages {
		return nil, "", fmt.Errorf("at most %d images may be attached", h.limits.MaxImages)
	}
	for _, fh := range images {
		if h.limits.MaxImageBytes > 0 && fh.Size > h.limits.MaxImageBytes {
			return nil, "", errPayloadTooLarge
		}
		data, contentType, err := readFormFile(fh)
		if err != nil {
			return nil, "", err
		}
		req.Images = append(req.Images, domain.ImagePayload{Data: data, ContentType: contentType, FileName: fh.Filename})
	}
	return req, c.PostForm("recordingId"), nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("could not read %s", fh.Filename)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("could not read %s", fh.Filename)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// decodeBase64Payload accepts plain base64 or a data URL
// ("data:image/png;base64,...").
func decodeBase64Payload(s string) ([]byte, string, error) {
	contentType := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		meta := s[len("data:"):comma]
		contentType = strings.TrimSuffix(meta, ";base64")
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
