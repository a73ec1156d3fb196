package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cogscreen-go/internal/archive"
	"cogscreen-go/internal/auth"
	"cogscreen-go/internal/database"
	"cogscreen-go/internal/models"
	"cogscreen-go/internal/recording"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/results"
	"cogscreen-go/internal/speech"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxChunkBytes bounds a single uploaded segment.
const maxChunkBytes = 10 << 20

// ScreeningHandler serves the memory decline question and relays verbal
// fluency recordings to the speech backend.
type ScreeningHandler struct {
	log     *zap.Logger
	store   results.Store
	issuer  *auth.Issuer
	speech  *speech.Client
	archive archive.Store
}

// NewScreeningHandler wires the handler. archiveStore may be nil.
func NewScreeningHandler(log *zap.Logger, store results.Store, issuer *auth.Issuer, speechClient *speech.Client, archiveStore archive.Store) *ScreeningHandler {
	return &ScreeningHandler{log: log, store: store, issuer: issuer, speech: speechClient, archive: archiveStore}
}

type memoryDeclineRequest struct {
	Answer json.Number `json:"answer" binding:"required"`
}

func (h *ScreeningHandler) SaveMemoryDecline(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req memoryDeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer is required"})
		return
	}
	answer := strings.TrimSpace(req.Answer.String())
	if answer != "0" && answer != "1" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer must be 0 or 1"})
		return
	}
	if err := results.NewSlot[string](h.store, p.Owner(), results.KeyMemoryDecline).Write(c.Request.Context(), answer); err != nil {
		h.log.Error("Failed to save memory decline answer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save answer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *ScreeningHandler) GetMemoryDecline(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	answer, found, err := results.NewSlot[string](h.store, p.Owner(), results.KeyMemoryDecline).Read(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to read memory decline answer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read answer"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No answer recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// backendToken returns the caller's bearer token, or a fresh one for a
// cookie session, to authenticate against the speech backend.
func (h *ScreeningHandler) backendToken(c *gin.Context, p auth.Principal) (string, error) {
	if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		return token, nil
	}
	ttl := auth.UserTTL
	if p.Role == auth.RoleGuest {
		ttl = auth.GuestTTL
	}
	token, _, err := h.issuer.Issue(p.Subject, p.Role, ttl, p.Guest)
	return token, err
}

func (h *ScreeningHandler) uploader(client *speech.Client) recording.Uploader {
	if h.archive == nil {
		return client
	}
	return archive.NewUploader(h.log, h.archive, client)
}

// UploadChunk relays one verbal fluency segment.
func (h *ScreeningHandler) UploadChunk(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	category, err := recording.ParseCategory(c.PostForm("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	index, err := strconv.Atoi(c.PostForm("chunk_index"))
	recordingID := c.PostForm("recording_id")
	if err != nil || index < 0 || recordingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_index and recording_id are required"})
		return
	}
	header, err := c.FormFile("audio_chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_chunk is required"})
		return
	}
	if header.Size > maxChunkBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio_chunk is too large"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_chunk is unreadable"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxChunkBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio_chunk is unreadable"})
		return
	}

	token, err := h.backendToken(c, p)
	if err != nil {
		h.log.Error("Failed to issue speech backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	seg := recording.Segment{
		RecordingID: recordingID,
		Index:       index,
		Category:    category,
		MIMEType:    segmentMIME(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	}
	if err := h.uploader(h.speech.WithToken(token)).UploadSegment(c.Request.Context(), seg); err != nil {
		h.log.Warn("Failed to relay speech segment",
			zap.String("recording_id", recordingID), zap.Int("chunk_index", index), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received", "chunk_index": index})
}

// segmentMIME trusts the part's declared type only when it is audio;
// generic types fall back to the file extension.
func segmentMIME(partType, filename string) string {
	if strings.HasPrefix(strings.ToLower(partType), "audio/") {
		return partType
	}
	if mime := recording.MIMEFromFilename(filename); mime != "" {
		return mime
	}
	return partType
}

// Finalize asks the backend to score a recording and stores the analysis
// under the category's key.
func (h *ScreeningHandler) Finalize(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	category, err := recording.ParseCategory(c.PostForm("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recordingID := c.PostForm("recording_id")
	if recordingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recording_id is required"})
		return
	}
	token, err := h.backendToken(c, p)
	if err != nil {
		h.log.Error("Failed to issue speech backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Finalize failed"})
		return
	}

	analysis, err := h.speech.WithToken(token).Finalize(c.Request.Context(), recordingID, category)
	if err != nil {
		h.log.Warn("Speech analysis failed", zap.String("recording_id", recordingID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if err := h.saveAnalysis(c, p, recordingID, category, analysis); err != nil {
		h.log.Error("Failed to store verbal fluency result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store result"})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (h *ScreeningHandler) saveAnalysis(c *gin.Context, p auth.Principal, recordingID string, category recording.Category, analysis *recording.Analysis) error {
	ctx := c.Request.Context()
	key := results.VerbalFluencyKey(string(category))
	if err := results.NewSlot[recording.Analysis](h.store, p.Owner(), key).Write(ctx, *analysis); err != nil {
		return err
	}
	if database.DB == nil {
		return nil
	}
	raw, _ := json.Marshal(analysis)
	err := repository.SaveVerbalFluencyResult(ctx, &models.VerbalFluencyResult{
		OwnerID:     p.Owner(),
		RecordingID: recordingID,
		Category:    string(category),
		Total:       analysis.Total,
		Analysis:    raw,
	})
	if err != nil {
		h.log.Warn("Failed to save verbal fluency result to database", zap.String("recording_id", recordingID), zap.Error(err))
	}
	return nil
}

// VerbalFluencyResult returns the stored analysis of a category.
func (h *ScreeningHandler) VerbalFluencyResult(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	category, err := recording.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	raw, err := h.store.Read(c.Request.Context(), p.Owner(), results.VerbalFluencyKey(string(category)))
	if errors.Is(err, results.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No result recorded"})
		return
	}
	if err != nil {
		h.log.Error("Failed to read verbal fluency result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read result"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
