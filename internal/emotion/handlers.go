package emotion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var validate = validator.New()

// firstViolation reports the first failed constraint of a validated request,
// which is the message the 400 response carries.
func firstViolation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("invalid field %s: failed '%s=%s' constraint", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("invalid field %s: failed '%s' constraint", fe.Field(), fe.Tag())
	}
	return "invalid request"
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// loadOwnedSession fetches a session and enforces that the caller owns it.
// Anonymous sessions (no owner) are reachable by anyone holding their ID.
// Returns false after writing the error response when access is denied.
func loadOwnedSession(w http.ResponseWriter, r *http.Request, sessionID string) (Session, bool) {
	var session Session
	if err := db.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return Session{}, false
	}

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return Session{}, false
	}
	if session.UserID != nil && *session.UserID != userID {
		http.Error(w, "Forbidden: session does not belong to user", http.StatusForbidden)
		return Session{}, false
	}
	return session, true
}

// parsePagination reads limit/offset query params: limit defaults to 50 and
// is capped at 100, offset defaults to 0 and must be non-negative.
func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return 0, 0, false
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

type CreateSessionRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	DeviceInfo string `json:"device_info" validate:"omitempty,max=255"`
	Location   string `json:"location" validate:"omitempty,max=255"`
}

// CreateSessionHandler starts a new recording session for the caller. Start
// time and client IP are assigned server-side.
func CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var input CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&input); err != nil {
		http.Error(w, firstViolation(err), http.StatusBadRequest)
		return
	}

	session := Session{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Name:       input.Name,
		StartTime:  time.Now().UTC(),
		DeviceInfo: input.DeviceInfo,
		IPAddress:  clientIP(r),
		Location:   input.Location,
	}
	if err := db.DB.Create(&session).Error; err != nil {
		log.Printf("failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

// ListSessionsHandler returns the caller's sessions, newest first.
func ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var sessions []Session
	if err := db.DB.Where("user_id = ?", userID).
		Order("start_time DESC").
		Find(&sessions).Error; err != nil {
		http.Error(w, "Failed to fetch sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

type UpdateSessionRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=100"`
	DeviceInfo *string `json:"device_info" validate:"omitempty,max=255"`
	Location   *string `json:"location" validate:"omitempty,max=255"`
}

// UpdateSessionHandler patches the mutable session fields. Counters, times
// and durations are only ever written by the aggregator.
func UpdateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	var input UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&input); err != nil {
		http.Error(w, firstViolation(err), http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.DeviceInfo != nil {
		updates["device_info"] = *input.DeviceInfo
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if len(updates) > 0 {
		if err := db.DB.Model(&session).Updates(updates).Error; err != nil {
			http.Error(w, "Failed to update session", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

type CloseSessionRequest struct {
	EndTime         *time.Time `json:"end_time"`
	TotalDetections *int       `json:"total_detections" validate:"omitempty,gte=0"`
	Accuracy        *float64   `json:"accuracy" validate:"omitempty,gte=0,lte=1"`
}

// CloseSessionHandler closes a session. end_time defaults to server now;
// closing twice is a no-op returning the already-closed state.
func CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	// Every close field is optional, so an empty body is a valid request.
	var input CloseSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&input); err != nil {
		http.Error(w, firstViolation(err), http.StatusBadRequest)
		return
	}

	endTime := time.Now().UTC()
	if input.EndTime != nil {
		endTime = input.EndTime.UTC()
	}

	closed, err := CloseSession(session.ID, endTime, input.TotalDetections, input.Accuracy)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if errors.Is(err, ErrEndBeforeStart) {
		http.Error(w, "end_time is before the session start", http.StatusBadRequest)
		return
	} else if err != nil {
		log.Printf("failed to close session %s: %v", session.ID, err)
		http.Error(w, "Failed to close session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(closed)
}

// DeleteSessionHandler removes a session; observations and summaries go with
// it via the cascade constraints.
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	if err := db.DB.Delete(&session).Error; err != nil {
		log.Printf("failed to delete session %s: %v", session.ID, err)
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Session deleted"))
}

type RecordDetectionRequest struct {
	SessionID        string          `json:"session_id" validate:"required"`
	EmotionType      string          `json:"emotion_type" validate:"required,oneof=happy sad angry surprised fearful disgusted neutral"`
	Confidence       *float64        `json:"confidence" validate:"required,gte=0,lte=1"`
	BoundingBox      *BoundingBox    `json:"bounding_box"`
	AgeEstimate      *int            `json:"age_estimate" validate:"omitempty,gte=0,lte=120"`
	GenderEstimate   *string         `json:"gender_estimate" validate:"omitempty,oneof=male female"`
	ImageID          *string         `json:"image_id"`
	ProcessingTimeMs *int            `json:"processing_time_ms" validate:"omitempty,gte=0"`
	RawData          json.RawMessage `json:"raw_data"`
}

// RecordDetectionHandler is the ingestion endpoint: it accepts one
// externally-computed observation, validates its shape, and hands it to the
// aggregator. The response carries the created ID and the server-assigned
// timestamp.
func RecordDetectionHandler(w http.ResponseWriter, r *http.Request) {
	var input RecordDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&input); err != nil {
		http.Error(w, firstViolation(err), http.StatusBadRequest)
		return
	}

	if _, ok := loadOwnedSession(w, r, input.SessionID); !ok {
		return
	}

	obs, err := RecordObservation(Emotion{
		SessionID:        input.SessionID,
		EmotionType:      EmotionType(input.EmotionType),
		Confidence:       *input.Confidence,
		BoundingBox:      input.BoundingBox,
		AgeEstimate:      input.AgeEstimate,
		GenderEstimate:   input.GenderEstimate,
		ImageID:          input.ImageID,
		ProcessingTimeMs: input.ProcessingTimeMs,
		RawData:          input.RawData,
	})
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if errors.Is(err, ErrInvalidObservation) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if err != nil {
		log.Printf("failed to record observation: %v", err)
		http.Error(w, "Failed to record observation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(obs)
}

// ListDetectionsHandler returns a session's observations newest first,
// paginated with limit (default 50, max 100) and offset.
func ListDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	var observations []Emotion
	if err := db.DB.Where("session_id = ?", session.ID).
		Order("detected_at DESC").
		Limit(limit).Offset(offset).
		Find(&observations).Error; err != nil {
		http.Error(w, "Failed to fetch observations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(observations)
}

// DeleteDetectionHandler removes one observation and settles the session's
// counters through the aggregator.
func DeleteDetectionHandler(w http.ResponseWriter, r *http.Request) {
	emotionID := chi.URLParam(r, "emotion_id")

	var obs Emotion
	if err := db.DB.First(&obs, "id = ?", emotionID).Error; err != nil {
		http.Error(w, "Observation not found", http.StatusNotFound)
		return
	}
	if _, ok := loadOwnedSession(w, r, obs.SessionID); !ok {
		return
	}

	err := RemoveObservation(emotionID)
	if errors.Is(err, ErrObservationNotFound) {
		http.Error(w, "Observation not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Printf("failed to remove observation %s: %v", emotionID, err)
		http.Error(w, "Failed to remove observation", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Observation deleted"))
}

// SummaryHandler returns the per-label rollup for a session, ordered by count
// descending then label ascending.
func SummaryHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	views, err := Summarize(session.ID)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to summarize session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// ListUserDetectionsHandler returns the caller's observations across all
// their sessions, with optional RFC3339 from/to bounds and a label filter.
func ListUserDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	query := db.DB.Where(
		"session_id IN (?)",
		db.DB.Model(&Session{}).Select("id").Where("user_id = ?", userID),
	)

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, "Invalid 'from' timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		query = query.Where("detected_at >= ?", from)
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, "Invalid 'to' timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		query = query.Where("detected_at <= ?", to)
	}
	if typeStr := r.URL.Query().Get("emotion_type"); typeStr != "" {
		if !EmotionType(typeStr).Valid() {
			http.Error(w, "Unknown emotion_type", http.StatusBadRequest)
			return
		}
		query = query.Where("emotion_type = ?", typeStr)
	}

	var observations []Emotion
	if err := query.Order("detected_at DESC").
		Limit(limit).Offset(offset).
		Find(&observations).Error; err != nil {
		http.Error(w, "Failed to fetch observations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(observations)
}

// MetaHandler serves the static emotion descriptor map to the UI.
func MetaHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(Metadata)
}

type CreateImageRequest struct {
	SessionID      *string  `json:"session_id"`
	FileName       string   `json:"file_name" validate:"required,max=255"`
	ContentType    string   `json:"content_type" validate:"omitempty,max=100"`
	SizeBytes      int64    `json:"size_bytes" validate:"gte=0"`
	DetectedLabels []string `json:"detected_labels" validate:"omitempty,dive,oneof=happy sad angry surprised fearful disgusted neutral"`
	StorageURL     string   `json:"storage_url" validate:"omitempty,url"`
}

// CreateImageHandler registers an uploaded frame's metadata. The binary blob
// itself lives wherever storage_url points; this service only tracks it.
func CreateImageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var input CreateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&input); err != nil {
		http.Error(w, firstViolation(err), http.StatusBadRequest)
		return
	}

	if input.SessionID != nil {
		if _, ok := loadOwnedSession(w, r, *input.SessionID); !ok {
			return
		}
	}

	image := Image{
		ID:             uuid.NewString(),
		UserID:         &userID,
		SessionID:      input.SessionID,
		FileName:       input.FileName,
		ContentType:    input.ContentType,
		SizeBytes:      input.SizeBytes,
		DetectedLabels: pq.StringArray(input.DetectedLabels),
		StorageURL:     input.StorageURL,
		UploadedAt:     time.Now().UTC(),
	}
	if err := db.DB.Create(&image).Error; err != nil {
		log.Printf("failed to create image: %v", err)
		http.Error(w, "Failed to register image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(image)
}

// ListSessionImagesHandler returns a session's images, newest first.
func ListSessionImagesHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := loadOwnedSession(w, r, chi.URLParam(r, "session_id"))
	if !ok {
		return
	}

	var images []Image
	if err := db.DB.Where("session_id = ?", session.ID).
		Order("uploaded_at DESC").
		Find(&images).Error; err != nil {
		http.Error(w, "Failed to fetch images", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(images)
}

// DeleteImageHandler removes an image record. Observations that referenced it
// keep existing with a nulled image link (set-null constraint), never the
// other way around.
func DeleteImageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var image Image
	if err := db.DB.First(&image, "id = ?", chi.URLParam(r, "image_id")).Error; err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if image.UserID != nil && *image.UserID != userID {
		http.Error(w, "Forbidden: image does not belong to user", http.StatusForbidden)
		return
	}

	if err := db.DB.Delete(&image).Error; err != nil {
		log.Printf("failed to delete image %s: %v", image.ID, err)
		http.Error(w, "Failed to delete image", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Image deleted"))
}
