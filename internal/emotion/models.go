package emotion

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Session is one bounded recording interval. A session is open until EndTime
// is set; closing is one-way and DurationSeconds is derived exactly once.
type Session struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	UserID          *string    `gorm:"index" json:"user_id,omitempty"` // nil = anonymous session
	Name            string     `gorm:"not null" json:"name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	TotalDetections int        `gorm:"default:0" json:"total_detections"`
	Accuracy        *float64   `json:"accuracy,omitempty"`
	DeviceInfo      string     `json:"device_info,omitempty"`
	IPAddress       string     `json:"ip_address,omitempty"`
	Location        string     `json:"location,omitempty"`
	Completed       bool       `gorm:"default:false" json:"completed"`
	CreatedAt       time.Time  `json:"created_at"`

	Emotions  []Emotion        `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"emotions,omitempty"`
	Summaries []EmotionSummary `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"summaries,omitempty"`
	Images    []Image          `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// BoundingBox is the detected face rectangle in frame pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Emotion is one detection event. RawData is the verbatim inference payload,
// kept for audit/debugging and never parsed downstream.
type Emotion struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	SessionID        string          `gorm:"index;not null" json:"session_id"`
	EmotionType      EmotionType     `gorm:"index;not null" json:"emotion_type"`
	Confidence       float64         `gorm:"not null" json:"confidence"`
	DetectedAt       time.Time       `gorm:"index" json:"detected_at"`
	BoundingBox      *BoundingBox    `gorm:"serializer:json" json:"bounding_box,omitempty"`
	AgeEstimate      *int            `json:"age_estimate,omitempty"`
	GenderEstimate   *string         `json:"gender_estimate,omitempty"`
	ImageID          *string         `gorm:"index" json:"image_id,omitempty"`
	ProcessingTimeMs *int            `json:"processing_time_ms,omitempty"`
	RawData          json.RawMessage `gorm:"type:jsonb" json:"raw_data,omitempty"`

	Image *Image `gorm:"foreignKey:ImageID;constraint:OnDelete:SET NULL" json:"-"`
}

// Image is a captured or uploaded frame's metadata. Deleting an image nulls
// the link on its observations; it never cascades into them.
type Image struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	UserID         *string        `gorm:"index" json:"user_id,omitempty"`
	SessionID      *string        `gorm:"index" json:"session_id,omitempty"`
	FileName       string         `gorm:"not null" json:"file_name"`
	ContentType    string         `json:"content_type,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	DetectedLabels pq.StringArray `gorm:"type:text[]" json:"detected_labels,omitempty"`
	StorageURL     string         `json:"storage_url,omitempty"`
	UploadedAt     time.Time      `json:"uploaded_at"`
}

// EmotionSummary is the per-(session, label) rollup the aggregator maintains.
// The invariant: summed counts always equal the session's total_detections.
type EmotionSummary struct {
	ID            string      `gorm:"primaryKey" json:"id"`
	SessionID     string      `gorm:"not null;index:idx_summary_session_type,unique" json:"session_id"`
	EmotionType   EmotionType `gorm:"not null;index:idx_summary_session_type,unique" json:"emotion_type"`
	Count         int         `gorm:"default:0" json:"count"`
	AvgConfidence float64     `json:"avg_confidence"`
	FirstDetected *time.Time  `json:"first_detected,omitempty"`
	LastDetected  *time.Time  `json:"last_detected,omitempty"`
}

func (Session) TableName() string        { return "emotion.sessions" }
func (Emotion) TableName() string        { return "emotion.emotions" }
func (Image) TableName() string          { return "emotion.images" }
func (EmotionSummary) TableName() string { return "emotion.emotion_summaries" }
