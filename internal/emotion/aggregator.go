package emotion

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrObservationNotFound = errors.New("observation not found")
	ErrEndBeforeStart      = errors.New("end time is before session start")
	ErrInvalidObservation  = errors.New("invalid observation")
)

// RecordObservation inserts one detection event and keeps the session's
// total_detections counter and its per-label summary row consistent with it.
// The three writes commit or roll back as one transaction; the session row is
// locked FOR UPDATE so two observations for the same session can't race each
// other into a lost counter update.
//
// The caller supplies SessionID, EmotionType, Confidence and the optional
// fields; ID and DetectedAt are assigned here (server time, so clock skew on
// the client can't reorder first/last-seen in the summary).
func RecordObservation(obs Emotion) (Emotion, error) {
	if !obs.EmotionType.Valid() {
		return Emotion{}, fmt.Errorf("%w: unknown emotion type %q", ErrInvalidObservation, obs.EmotionType)
	}
	if math.IsNaN(obs.Confidence) || obs.Confidence < 0 || obs.Confidence > 1 {
		return Emotion{}, fmt.Errorf("%w: confidence %v out of range [0,1]", ErrInvalidObservation, obs.Confidence)
	}

	obs.ID = uuid.NewString()
	obs.DetectedAt = time.Now().UTC()

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var session Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&session, "id = ?", obs.SessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		} else if err != nil {
			return err
		}

		if err := tx.Create(&obs).Error; err != nil {
			return err
		}

		if err := tx.Model(&session).
			Update("total_detections", gorm.Expr("total_detections + 1")).Error; err != nil {
			return err
		}

		var summary EmotionSummary
		err = tx.Where("session_id = ? AND emotion_type = ?", obs.SessionID, obs.EmotionType).
			First(&summary).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			detectedAt := obs.DetectedAt
			summary = EmotionSummary{
				ID:            uuid.NewString(),
				SessionID:     obs.SessionID,
				EmotionType:   obs.EmotionType,
				Count:         1,
				AvgConfidence: obs.Confidence,
				FirstDetected: &detectedAt,
				LastDetected:  &detectedAt,
			}
			return tx.Create(&summary).Error
		} else if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"count":          summary.Count + 1,
			"avg_confidence": (summary.AvgConfidence*float64(summary.Count) + obs.Confidence) / float64(summary.Count+1),
			"last_detected":  obs.DetectedAt,
		}
		if summary.FirstDetected == nil {
			updates["first_detected"] = obs.DetectedAt
		}
		return tx.Model(&summary).Updates(updates).Error
	})
	if err != nil {
		return Emotion{}, err
	}
	return obs, nil
}

// RemoveObservation deletes one detection event and settles the counters.
// total_detections floors at zero rather than going negative. The summary's
// average confidence is recomputed by full re-aggregation over the remaining
// observations of that label: removing a value from a running average loses
// information, so incremental decrement math would compound error. A summary
// whose count reaches zero is deleted.
func RemoveObservation(emotionID string) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		var obs Emotion
		err := tx.First(&obs, "id = ?", emotionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrObservationNotFound
		} else if err != nil {
			return err
		}

		var session Session
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&session, "id = ?", obs.SessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		} else if err != nil {
			return err
		}

		// The row can be gone by now if a concurrent removal committed
		// while this transaction waited on the session lock. Zero rows
		// affected means the other removal already settled the counters.
		res := tx.Delete(&obs)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrObservationNotFound
		}

		newTotal := session.TotalDetections - 1
		if newTotal < 0 {
			newTotal = 0
		}
		if err := tx.Model(&session).Update("total_detections", newTotal).Error; err != nil {
			return err
		}

		return recomputeSummary(tx, obs.SessionID, obs.EmotionType)
	})
}

// recomputeSummary rebuilds one (session, label) summary row from the raw
// observations still present in the transaction's view.
func recomputeSummary(tx *gorm.DB, sessionID string, emotionType EmotionType) error {
	row := tx.Model(&Emotion{}).
		Where("session_id = ? AND emotion_type = ?", sessionID, emotionType).
		Select("COUNT(*), COALESCE(AVG(confidence), 0), MIN(detected_at), MAX(detected_at)").
		Row()

	var (
		count       int
		avg         float64
		first, last sql.NullTime
	)
	if err := row.Scan(&count, &avg, &first, &last); err != nil {
		return err
	}

	if count == 0 {
		return tx.Where("session_id = ? AND emotion_type = ?", sessionID, emotionType).
			Delete(&EmotionSummary{}).Error
	}

	updates := map[string]interface{}{
		"count":          count,
		"avg_confidence": avg,
		"first_detected": nil,
		"last_detected":  nil,
	}
	if first.Valid {
		updates["first_detected"] = first.Time
	}
	if last.Valid {
		updates["last_detected"] = last.Time
	}
	return tx.Model(&EmotionSummary{}).
		Where("session_id = ? AND emotion_type = ?", sessionID, emotionType).
		Updates(updates).Error
}

// CloseSession transitions a session from open to closed: sets end_time,
// derives duration_seconds once, and marks it completed. Closing an already
// closed session is a no-op that returns the stored state, so the derived
// duration can never be rewritten. Client-supplied totalDetections/accuracy
// are accepted as authoritative overrides when present.
func CloseSession(sessionID string, endTime time.Time, totalDetections *int, accuracy *float64) (Session, error) {
	var session Session
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&session, "id = ?", sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		} else if err != nil {
			return err
		}

		if session.Completed || session.EndTime != nil {
			return nil
		}

		if endTime.Before(session.StartTime) {
			return ErrEndBeforeStart
		}

		duration := int(endTime.Sub(session.StartTime).Seconds())
		updates := map[string]interface{}{
			"end_time":         endTime,
			"duration_seconds": duration,
			"completed":        true,
		}
		if totalDetections != nil {
			updates["total_detections"] = *totalDetections
		}
		if accuracy != nil {
			updates["accuracy"] = *accuracy
		}
		if err := tx.Model(&session).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&session, "id = ?", sessionID).Error
	})
	return session, err
}

// SummaryView is one summary row enriched with its share of the session total
// and the static descriptor for the label.
type SummaryView struct {
	EmotionSummary
	Percentage float64    `json:"percentage"`
	Descriptor Descriptor `json:"descriptor"`
}

// Summarize returns the session's summary rows ordered by count descending,
// ties broken by label ascending, so output order is deterministic.
func Summarize(sessionID string) ([]SummaryView, error) {
	var session Session
	err := db.DB.First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}

	var rows []EmotionSummary
	if err := db.DB.Where("session_id = ?", sessionID).
		Order("count DESC, emotion_type ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]SummaryView, 0, len(rows))
	for _, row := range rows {
		view := SummaryView{EmotionSummary: row, Descriptor: Metadata[row.EmotionType]}
		if session.TotalDetections > 0 {
			view.Percentage = 100 * float64(row.Count) / float64(session.TotalDetections)
		}
		views = append(views, view)
	}
	return views, nil
}
