package services

import (
	"encoding/json"
	"log"
	"time"

	"comply/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmitEvent persists an outbound event for the notification/UI layer.
// A non-empty dedupeKey suppresses the event while an unresolved event
// with the same key exists, which keeps scheduler re-runs idempotent.
// Returns nil when the event was deduplicated.
func EmitEvent(db *gorm.DB, kind string, planID, unitID, learnerID uint, payload map[string]interface{}, dedupeKey string) (*models.OutboundEvent, error) {
	if dedupeKey != "" {
		var existing models.OutboundEvent
		if err := db.Where("dedupe_key = ? AND resolved = ?", dedupeKey, false).
			First(&existing).Error; err == nil {
			return nil, nil
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	event := models.OutboundEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		PlanID:    planID,
		UnitID:    unitID,
		LearnerID: learnerID,
		Payload:   datatypes.JSON(body),
		DedupeKey: dedupeKey,
	}

	if err := db.Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// EventDispatcher delivers persisted events to the external notification
// layer over HTTP. Delivery is best-effort: failures are retried on the
// next pass and never block the engine.
type EventDispatcher struct {
	db         *gorm.DB
	client     *resty.Client
	webhookURL string
}

// NewEventDispatcher creates a dispatcher; an empty webhook URL disables delivery
func NewEventDispatcher(db *gorm.DB, webhookURL string) *EventDispatcher {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	return &EventDispatcher{db: db, client: client, webhookURL: webhookURL}
}

// DispatchPending posts undelivered events to the webhook in creation order
func (d *EventDispatcher) DispatchPending() {
	if d.webhookURL == "" {
		return
	}

	var pending []models.OutboundEvent
	if err := d.db.Where("delivered = ?", false).
		Order("created_at asc").Limit(100).Find(&pending).Error; err != nil {
		log.Printf("[DISPATCHER] Error fetching pending events: %v", err)
		return
	}

	for _, event := range pending {
		resp, err := d.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(event).
			Post(d.webhookURL)
		if err != nil || resp.StatusCode() >= 300 {
			log.Printf("[DISPATCHER] Failed to deliver event %s: %v", event.EventID, err)
			continue
		}

		now := time.Now()
		d.db.Model(&event).Updates(map[string]interface{}{"delivered": true, "delivered_at": &now})
	}
}
