package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// PurchaseSyncMessage asks the worker to push one outbox row to the purchase
// API. Only the row id and version travel; the worker reads the rest from the
// database.
type PurchaseSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPurchaseSyncMessage(id, version int64) *PurchaseSyncMessage {
	return &PurchaseSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *PurchaseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PurchaseSyncMessageFromJSON(data []byte) (*PurchaseSyncMessage, error) {
	var msg PurchaseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid purchase id %d", msg.ID)
	}
	return &msg, nil
}

// PurchaseLoggedMessage notifies downstream consumers that a purchase reached
// the purchase API.
type PurchaseLoggedMessage struct {
	UserID              string    `json:"UserId"`
	PurchaseID          string    `json:"PurchaseId"`
	ProductName         string    `json:"ProductName"`
	CarbonEmissionValue float64   `json:"CarbonEmissionValue"`
	Message             string    `json:"Message"`
	LoggedAt            time.Time `json:"LoggedAt"`
}

const loggedMessageText = "Your purchase has been logged successfully."

func NewPurchaseLoggedMessage(userID, purchaseID, productName string, emission float64) *PurchaseLoggedMessage {
	return &PurchaseLoggedMessage{
		UserID:              userID,
		PurchaseID:          purchaseID,
		ProductName:         productName,
		CarbonEmissionValue: emission,
		Message:             loggedMessageText,
		LoggedAt:            time.Now(),
	}
}
