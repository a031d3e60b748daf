package model

import (
	"encoding/json"
	"time"
)

// MutationType — вид изменения, которое нужно отправить на сервер.
type MutationType string

const (
	MutationCreate MutationType = "create"
	MutationUpdate MutationType = "update"
	MutationDelete MutationType = "delete"
)

// Valid сообщает, входит ли тип в закрытый набор.
func (t MutationType) Valid() bool {
	switch t {
	case MutationCreate, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

// SyncQueueItem — отложенное изменение, ожидающее подтверждения сервера.
type SyncQueueItem struct {
	ID             int64           `json:"id"`
	Type           MutationType    `json:"type"`
	Data           json.RawMessage `json:"data"`
	Timestamp      time.Time       `json:"timestamp"` // время последней попытки
	Attempts       int             `json:"attempts"`
	IdempotencyKey string          `json:"idempotencyKey"`
	LastError      string          `json:"lastError,omitempty"`
}

func (i *SyncQueueItem) StoreKey() int64      { return i.ID }
func (i *SyncQueueItem) SetStoreKey(id int64) { i.ID = id }

// Abandoned сообщает, что попытки исчерпаны.
func (i SyncQueueItem) Abandoned(maxAttempts int) bool {
	return maxAttempts > 0 && i.Attempts >= maxAttempts
}
