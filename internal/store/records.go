package store

import (
	"time"

	"github.com/connectforce/connectforce/internal/spec"
)

type SyncDirection string

const (
	SalesforceToExternal SyncDirection = "salesforce_to_external"
	ExternalToSalesforce SyncDirection = "external_to_salesforce"
	Bidirectional        SyncDirection = "bidirectional"
)

type SyncMode string

const (
	SyncCreate   SyncMode = "create"
	SyncUpdate   SyncMode = "update"
	SyncUpsert   SyncMode = "upsert"
	SyncDelete   SyncMode = "delete"
	SyncFullSync SyncMode = "full_sync"
)

// Transformation is applied to a field value while syncing. Config is opaque.
type Transformation struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// FieldMap binds one Salesforce field to one external field.
type FieldMap struct {
	ID                  string          `json:"id"`
	SalesforceField     string          `json:"salesforceField"`
	SalesforceFieldType string          `json:"salesforceFieldType,omitempty"`
	ExternalField       string          `json:"externalField"`
	ExternalFieldType   string          `json:"externalFieldType,omitempty"`
	Direction           SyncDirection   `json:"direction"`
	Transformation      *Transformation `json:"transformation,omitempty"`
	DefaultValue        string          `json:"defaultValue,omitempty"`
	Required            bool            `json:"required"`
	IsKey               bool            `json:"isKey"`
	// Confidence is set when the pair came from a name similarity suggestion.
	Confidence float64 `json:"confidence,omitempty"`
}

type FieldMapping struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	ConnectionID     string           `json:"connectionId"`
	EndpointID       string           `json:"endpointId,omitempty"`
	SalesforceObject string           `json:"salesforceObject"`
	ExternalEntity   string           `json:"externalEntity"`
	Mappings         []FieldMap       `json:"mappings"`
	SyncDirection    SyncDirection    `json:"syncDirection"`
	SyncMode         SyncMode         `json:"syncMode"`
	FilterCondition  string           `json:"filterCondition,omitempty"`
	Transformations  []Transformation `json:"transformations,omitempty"`
	IsActive         bool             `json:"isActive"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type SyncState string

const (
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
	SyncRunning SyncState = "running"
	SyncPending SyncState = "pending"
)

// SyncStatus is keyed by connection: one record per connection.
type SyncStatus struct {
	ConnectionID     string     `json:"connectionId"`
	LastSyncTime     *time.Time `json:"lastSyncTime,omitempty"`
	Status           SyncState  `json:"status"`
	RecordsProcessed int        `json:"recordsProcessed,omitempty"`
	RecordsFailed    int        `json:"recordsFailed,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	// Duration in milliseconds.
	Duration int64 `json:"duration,omitempty"`
}

// Data is the whole stored document, also used for export and import.
type Data struct {
	Connections  []spec.Connection `json:"connections"`
	Mappings     []FieldMapping    `json:"mappings"`
	SyncStatuses []SyncStatus      `json:"syncStatuses"`
}
