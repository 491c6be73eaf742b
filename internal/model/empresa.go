package model

import (
	"time"

	"gorm.io/gorm"
)

// Workflow provisioning states for an empresa. "provisioning" marks an
// in-flight claim so two concurrent provisioners cannot both create a
// workflow for the same empresa.
const (
	WorkflowStatusInactive     = "inactive"
	WorkflowStatusProvisioning = "provisioning"
	WorkflowStatusActive       = "active"
	WorkflowStatusError        = "error"
)

// Empresa represents a registered company owning one calendar integration
// and one automation workflow
type Empresa struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	UserID        uint    `json:"user_id" gorm:"index;not null"`
	Nome          string  `json:"nome" gorm:"type:varchar(255);not null"`
	Slug          string  `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	RamoAtividade string  `json:"ramo_atividade" gorm:"type:varchar(100);default:'outros'"`
	InfoGerais    *string `json:"info_gerais,omitempty" gorm:"type:text"`
	LogoURL       *string `json:"logo_url,omitempty" gorm:"type:varchar(512)"`

	GoogleConnected   bool   `json:"google_connected" gorm:"default:false"`
	N8NWorkflowID     string `json:"n8n_workflow_id" gorm:"type:varchar(64);index"`
	N8NWorkflowStatus string `json:"n8n_workflow_status" gorm:"type:varchar(20);default:'inactive'"`

	// Google OAuth token bundle, never serialized to clients
	GoogleAccessToken  string    `json:"-" gorm:"type:text"`
	GoogleRefreshToken string    `json:"-" gorm:"type:text"`
	GoogleTokenExpiry  time.Time `json:"-"`
	GoogleScope        string    `json:"-" gorm:"type:varchar(512)"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
