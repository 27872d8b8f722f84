package dto

// ConfigurationItem is one system setting as shown in the settings panel.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// UpdateConfigurationRequest sets one setting.
type UpdateConfigurationRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// BulkUpdateConfigurationRequest is the save_settings payload.
type BulkUpdateConfigurationRequest struct {
	Items []UpdateConfigurationRequest `json:"items" validate:"required,min=1,dive"`
}

// UserActionRequest targets one account from the settings panel.
type UserActionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// BackupActionRequest targets one backup.
type BackupActionRequest struct {
	BackupID string `json:"backup_id" validate:"required,uuid"`
}

// ActivityListRequest pages through the activity trail.
type ActivityListRequest struct {
	Action   string `json:"filter_action"`
	UserID   string `json:"user_id" validate:"omitempty,uuid"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=200"`
}
