package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/dto"
	"github.com/noah-isme/sma-portal/internal/models"
	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// Setting keys.
const (
	SettingSiteName            = "site_name"
	SettingSiteEmail           = "site_email"
	SettingTimezone            = "timezone"
	SettingDefaultLanguage     = "default_language"
	SettingMaintenanceMode     = "maintenance_mode"
	SettingRegistrationEnabled = "registration_enabled"
	SettingSessionTimeout      = "session_timeout_minutes"
	SettingBackupRetention     = "backup_retention_days"
	SettingItemsPerPage        = "items_per_page"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type activityRecorder interface {
	Record(ctx context.Context, actor models.Actor, entry ActivityEntry)
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Min, Max    int
	Validate    func(string) error
}

var allowedConfigurationKeys = []string{
	SettingSiteName,
	SettingSiteEmail,
	SettingTimezone,
	SettingDefaultLanguage,
	SettingMaintenanceMode,
	SettingRegistrationEnabled,
	SettingSessionTimeout,
	SettingBackupRetention,
	SettingItemsPerPage,
}

var settingsValidator = validator.New()

var allowedConfigurations = map[string]allowedConfiguration{
	SettingSiteName: {
		Key:         SettingSiteName,
		Type:        models.ConfigurationTypeString,
		Description: "School name shown in the header and emails",
		Validate:    nonEmpty,
	},
	SettingSiteEmail: {
		Key:         SettingSiteEmail,
		Type:        models.ConfigurationTypeString,
		Description: "Contact address of the school office",
		Validate: func(v string) error {
			return settingsValidator.Var(v, "required,email")
		},
	},
	SettingTimezone: {
		Key:         SettingTimezone,
		Type:        models.ConfigurationTypeString,
		Description: "IANA time zone used for dates",
		Validate: func(v string) error {
			_, err := time.LoadLocation(v)
			return err
		},
	},
	SettingDefaultLanguage: {
		Key:         SettingDefaultLanguage,
		Type:        models.ConfigurationTypeString,
		Description: "Language for visitors without a preference",
		Validate:    nonEmpty,
	},
	SettingMaintenanceMode: {
		Key:         SettingMaintenanceMode,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Only administrators may sign in while enabled",
	},
	SettingRegistrationEnabled: {
		Key:         SettingRegistrationEnabled,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Allow students to register themselves",
	},
	SettingSessionTimeout: {
		Key:         SettingSessionTimeout,
		Type:        models.ConfigurationTypeInteger,
		Description: "Minutes of inactivity before a session ends",
		Min:         5,
		Max:         1440,
	},
	SettingBackupRetention: {
		Key:         SettingBackupRetention,
		Type:        models.ConfigurationTypeInteger,
		Description: "Days a backup is kept before cleanup",
		Min:         1,
		Max:         365,
	},
	SettingItemsPerPage: {
		Key:         SettingItemsPerPage,
		Type:        models.ConfigurationTypeInteger,
		Description: "Rows per page in listings",
		Min:         5,
		Max:         200,
	},
}

var builtinConfigurationDefaults = map[string]string{
	SettingSiteName:            "SMA Portal",
	SettingSiteEmail:           "office@sma.local",
	SettingTimezone:            "Asia/Jakarta",
	SettingDefaultLanguage:     "en",
	SettingMaintenanceMode:     "false",
	SettingRegistrationEnabled: "true",
	SettingSessionTimeout:      "120",
	SettingBackupRetention:     "30",
	SettingItemsPerPage:        "20",
}

// ConfigurationServiceConfig tunes runtime behaviour.
type ConfigurationServiceConfig struct {
	Defaults  map[string]string
	Languages []string
}

// ConfigurationService manages the system settings.
type ConfigurationService struct {
	repo      configurationRepository
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
	languages map[string]bool
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(repo configurationRepository, activity activityRecorder, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinConfigurationDefaults))
	for key, value := range builtinConfigurationDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	languages := make(map[string]bool, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		languages[lang] = true
	}
	return &ConfigurationService{
		repo:      repo,
		activity:  activity,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
		languages: languages,
	}
}

// List returns every setting with stored values or defaults.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.ConfigurationItem, error) {
	keys := allowedKeys()
	rows, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	existing := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.ConfigurationItem, 0, len(keys))
	for _, key := range keys {
		meta := allowedConfigurations[key]
		item := dto.ConfigurationItem{
			Key:         key,
			Type:        string(meta.Type),
			Description: meta.Description,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
		} else if def, ok := s.defaultValue(key); ok {
			item.Value = def
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single setting.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err := s.getValueOrDefault(ctx, key)
	if err != nil {
		return nil, err
	}
	return &dto.ConfigurationItem{Key: key, Value: value, Type: string(meta.Type), Description: meta.Description}, nil
}

// Update upserts one setting.
func (s *ConfigurationService) Update(ctx context.Context, actor models.Actor, key, value string) (*dto.ConfigurationItem, error) {
	items, err := s.BulkUpdate(ctx, actor, dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{{Key: key, Value: value}},
	})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// BulkUpdate validates every item first and then saves them in one transaction.
func (s *ConfigurationService) BulkUpdate(ctx context.Context, actor models.Actor, req dto.BulkUpdateConfigurationRequest) ([]dto.ConfigurationItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing settings")
	}
	existingMap := make(map[string]models.Configuration, len(existing))
	for _, cfg := range existing {
		existingMap[cfg.Key] = cfg
	}

	fieldErrors := map[string]string{}
	toUpsert := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			fieldErrors[item.Key] = "unsupported setting"
			continue
		}
		normalized, err := s.validateValue(meta, item.Value)
		if err != nil {
			fieldErrors[item.Key] = err.Error()
			continue
		}
		toUpsert = append(toUpsert, models.Configuration{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   strPtr(actor.UserID),
		})
	}
	if len(fieldErrors) > 0 {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "some settings are invalid"), fieldErrors)
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}

	result := make([]dto.ConfigurationItem, 0, len(toUpsert))
	changes := map[string][2]string{}
	for _, cfg := range toUpsert {
		result = append(result, dto.ConfigurationItem{
			Key:         cfg.Key,
			Value:       cfg.Value,
			Type:        string(cfg.Type),
			Description: allowedConfigurations[cfg.Key].Description,
		})
		prev := existingMap[cfg.Key]
		if prev.Value != cfg.Value {
			changes[cfg.Key] = [2]string{prev.Value, cfg.Value}
		}
	}
	if len(changes) > 0 && s.activity != nil {
		old := make(map[string]string, len(changes))
		updated := make(map[string]string, len(changes))
		for key, pair := range changes {
			old[key], updated[key] = pair[0], pair[1]
		}
		s.activity.Record(ctx, actor, ActivityEntry{
			Action:   models.AuditActionSettingsUpdate,
			Resource: "settings",
			Old:      old,
			New:      updated,
		})
	}
	return result, nil
}

// String returns the value of key or its default.
func (s *ConfigurationService) String(ctx context.Context, key string) string {
	value, err := s.getValueOrDefault(ctx, key)
	if err != nil {
		s.logger.Warn("setting lookup failed, using default", zap.String("key", key), zap.Error(err))
		value, _ = s.defaultValue(key)
	}
	return value
}

// Bool returns a boolean setting.
func (s *ConfigurationService) Bool(ctx context.Context, key string) bool {
	return s.String(ctx, key) == "true"
}

// Int returns an integer setting, falling back to the default for corrupt values.
func (s *ConfigurationService) Int(ctx context.Context, key string) int {
	n, err := strconv.Atoi(s.String(ctx, key))
	if err != nil {
		def, _ := s.defaultValue(key)
		n, _ = strconv.Atoi(def)
	}
	return n
}

// MaintenanceMode reports whether only administrators may sign in.
func (s *ConfigurationService) MaintenanceMode(ctx context.Context) bool {
	return s.Bool(ctx, SettingMaintenanceMode)
}

// RegistrationEnabled reports whether self-registration is open.
func (s *ConfigurationService) RegistrationEnabled(ctx context.Context) bool {
	return s.Bool(ctx, SettingRegistrationEnabled)
}

// SessionTimeout is the idle lifetime of a login.
func (s *ConfigurationService) SessionTimeout(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, SettingSessionTimeout)) * time.Minute
}

// BackupRetention is how long backups are kept.
func (s *ConfigurationService) BackupRetention(ctx context.Context) time.Duration {
	return time.Duration(s.Int(ctx, SettingBackupRetention)) * 24 * time.Hour
}

// ItemsPerPage is the listing page size.
func (s *ConfigurationService) ItemsPerPage(ctx context.Context) int {
	return s.Int(ctx, SettingItemsPerPage)
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.Clone(appErrors.ErrValidation, "unsupported setting")
	}
	return meta, nil
}

func (s *ConfigurationService) validateValue(meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(value) {
		case "true", "1", "on":
			return "true", nil
		case "false", "0", "off", "":
			return "false", nil
		default:
			return "", fmt.Errorf("%s expects a boolean value", meta.Key)
		}
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%s expects a whole number", meta.Key)
		}
		if n < meta.Min || n > meta.Max {
			return "", fmt.Errorf("%s must be between %d and %d", meta.Key, meta.Min, meta.Max)
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeString:
		if meta.Validate != nil {
			if err := meta.Validate(value); err != nil {
				return "", fmt.Errorf("%s is not valid", meta.Key)
			}
		}
		if meta.Key == SettingDefaultLanguage && len(s.languages) > 0 && !s.languages[value] {
			return "", fmt.Errorf("%s must be a supported language", meta.Key)
		}
		return value, nil
	default:
		return "", fmt.Errorf("unsupported setting type")
	}
}

func nonEmpty(v string) error {
	if v == "" {
		return errors.New("value required")
	}
	return nil
}

func allowedKeys() []string {
	keys := make([]string, len(allowedConfigurationKeys))
	copy(keys, allowedConfigurationKeys)
	return keys
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}

func (s *ConfigurationService) defaultValue(key string) (string, bool) {
	value, ok := s.defaults[key]
	return value, ok
}

func (s *ConfigurationService) getValueOrDefault(ctx context.Context, key string) (string, error) {
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			def, _ := s.defaultValue(key)
			return def, nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get setting")
	}
	return cfg.Value, nil
}
