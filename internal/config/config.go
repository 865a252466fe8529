package config

import (
	"fmt"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/proto2rest/internal/httproute"
	"github.com/mark3labs/proto2rest/internal/proto"
)

// Settings carries every knob that influences parsing, extraction, and
// generation. Values merge in order: defaults, config file, environment,
// then flag overrides applied by the CLI.
type Settings struct {
	IncludePaths     []string `yaml:"includePaths" envconfig:"PROTO2REST_INCLUDE_PATHS"`
	MaxImportDepth   int      `yaml:"maxImportDepth" envconfig:"PROTO2REST_MAX_IMPORT_DEPTH"`
	PreserveComments bool     `yaml:"preserveComments" envconfig:"PROTO2REST_PRESERVE_COMMENTS"`
	StrictValidation bool     `yaml:"strictValidation" envconfig:"PROTO2REST_STRICT_VALIDATION"`
	CacheSize        int      `yaml:"cacheSize" envconfig:"PROTO2REST_CACHE_SIZE"`

	InferQueryParams    bool     `yaml:"inferQueryParams" envconfig:"PROTO2REST_INFER_QUERY_PARAMS"`
	CommonQueryParams   []string `yaml:"commonQueryParams" envconfig:"PROTO2REST_COMMON_QUERY_PARAMS"`
	ValidateHTTPMethods bool     `yaml:"validateHttpMethods" envconfig:"PROTO2REST_VALIDATE_HTTP_METHODS"`
	AllowCustomMethods  bool     `yaml:"allowCustomMethods" envconfig:"PROTO2REST_ALLOW_CUSTOM_METHODS"`

	ServiceInterfaces bool   `yaml:"serviceInterfaces" envconfig:"PROTO2REST_SERVICE_INTERFACES"`
	PackageName       string `yaml:"packageName" envconfig:"PROTO2REST_PACKAGE_NAME"`
}

// Default returns the tool's baseline configuration.
func Default() Settings {
	return Settings{
		IncludePaths:        []string{"."},
		MaxImportDepth:      10,
		PreserveComments:    true,
		StrictValidation:    true,
		CacheSize:           64,
		InferQueryParams:    true,
		CommonQueryParams:   []string{"page", "limit", "offset", "sort", "order", "filter", "search"},
		ValidateHTTPMethods: true,
		AllowCustomMethods:  false,
		ServiceInterfaces:   true,
	}
}

// LoadFile merges a yaml config file into s. Keys match ignoring case,
// dashes, and underscores; an unknown key is an error so typos never pass
// silently.
func LoadFile(fs afero.Fs, path string, s *Settings) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	for key, value := range raw {
		if err := applyField(s, normalizeKey(key), value); err != nil {
			return fmt.Errorf("config file %q: field %q: %w", path, key, err)
		}
	}
	return nil
}

func applyField(s *Settings, key string, value any) error {
	switch key {
	case "includepaths":
		list, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		s.IncludePaths = list
	case "maximportdepth":
		n, err := valueAsInt(value)
		if err != nil {
			return err
		}
		s.MaxImportDepth = n
	case "preservecomments":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.PreserveComments = b
	case "strictvalidation":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.StrictValidation = b
	case "cachesize":
		n, err := valueAsInt(value)
		if err != nil {
			return err
		}
		s.CacheSize = n
	case "inferqueryparams":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.InferQueryParams = b
	case "commonqueryparams":
		list, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		s.CommonQueryParams = list
	case "validatehttpmethods":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.ValidateHTTPMethods = b
	case "allowcustommethods":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.AllowCustomMethods = b
	case "serviceinterfaces":
		b, err := valueAsBool(value)
		if err != nil {
			return err
		}
		s.ServiceInterfaces = b
	case "packagename":
		str, err := valueAsString(value)
		if err != nil {
			return err
		}
		s.PackageName = str
	default:
		return fmt.Errorf("unknown field")
	}
	return nil
}

// FromEnv overlays PROTO2REST_* environment variables onto s. Unset
// variables leave the current values alone.
func FromEnv(s *Settings) error {
	if err := envconfig.Process("", s); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Normalize trims and dedupes the list-valued settings.
func (s *Settings) Normalize() {
	s.IncludePaths = dedupe(s.IncludePaths)
	s.CommonQueryParams = dedupe(s.CommonQueryParams)
	s.PackageName = strings.TrimSpace(s.PackageName)
}

// Validate rejects settings no run should proceed with.
func (s *Settings) Validate() error {
	if len(s.IncludePaths) == 0 {
		return fmt.Errorf("at least one include path is required")
	}
	if s.MaxImportDepth < 1 || s.MaxImportDepth > 100 {
		return fmt.Errorf("max import depth must be between 1 and 100, got %d", s.MaxImportDepth)
	}
	if s.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1, got %d", s.CacheSize)
	}
	return nil
}

// ParserOptions maps the settings onto parser options.
func (s *Settings) ParserOptions(fs afero.Fs, log logrus.FieldLogger) []proto.ParserOption {
	return []proto.ParserOption{
		proto.WithIncludePaths(s.IncludePaths...),
		proto.WithMaxImportDepth(s.MaxImportDepth),
		proto.WithPreserveComments(s.PreserveComments),
		proto.WithCacheSize(s.CacheSize),
		proto.WithFS(fs),
		proto.WithLogger(log),
	}
}

// ExtractorOptions maps the settings onto extractor options.
func (s *Settings) ExtractorOptions() []httproute.Option {
	return []httproute.Option{
		httproute.WithQueryInference(s.InferQueryParams),
		httproute.WithCommonQueryParams(s.CommonQueryParams...),
		httproute.WithMethodValidation(s.ValidateHTTPMethods),
		httproute.WithCustomMethods(s.AllowCustomMethods),
		httproute.WithStrictValidation(s.StrictValidation),
	}
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case float64:
		n := int(val)
		if float64(n) != val {
			return 0, fmt.Errorf("expected integer, got %v", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
