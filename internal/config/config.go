package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` struct tag when reading overrides.
const EnvPrefix = "PHONECAM_"

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// If cmd is provided, flags explicitly set via CLI will not be overwritten.
// A missing config file is not an error; defaults and env vars still apply.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	// Build set of flags explicitly changed via CLI
	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	// Get config file path
	var configPath string
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if fieldType.Name == "Config" {
			configPath = v.Field(i).String()
			break
		}
	}

	// Load TOML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var config map[string]any
			if err := toml.Unmarshal(data, &config); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}

			// Apply TOML values using reflection
			for i := 0; i < v.NumField(); i++ {
				field := v.Field(i)
				fieldType := t.Field(i)

				// Skip if this flag was explicitly set via CLI
				flagName := fieldNameToFlag(fieldType.Name)
				if changedFlags[flagName] {
					continue
				}

				if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" {
					if value := getNestedValue(config, tomlPath); value != nil {
						setFieldValue(field, value)
					}
				}
			}
		}
	}

	// Apply environment variable overrides (skip CLI-set flags)
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Skip if this flag was explicitly set via CLI
		flagName := fieldNameToFlag(fieldType.Name)
		if changedFlags[flagName] {
			continue
		}

		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				setFieldValueFromString(field, envValue)
			}
		}
	}

	return nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Acronyms stay together, matching the kebab casing humacli uses.
// Example: "LoggingLevel" -> "logging-level", "LoggingAPI" -> "logging-api".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	result := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				result = append(result, '-')
			}
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			return nil
		}
	}
	return nil
}

// setFieldValue sets a field value using reflection.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int32, reflect.Int64:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
		} else if i, intOk := value.(int); intOk {
			field.SetInt(int64(i))
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		}
	case reflect.Map:
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return
		}
		if table, ok := value.(map[string]any); ok {
			m := make(map[string]string, len(table))
			for k, v := range table {
				if s, strOk := v.(string); strOk {
					m[k] = s
				}
			}
			field.Set(reflect.ValueOf(m))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			if arr, ok := value.([]any); ok {
				slice := make([]string, len(arr))
				for i, v := range arr {
					if s, strOk := v.(string); strOk {
						slice[i] = s
					}
				}
				field.Set(reflect.ValueOf(slice))
			}
		}
	}
}

// setFieldValueFromString sets a field value from string (for env vars).
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int32, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Map:
		if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(ParsePairs(value)))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Parse comma-separated values for env vars
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// ParsePairs parses "key=value,key=value" into a map. Entries without '='
// are ignored.
func ParsePairs(value string) map[string]string {
	m := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if k = strings.TrimSpace(k); k != "" {
			m[k] = strings.TrimSpace(v)
		}
	}
	return m
}
