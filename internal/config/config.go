package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/AstroPlant/astroplant-camera-module/internal/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the process environment variables.
const envPrefix = "ASTROPLANT_"

// binding ties one options field to its configuration sources.
type binding struct {
	value    reflect.Value
	tomlPath string // dot-notation path into the TOML document
	envKey   string // environment key, without the prefix
}

// LoadConfig fills opts from the TOML file named by its Config field
// and from the process environment. Precedence is CLI flags, then
// environment, then file: fields whose flag the user set on the
// command line (as reported by cmd) are never overwritten, and
// environment values are applied after the file.
func LoadConfig(opts any, cmd *cobra.Command) error {
	cliSet := make(map[string]bool)
	if cmd != nil {
		// Visit walks only the flags that were actually set.
		cmd.Flags().Visit(func(f *pflag.Flag) {
			cliSet[f.Name] = true
		})
	}

	bindings, configPath := bindFields(opts, cliSet)

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var doc map[string]any
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
			for _, b := range bindings {
				if b.tomlPath == "" {
					continue
				}
				if value := lookupTOML(doc, b.tomlPath); value != nil {
					assign(b.value, value)
				}
			}
		}
	}

	for _, b := range bindings {
		if b.envKey == "" {
			continue
		}
		if value := os.Getenv(envPrefix + b.envKey); value != "" {
			assignString(b.value, value)
		}
	}

	return nil
}

// bindFields walks the options struct once, pairing each field with
// its sources. Fields already set on the command line are dropped; the
// Config field names the TOML file and is never loaded from it.
func bindFields(opts any, cliSet map[string]bool) ([]binding, string) {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	var bindings []binding
	var configPath string

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.Name == "Config" {
			configPath = v.Field(i).String()
			continue
		}
		if cliSet[flagNameFor(field.Name)] {
			continue
		}
		bindings = append(bindings, binding{
			value:    v.Field(i),
			tomlPath: field.Tag.Get("toml"),
			envKey:   field.Tag.Get("env"),
		})
	}
	return bindings, configPath
}

// flagNameFor converts a field name to the kebab-case flag the CLI
// generates for it: "LoggingLevel" becomes "logging-level" and
// acronym runs stay together, "LoggingAPI" becomes "logging-api".
func flagNameFor(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			acronymEnd := unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || acronymEnd {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookupTOML walks a dot-notation path through nested tables.
func lookupTOML(doc map[string]any, path string) any {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := doc[part].(map[string]any)
		if !ok {
			return nil
		}
		doc = next
	}
	return doc[parts[len(parts)-1]]
}

// assign writes a decoded TOML value into a field. Values of the wrong
// type are ignored.
func assign(field reflect.Value, value any) {
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
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		items, ok := value.([]any)
		if !ok {
			return
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// assignString parses an environment value into a field. Values that
// do not parse are ignored rather than failing startup.
func assignString(field reflect.Value, value string) {
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
	case reflect.Int:
		if n, err := strconv.Atoi(value); err == nil {
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLoggingConfig reads the [logging] table from a TOML config file.
// A missing or malformed file yields the defaults, so logging always
// comes up.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg
	}

	// level and format configure the defaults; every other key is a
	// module name.
	for key, value := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
