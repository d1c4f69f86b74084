package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

var entryValidate = newEntryValidator()

func newEntryValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// relpath: empty, or a relative path that stays below the destination root
	_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		if p == "" {
			return true
		}
		if filepath.IsAbs(p) {
			return false
		}
		clean := filepath.Clean(p)
		return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
	})
	// sources: at least one non-blank path; blank ones are skipped at run time
	_ = v.RegisterValidation("sources", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(Sources)
		return ok && !s.IsEmpty()
	})
	return v
}

// ValidateDocument validates raw configuration JSON against Schema
func ValidateDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.Wrap(err, "failed to validate schema")
	}

	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return errors.Newf("configuration file is not valid: %s", strings.Join(descs, "; "))
	}

	return nil
}

// ValidateEntry checks the field constraints of an entry, whether it came from
// a config file, flags or prompts
func ValidateEntry(entry BackupEntry) error {
	if err := entryValidate.Struct(entry); err != nil {
		return errors.Mark(errors.Wrap(err, "entry validation failed"), ErrInvalidEntry)
	}
	return nil
}
