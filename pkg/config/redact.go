package config

import "reflect"

const redactedValue = "***"

// Redacted returns a copy of the configuration with secrets masked. Fields
// tagged secret:"true" are always masked; so is any string the secrets file set.
func (c *Config) Redacted(secrets *Config) *Config {
	out := *c
	var mask reflect.Value
	if secrets != nil {
		mask = reflect.ValueOf(secrets).Elem()
	}
	redactStruct(reflect.ValueOf(&out).Elem(), mask)
	return &out
}

func redactStruct(v, mask reflect.Value) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		var maskField reflect.Value
		if mask.IsValid() {
			maskField = mask.Field(i)
		}
		switch field.Kind() {
		case reflect.Struct:
			redactStruct(field, maskField)
		case reflect.String:
			if field.String() == "" {
				continue
			}
			tagged := t.Field(i).Tag.Get("secret") == "true"
			fromSecrets := maskField.IsValid() && maskField.String() != ""
			if tagged || fromSecrets {
				field.SetString(redactedValue)
			}
		}
	}
}
