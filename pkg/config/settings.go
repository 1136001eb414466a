package config

import (
	"reflect"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings.
func (c *Config) Settings() map[string]any {
	return settingsOf(reflect.ValueOf(c).Elem())
}

func settingsOf(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		key := t.Field(i).Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		field := v.Field(i)
		switch {
		case field.Type() == durationType:
			out[key] = time.Duration(field.Int()).String()
		case field.Kind() == reflect.Struct:
			out[key] = settingsOf(field)
		default:
			out[key] = field.Interface()
		}
	}
	return out
}
