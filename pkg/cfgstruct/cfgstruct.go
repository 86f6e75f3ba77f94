// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct binds configuration structs to flags using the help and
// default struct tags.
package cfgstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Bind sets flags on the flag set from the default values and help text of
// the config struct. Nested structs add their kebab-cased field name as a
// prefix.
func Bind(flags *pflag.FlagSet, config interface{}) {
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("invalid config type: %T, expected pointer to struct", config))
	}
	bindStruct(flags, "", ptr.Elem())
}

func bindStruct(flags *pflag.FlagSet, prefix string, val reflect.Value) {
	typ := val.Type()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %v, expected struct", typ))
	}
	for i := 0; i < typ.NumField(); i++ {
		field, value := typ.Field(i), val.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := prefix + hyphenate(field.Name)
		if field.Type.Kind() == reflect.Struct {
			bindStruct(flags, name+".", value)
			continue
		}
		bindField(flags, name, field, value)
	}
}

func bindField(flags *pflag.FlagSet, name string, field reflect.StructField, value reflect.Value) {
	help := field.Tag.Get("help")
	def := field.Tag.Get("default")
	addr := value.Addr().Interface()

	switch target := addr.(type) {
	case *time.Duration:
		flags.DurationVar(target, name, parseDuration(name, def), help)
	case *string:
		flags.StringVar(target, name, def, help)
	case *bool:
		flags.BoolVar(target, name, parseBool(name, def), help)
	case *int:
		flags.IntVar(target, name, int(parseInt(name, def)), help)
	case *int64:
		flags.Int64Var(target, name, parseInt(name, def), help)
	case *uint64:
		flags.Uint64Var(target, name, uint64(parseInt(name, def)), help)
	case *float64:
		flags.Float64Var(target, name, parseFloat(name, def), help)
	default:
		panic(fmt.Sprintf("invalid field type %v for flag %q", field.Type, name))
	}
}

func parseDuration(name, def string) time.Duration {
	if def == "" {
		return 0
	}
	parsed, err := time.ParseDuration(def)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %q: %v", name, err))
	}
	return parsed
}

func parseBool(name, def string) bool {
	if def == "" {
		return false
	}
	parsed, err := strconv.ParseBool(def)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %q: %v", name, err))
	}
	return parsed
}

func parseInt(name, def string) int64 {
	if def == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(def, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %q: %v", name, err))
	}
	return parsed
}

func parseFloat(name, def string) float64 {
	if def == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(def, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid default for %q: %v", name, err))
	}
	return parsed
}

// hyphenate turns CamelCase field names into kebab-case flag names.
func hyphenate(name string) string {
	var out strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z' {
				out.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		out.WriteRune(r)
	}
	return out.String()
}
