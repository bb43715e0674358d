// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conf

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/camelcase"
	"github.com/pkg/errors"
)

const (
	// Tag for specifying the help description of the field. [Required]
	helpTag = "help"
	// Tag for specifying default value for field. [Optional]
	defaultTag = "default"
	// Tag for overriding the name of the field. [Optional]
	nameTag = "name"
	// Tag for specifying that the flag string type means something more concrete. [Optional]
	stringTypeTag = "type"
	// Supported values of above are:
	stringTypeIP = "ip"
	// Special field name indicating prefix for all flags in struct.
	prefixFieldName = "flagPrefix"
)

// Process parses given struct and exposes flags for fields with struct tags.
// It also gets the values from these flags when CLI or Env is parsed. If not it will
// set the default values.
//
// Packages call Process from init() to register flags before parsing, and again from
// their DefaultConfig() to pick up parsed values.
func Process(data interface{}) error {
	s := &structProcessor{
		data: reflect.ValueOf(data),
	}
	return s.process()
}

type structProcessor struct {
	data       reflect.Value
	typeOfData reflect.Type
}

func (s *structProcessor) validate() error {
	if s.data.Kind() != reflect.Ptr {
		return errors.Errorf("argument needs to be a pointer to struct, got %s", s.data.Kind().String())
	}

	if s.data.Elem().Kind() != reflect.Struct {
		return errors.Errorf("argument needs to be a pointer to struct, got pointer to %s", s.data.Elem().Kind().String())
	}

	return nil
}

func (s *structProcessor) process() error {
	if err := s.validate(); err != nil {
		return err
	}

	dataValue := s.data.Elem()
	s.typeOfData = dataValue.Type()

	prefix := ""
	if prefixField := dataValue.FieldByName(prefixFieldName); prefixField.IsValid() && prefixField.Kind() == reflect.String {
		prefix = prefixField.String()
	}

	for i := 0; i < dataValue.NumField(); i++ {
		field := dataValue.Field(i)
		if !field.CanSet() {
			continue
		}

		// Embedded structs are not supported.
		if s.typeOfData.Field(i).Anonymous && field.Kind() == reflect.Struct {
			continue
		}

		f := &fieldProcessor{
			prefix:      prefix,
			field:       field,
			fieldStruct: s.typeOfData.Field(i),
		}
		if err := f.process(); err != nil {
			return errors.Wrapf(err, "field %s", s.typeOfData.Field(i).Name)
		}
	}
	return nil
}

// nameFromFieldName converts e.g. PollInterval to poll_interval.
func nameFromFieldName(name string) string {
	words := camelcase.Split(name)
	wordsToUse := []string{}
	for _, word := range words {
		if word == "_" {
			continue
		}
		wordsToUse = append(wordsToUse, strings.ToLower(word))
	}

	return strings.Join(wordsToUse, "_")
}

type fieldProcessor struct {
	prefix      string
	field       reflect.Value
	fieldStruct reflect.StructField
}

func (f *fieldProcessor) flagName() string {
	name := f.fieldStruct.Tag.Get(nameTag)
	if name == "" {
		name = f.fieldStruct.Name
	}
	if f.prefix == "" {
		return nameFromFieldName(name)
	}
	return nameFromFieldName(f.prefix) + "_" + nameFromFieldName(name)
}

func (f *fieldProcessor) isDurationType() bool {
	return f.field.Type() == reflect.TypeOf(time.Duration(0))
}

func (f *fieldProcessor) process() error {
	help := f.fieldStruct.Tag.Get(helpTag)
	if help == "" {
		if f.fieldStruct.Tag.Get(defaultTag) != "" || f.fieldStruct.Tag.Get(nameTag) != "" {
			return errors.New("required help tag is missing")
		}
		// Fields without tags are not exposed.
		return nil
	}

	name := f.flagName()
	defaultValue := f.fieldStruct.Tag.Get(defaultTag)

	switch f.field.Kind() {
	case reflect.String:
		if f.fieldStruct.Tag.Get(stringTypeTag) == stringTypeIP {
			f.field.SetString(NewIPFlag(name, help, defaultValue).Value())
		} else {
			f.field.SetString(NewStringFlag(name, help, defaultValue).Value())
		}
	case reflect.Int, reflect.Int64:
		if f.isDurationType() {
			var defaultDuration time.Duration
			if defaultValue != "" {
				var err error
				defaultDuration, err = time.ParseDuration(defaultValue)
				if err != nil {
					return errors.Wrap(err, "wrong default value for duration flag")
				}
			}
			f.field.SetInt(int64(NewDurationFlag(name, help, defaultDuration).Value()))
			return nil
		}

		var defaultInt int
		if defaultValue != "" {
			var err error
			defaultInt, err = strconv.Atoi(defaultValue)
			if err != nil {
				return errors.Wrap(err, "wrong default value for int flag")
			}
		}
		f.field.SetInt(int64(NewIntFlag(name, help, defaultInt).Value()))
	case reflect.Float64:
		var defaultFloat float64
		if defaultValue != "" {
			var err error
			defaultFloat, err = strconv.ParseFloat(defaultValue, 64)
			if err != nil {
				return errors.Wrap(err, "wrong default value for float flag")
			}
		}
		f.field.SetFloat(NewFloatFlag(name, help, defaultFloat).Value())
	case reflect.Bool:
		var defaultBool bool
		if defaultValue != "" {
			var err error
			defaultBool, err = strconv.ParseBool(defaultValue)
			if err != nil {
				return errors.Wrap(err, "wrong default value for bool flag")
			}
		}
		f.field.SetBool(NewBoolFlag(name, help, defaultBool).Value())
	case reflect.Slice:
		if f.field.Type() != reflect.TypeOf([]string(nil)) {
			return errors.Errorf("%s type not supported for a slice flag", f.field.Type().String())
		}

		var defaults StringListValue
		if defaultValue != "" {
			defaults.Set(defaultValue)
		}
		values := NewSliceFlag(name, help, defaults...).Value()
		f.field.Set(reflect.ValueOf(append([]string{}, values...)))
	default:
		return errors.Errorf("%s type not supported for a flag", f.field.Type().String())
	}

	return nil
}
