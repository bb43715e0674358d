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
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
)

const stringListDelimiter = ","

// StringListValue is a custom kingpin parser for flags holding a string slice.
// Every occurrence of the flag is split by `stringListDelimiter` and appended, so
// `--agent=a --agent=b,c` gives [a b c].
type StringListValue []string

// Set implements kingpin.Value.
func (s *StringListValue) Set(value string) error {
	*s = append(*s, strings.Split(value, stringListDelimiter)...)
	return nil
}

// Get implements kingpin.Getter.
func (s *StringListValue) Get() interface{} {
	return []string(*s)
}

// String implements kingpin.Value.
func (s *StringListValue) String() string {
	return strings.Join(*s, stringListDelimiter)
}

// IsCumulative implements kingpin's repeatableFlag interface.
func (s *StringListValue) IsCumulative() bool {
	return true
}

// StringList is a helper for defining kingpin flags.
func StringList(s kingpin.Settings) (target *[]string) {
	target = new([]string)
	s.SetValue((*StringListValue)(target))
	return
}

// RepeatedValue is StringListValue which keeps every occurrence of the flag
// whole, so `--agent=a,1 --agent=b,2` gives [a,1 b,2].
type RepeatedValue []string

// Set implements kingpin.Value.
func (r *RepeatedValue) Set(value string) error {
	*r = append(*r, value)
	return nil
}

// Get implements kingpin.Getter.
func (r *RepeatedValue) Get() interface{} {
	return []string(*r)
}

// String implements kingpin.Value.
func (r *RepeatedValue) String() string {
	return strings.Join(*r, " ")
}

// IsCumulative implements kingpin's repeatableFlag interface.
func (r *RepeatedValue) IsCumulative() bool {
	return true
}

// Repeated is a helper for defining kingpin flags keeping values whole.
func Repeated(s kingpin.Settings) (target *[]string) {
	target = new([]string)
	s.SetValue((*RepeatedValue)(target))
	return
}
