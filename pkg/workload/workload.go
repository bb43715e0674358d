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

package workload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/intelsdi-x/rendezvous/pkg/state"
	"github.com/pkg/errors"
)

// Target is the resolved configuration a workload runs against.
type Target struct {
	// Peer is the name of the server agent.
	Peer string
	// Address is the host of the server agent.
	Address string
	// Instances published by the server, in port order.
	Instances []state.ServerInstance
}

// Port returns port of the first server instance or 0.
func (t Target) Port() int {
	if len(t.Instances) == 0 {
		return 0
	}
	return t.Instances[0].Port
}

// Endpoints returns comma separated address:port of every instance.
func (t Target) Endpoints() string {
	endpoints := make([]string, 0, len(t.Instances))
	for _, instance := range t.Instances {
		endpoints = append(endpoints, fmt.Sprintf("%s:%d", t.Address, instance.Port))
	}
	return strings.Join(endpoints, ",")
}

// Output is raw console output of a workload. Parsing it is up to the caller.
type Output struct {
	Target Target
	Raw    string
}

// Runner runs a workload against a target and returns its output.
type Runner interface {
	Run(ctx context.Context, target Target) (Output, error)
}

func parseTemplate(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Errorf("%s command is empty", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s command %q", name, text)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, data); err != nil {
		return "", errors.Wrapf(err, "cannot render %s command", tmpl.Name())
	}
	return buffer.String(), nil
}
