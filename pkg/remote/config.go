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

package remote

import (
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/conf"
	"github.com/intelsdi-x/rendezvous/pkg/utils/errutil"
)

// Config of calls made to remote agents.
type Config struct {
	CallTimeout  time.Duration `help:"Timeout of a single call to a remote agent, transport retries included." default:"30s"`
	RetryMax     int           `help:"Maximum number of transport retries of a call failing with a transient error." default:"3"`
	RetryWaitMin time.Duration `help:"Base wait between transport retries, multiplied by the retry number." default:"500ms"`
	RetryWaitMax time.Duration `help:"Upper bound of the jittered wait between transport retries." default:"1s"`

	// Secret is sent in every request when not empty.
	Secret string

	flagPrefix string
}

func init() {
	DefaultConfig()
}

// DefaultConfig returns configuration from flags, environment or defaults.
func DefaultConfig() Config {
	config := Config{flagPrefix: "remote"}
	errutil.CheckWithContext(conf.Process(&config), "cannot register remote client flags")
	return config
}
