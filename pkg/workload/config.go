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
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/conf"
	"github.com/intelsdi-x/rendezvous/pkg/utils/errutil"
)

// Config of the workload invocation boundary.
type Config struct {
	WorkloadCmd         string        `help:"Load generator command template executed by the client role, e.g. 'mutilate -s {{.Address}}:{{.Port}}'"`
	ServerCmd           string        `help:"Server workload command template executed by the server role, e.g. 'memcached -p {{.Port}}'"`
	ServerCopies        int           `help:"Number of server workload copies, each on the next port" default:"1"`
	ServerPort          int           `help:"Port of the first server workload copy" default:"11211"`
	ServerAffinity      []string      `help:"CPU affinity of server copies, one cpu list per copy (ranges joined with '+', e.g. 0-1+4), cycled when shorter than copies"`
	ServerTaskset       bool          `help:"Pin every server copy to its CPU affinity with taskset"`
	ServerHost          string        `help:"Address server copies are checked on after launch" type:"ip" default:"127.0.0.1"`
	ServerListenTimeout time.Duration `help:"How long each server copy may take to start listening" default:"30s"`

	flagPrefix string
}

func init() {
	DefaultConfig()
}

// DefaultConfig returns configuration from flags, environment or defaults.
func DefaultConfig() Config {
	config := Config{}
	errutil.CheckWithContext(conf.Process(&config), "cannot register workload flags")
	return config
}
