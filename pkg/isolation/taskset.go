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

package isolation

import (
	"fmt"
	"strconv"
	"strings"
)

// Taskset pins a command to CPUs using taskset.
type Taskset struct {
	CPUs []int
}

// NewTaskset returns Taskset for cpu list like "0-3,8".
func NewTaskset(cpuList string) (Taskset, error) {
	cpus, err := ParseCPUList(cpuList)
	if err != nil {
		return Taskset{}, err
	}
	return Taskset{CPUs: cpus}, nil
}

// Decorate implements Decorator interface.
func (t Taskset) Decorate(command string) string {
	cpus := make([]string, 0, len(t.CPUs))
	for _, cpu := range t.CPUs {
		cpus = append(cpus, strconv.Itoa(cpu))
	}
	if len(cpus) == 0 {
		cpus = append(cpus, "0")
	}

	return fmt.Sprintf("taskset -c %s %s", strings.Join(cpus, ","), command)
}
