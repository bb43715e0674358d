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
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseCPUList parses traditional cgroup cpu list representation, e.g. "0-5,34,46-48".
// '+' is accepted as separator as well, since commas split repeatable flags.
func ParseCPUList(list string) ([]int, error) {
	set := map[int]struct{}{}

	ranges := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == '+' })
	if len(ranges) == 0 {
		return nil, errors.Errorf("empty cpu list %q", list)
	}

	for _, r := range ranges {
		boundaries := strings.Split(strings.TrimSpace(r), "-")
		switch len(boundaries) {
		case 1:
			cpu, err := parseCPU(boundaries[0])
			if err != nil {
				return nil, errors.Wrapf(err, "cpu list %q", list)
			}
			set[cpu] = struct{}{}
		case 2:
			start, err := parseCPU(boundaries[0])
			if err != nil {
				return nil, errors.Wrapf(err, "cpu list %q", list)
			}
			end, err := parseCPU(boundaries[1])
			if err != nil {
				return nil, errors.Wrapf(err, "cpu list %q", list)
			}
			if end < start {
				return nil, errors.Errorf("cpu list %q has descending range %q", list, r)
			}
			for cpu := start; cpu <= end; cpu++ {
				set[cpu] = struct{}{}
			}
		default:
			return nil, errors.Errorf("cpu list %q has invalid range %q", list, r)
		}
	}

	cpus := make([]int, 0, len(set))
	for cpu := range set {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus, nil
}

func parseCPU(value string) (int, error) {
	cpu, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if cpu < 0 {
		return 0, errors.Errorf("negative cpu %d", cpu)
	}
	return cpu, nil
}
