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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultConfig(t *testing.T) {
	Convey("Workload flags are registered with their defaults", t, func() {
		config := DefaultConfig()
		So(config.ServerCopies, ShouldEqual, 1)
		So(config.ServerPort, ShouldEqual, 11211)
		So(config.ServerHost, ShouldEqual, "127.0.0.1")
		So(config.ServerListenTimeout, ShouldEqual, 30*time.Second)
		So(config.ServerTaskset, ShouldBeFalse)

		Convey("Every call returns its own copy", func() {
			config.ServerAffinity = append(config.ServerAffinity, "0-1")
			So(DefaultConfig().ServerAffinity, ShouldBeEmpty)
		})
	})
}
