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

package env

import (
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPortOverride(t *testing.T) {
	Convey("Port variable names are upper cased agent names", t, func() {
		So(PortVariable("server"), ShouldEqual, "SERVER_PORT")
		So(PortVariable("server-01.lab"), ShouldEqual, "SERVER_01_LAB_PORT")
	})

	Convey("When the port variable is not set", t, func() {
		os.Unsetenv("CLIENT_PORT")
		_, ok, err := PortOverride("client")
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
	})

	Convey("When the port variable is set", t, func() {
		os.Setenv("CLIENT_PORT", "4501")
		defer os.Unsetenv("CLIENT_PORT")

		port, ok, err := PortOverride("client")
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		So(port, ShouldEqual, 4501)
	})

	Convey("When the port variable is garbage", t, func() {
		os.Setenv("CLIENT_PORT", "high")
		defer os.Unsetenv("CLIENT_PORT")

		_, ok, err := PortOverride("client")
		So(err, ShouldNotBeNil)
		So(ok, ShouldBeFalse)
	})
}
