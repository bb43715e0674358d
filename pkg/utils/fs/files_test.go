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

package fs

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestReadTail(t *testing.T) {
	Convey("While reading tail of a file", t, func() {
		path := filepath.Join(t.TempDir(), "stdout")
		So(os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0644), ShouldBeNil)

		Convey("Last lines are returned", func() {
			tail, err := ReadTail(path, 2)
			So(err, ShouldBeNil)
			So(tail, ShouldEqual, "three\nfour\n")
		})

		Convey("Short file is returned whole", func() {
			tail, err := ReadTail(path, 10)
			So(err, ShouldBeNil)
			So(tail, ShouldEqual, "one\ntwo\nthree\nfour\n")
		})

		Convey("Missing file is an error", func() {
			_, err := ReadTail(path+".missing", 2)
			So(err, ShouldNotBeNil)
		})
	})
}
