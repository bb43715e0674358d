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

package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReport(t *testing.T) {
	color.NoColor = true

	Convey("While reporting workflow outcomes", t, func() {
		stalled := &workflow.Error{
			Peer:     "server02",
			Attempts: 3,
			Err: &readiness.Error{
				Peer:    "server02",
				Phase:   readiness.PhaseOnline,
				Kind:    readiness.TimedOut,
				Elapsed: 10 * time.Minute,
				Err:     errors.New("peer not ready"),
			},
		}
		outcomes := []workflow.Outcome{
			{Peer: "server01", Attempts: 1, Elapsed: 1500 * time.Millisecond},
			{Peer: "server02", Attempts: 3, Elapsed: 30 * time.Minute, Err: stalled},
		}

		Convey("Rows keep outcome order and name the stalled phase", func() {
			rows := Rows(outcomes)
			So(rows, ShouldHaveLength, 2)
			So(rows[0], ShouldResemble, []string{"server01", "OK", "1", "1.5s", "-", "-"})
			So(rows[1][0], ShouldEqual, "server02")
			So(rows[1][1], ShouldEqual, "FAILED")
			So(rows[1][4], ShouldEqual, "online-signal")
			So(rows[1][5], ShouldContainSubstring, "server02")
		})

		Convey("Table contains headers and peers", func() {
			var buffer bytes.Buffer
			Write(&buffer, "Client run", outcomes)

			output := buffer.String()
			So(output, ShouldStartWith, "Client run\n")
			So(output, ShouldContainSubstring, "STALLED PHASE")
			So(output, ShouldContainSubstring, "server01")
			So(output, ShouldContainSubstring, "online-signal")
		})
	})
}
