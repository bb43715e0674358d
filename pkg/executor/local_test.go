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

package executor

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocal(t *testing.T) {
	Convey("While using Local executor", t, func() {
		outputDir, err := os.MkdirTemp("", "local_executor")
		So(err, ShouldBeNil)
		defer os.RemoveAll(outputDir)

		l := NewLocalIn(outputDir)
		So(l.Name(), ShouldEqual, "Local Executor")

		Convey("When blocking infinitively sleep command is executed", func() {
			task, err := l.Execute("sleep inf")
			So(err, ShouldBeNil)
			defer task.Stop()

			Convey("Task should be still running and exit code unavailable", func() {
				So(task.Status(), ShouldEqual, RUNNING)
				_, err := task.ExitCode()
				So(err, ShouldNotBeNil)
			})

			Convey("When we wait for task termination with the 1ms timeout the task is not terminated", func() {
				So(task.Wait(time.Millisecond), ShouldBeFalse)
				So(task.Status(), ShouldEqual, RUNNING)
			})

			Convey("When we stop the task it is terminated with exit code 143", func() {
				So(task.Stop(), ShouldBeNil)
				So(task.Status(), ShouldEqual, TERMINATED)

				exitCode, err := task.ExitCode()
				So(err, ShouldBeNil)
				So(exitCode, ShouldEqual, 143)

				Convey("And stopping again is a no-op", func() {
					So(task.Stop(), ShouldBeNil)
				})
			})

			Convey("When context is cancelled WaitContext returns false", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
				defer cancel()
				So(WaitContext(ctx, task), ShouldBeFalse)
			})

			Convey("When multiple go routines wait for termination they are released by stop", func() {
				results := make(chan bool)
				for i := 0; i < 5; i++ {
					go func() {
						results <- task.Wait(0)
					}()
				}

				So(task.Stop(), ShouldBeNil)
				for i := 0; i < 5; i++ {
					So(<-results, ShouldBeTrue)
				}
			})
		})

		Convey("When command `echo output` is executed", func() {
			task, err := l.Execute("echo output")
			So(err, ShouldBeNil)
			So(task.Wait(0), ShouldBeTrue)

			Convey("The task should be terminated with exit code 0", func() {
				So(task.Status(), ShouldEqual, TERMINATED)
				exitCode, err := task.ExitCode()
				So(err, ShouldBeNil)
				So(exitCode, ShouldEqual, 0)
			})

			Convey("The stdout file holds the output", func() {
				file, err := task.StdoutFile()
				So(err, ShouldBeNil)
				defer file.Close()

				data, err := io.ReadAll(file)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "output\n")
			})

			Convey("WaitContext returns true", func() {
				So(WaitContext(context.Background(), task), ShouldBeTrue)
			})

			Convey("Erasing output removes the output directory", func() {
				file, err := task.StdoutFile()
				So(err, ShouldBeNil)
				file.Close()

				So(task.EraseOutput(), ShouldBeNil)
				_, err = os.Stat(file.Name())
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When command exits with non zero code", func() {
			task, err := l.Execute("sleep 0.2; echo failure >&2; exit 3")
			So(err, ShouldBeNil)
			So(task.Wait(0), ShouldBeTrue)

			exitCode, err := task.ExitCode()
			So(err, ShouldBeNil)
			So(exitCode, ShouldEqual, 3)

			file, err := task.StderrFile()
			So(err, ShouldBeNil)
			defer file.Close()
			data, err := io.ReadAll(file)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "failure\n")
		})

		Convey("When empty command is executed an error is returned", func() {
			_, err := l.Execute("   ")
			So(err, ShouldNotBeNil)
		})
	})
}
