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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/intelsdi-x/rendezvous/pkg/executor"
	"github.com/intelsdi-x/rendezvous/pkg/executor/mocks"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func serverConfig() Config {
	return Config{
		ServerCmd:           "memcached -p {{.Port}} {{if .Affinity}}--affinity {{.Affinity}}{{end}}",
		ServerCopies:        3,
		ServerPort:          11211,
		ServerAffinity:      []string{"0-1", "2-3"},
		ServerHost:          "127.0.0.1",
		ServerListenTimeout: time.Second,
	}
}

type listenRecorder struct {
	sync.Mutex
	addresses []string
	failOn    string
}

func (r *listenRecorder) wait(ctx context.Context, address string, timeout time.Duration) error {
	r.Lock()
	defer r.Unlock()
	r.addresses = append(r.addresses, address)
	if address == r.failOn {
		return errors.Errorf("%q is not listening", address)
	}
	return nil
}

func TestServerLauncher(t *testing.T) {
	Convey("While using server launcher", t, func() {
		exec := &mocks.Executor{}
		exec.On("Name").Return("mocked").Maybe()
		recorder := &listenRecorder{}

		launcher, err := NewServerLauncher(exec, serverConfig())
		So(err, ShouldBeNil)
		launcher.waitListening = recorder.wait

		So(launcher.String(), ShouldEqual, "3 server copies from port 11211")

		Convey("Copies get consecutive ports and cycled affinity", func() {
			So(launcher.Instances(), ShouldResemble, []Instance{
				{Index: 0, Port: 11211, Affinity: "0-1"},
				{Index: 1, Port: 11212, Affinity: "2-3"},
				{Index: 2, Port: 11213, Affinity: "0-1"},
			})
		})

		tasks := []*mocks.TaskHandle{{}, {}, {}}
		exec.On("Execute", "memcached -p 11211 --affinity 0-1").Return(tasks[0], nil).Maybe()
		exec.On("Execute", "memcached -p 11212 --affinity 2-3").Return(tasks[1], nil).Maybe()
		exec.On("Execute", "memcached -p 11213 --affinity 0-1").Return(tasks[2], nil).Maybe()

		Convey("When every copy listens configuration lists them in order", func() {
			servers, err := launcher.Launch(context.Background())
			So(err, ShouldBeNil)
			So(servers.Tasks, ShouldHaveLength, 3)
			So(servers.Configuration.Validate(), ShouldBeNil)
			So(servers.Configuration.Instances[0].Port, ShouldEqual, 11211)
			So(servers.Configuration.Instances[2].Port, ShouldEqual, 11213)
			So(servers.Configuration.Instances[1].Affinity, ShouldEqual, "2-3")
			So(recorder.addresses, ShouldResemble, []string{"127.0.0.1:11211", "127.0.0.1:11212", "127.0.0.1:11213"})

			Convey("Stop stops every copy", func() {
				for _, task := range tasks {
					task.On("Stop").Return(nil).Once()
					task.On("Clean").Return(nil).Once()
				}
				So(servers.Stop(), ShouldBeNil)
				for _, task := range tasks {
					task.AssertExpectations(t)
				}
			})
		})

		Convey("When a copy does not listen every copy is stopped", func() {
			recorder.failOn = "127.0.0.1:11212"
			for _, task := range tasks {
				task.On("Stop").Return(nil).Once()
				task.On("Clean").Return(nil).Once()
				task.On("Address").Return("127.0.0.1").Maybe()
				task.On("StdoutFile").Return(nil, errors.New("no output")).Maybe()
				task.On("StderrFile").Return(nil, errors.New("no output")).Maybe()
				task.On("ExitCode").Return(-1, errors.New("running")).Maybe()
			}

			_, err := launcher.Launch(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "server copy 1 is not listening")
			for _, task := range tasks {
				task.AssertExpectations(t)
			}
		})

		Convey("When a copy cannot be executed previous copies are stopped", func() {
			failing := &mocks.Executor{}
			failing.On("Execute", "memcached -p 11211 --affinity 0-1").Return(tasks[0], nil).Once()
			failing.On("Execute", "memcached -p 11212 --affinity 2-3").Return(nil, errors.New("exec failed")).Once()
			launcher.exec = failing
			tasks[0].On("Stop").Return(nil).Once()
			tasks[0].On("Clean").Return(nil).Once()

			_, err := launcher.Launch(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "exec failed")
			tasks[0].AssertExpectations(t)
			tasks[1].AssertNotCalled(t, "Stop")
		})
	})

	Convey("With taskset enabled copies are pinned to their affinity", t, func() {
		config := serverConfig()
		config.ServerCmd = "memcached -p {{.Port}}"
		config.ServerCopies = 2
		config.ServerAffinity = []string{"0-1", "2+4"}
		config.ServerTaskset = true

		launcher, err := NewServerLauncher(&mocks.Executor{}, config)
		So(err, ShouldBeNil)

		command, err := launcher.command(launcher.Instances()[1])
		So(err, ShouldBeNil)
		So(command, ShouldEqual, "taskset -c 2,4 memcached -p 11212")

		config.ServerAffinity = []string{"x"}
		_, err = NewServerLauncher(&mocks.Executor{}, config)
		So(err, ShouldNotBeNil)
	})

	Convey("Invalid launcher configuration is rejected", t, func() {
		config := serverConfig()
		config.ServerCopies = 0
		_, err := NewServerLauncher(&mocks.Executor{}, config)
		So(err, ShouldNotBeNil)

		config = serverConfig()
		config.ServerPort = 65535
		_, err = NewServerLauncher(&mocks.Executor{}, config)
		So(err, ShouldNotBeNil)

		config = serverConfig()
		config.ServerCmd = ""
		_, err = NewServerLauncher(&mocks.Executor{}, config)
		So(err, ShouldNotBeNil)
	})
}

func TestServersWait(t *testing.T) {
	Convey("While waiting for servers", t, func() {
		Convey("Wait returns true once any copy terminates", func() {
			finished := &mocks.TaskHandle{}
			finished.On("Wait", time.Duration(0)).Return(true)

			release := make(chan time.Time)
			defer close(release)
			running := &mocks.TaskHandle{}
			running.On("Wait", time.Duration(0)).WaitUntil(release).Return(true)

			servers := &Servers{Tasks: []executor.TaskHandle{running, finished}}
			So(servers.Wait(context.Background()), ShouldBeTrue)
		})

		Convey("Wait returns false when context is done first", func() {
			release := make(chan time.Time)
			defer close(release)
			running := &mocks.TaskHandle{}
			running.On("Wait", time.Duration(0)).WaitUntil(release).Return(true)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			servers := &Servers{Tasks: []executor.TaskHandle{running}}
			So(servers.Wait(ctx), ShouldBeFalse)
		})
	})
}
