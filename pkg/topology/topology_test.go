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

package topology

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseRole(t *testing.T) {
	Convey("Roles are parsed case insensitively", t, func() {
		role, err := ParseRole("CLIENT")
		So(err, ShouldBeNil)
		So(role, ShouldEqual, Client)

		role, err = ParseRole(" server ")
		So(err, ShouldBeNil)
		So(role, ShouldEqual, Server)

		_, err = ParseRole("observer")
		So(err, ShouldNotBeNil)
	})
}

func TestDirectory(t *testing.T) {
	Convey("While using a multi role directory", t, func() {
		agents := []AgentDescriptor{
			{Name: "client01", Address: "10.0.0.1", Role: Client},
			{Name: "server01", Address: "10.0.0.2", Role: Server},
			{Name: "client02", Address: "10.0.0.3", Role: Client},
			{Name: "server02", Address: "10.0.0.4", Role: Server},
		}
		directory, err := New(agents)
		So(err, ShouldBeNil)
		So(directory.IsMultiRole(), ShouldBeTrue)

		Convey("Resolve returns matching agents in directory order", func() {
			So(directory.Resolve(Client), ShouldResemble, []AgentDescriptor{agents[0], agents[2]})
			So(directory.Resolve(Server), ShouldResemble, []AgentDescriptor{agents[1], agents[3]})
		})

		Convey("Resolve is stable across calls", func() {
			first := directory.Resolve(Server)
			first[0].Name = "mutated"
			So(directory.Resolve(Server), ShouldResemble, []AgentDescriptor{agents[1], agents[3]})
		})

		Convey("ResolveOne fails when more than one agent has the role", func() {
			_, err := directory.ResolveOne(Server)
			var topologyErr *TopologyError
			So(errors.As(err, &topologyErr), ShouldBeTrue)
			So(topologyErr.Found, ShouldEqual, 2)
		})

		Convey("Lookup is case insensitive", func() {
			agent, ok := directory.Lookup("SERVER02")
			So(ok, ShouldBeTrue)
			So(agent.Address, ShouldEqual, "10.0.0.4")

			_, ok = directory.Lookup("server03")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("ResolveOne returns the only agent of a role", t, func() {
		directory, err := New([]AgentDescriptor{
			{Name: "client01", Address: "10.0.0.1", Role: Client},
			{Name: "server01", Address: "10.0.0.2", Role: Server},
		})
		So(err, ShouldBeNil)

		server, err := directory.ResolveOne(Server)
		So(err, ShouldBeNil)
		So(server.Name, ShouldEqual, "server01")
	})

	Convey("ResolveOne fails when no agent has the role", t, func() {
		directory, err := New([]AgentDescriptor{{Name: "client01", Address: "10.0.0.1", Role: Client}})
		So(err, ShouldBeNil)

		_, err = directory.ResolveOne(Server)
		So(err, ShouldHaveSameTypeAs, &TopologyError{})
	})

	Convey("Invalid directories are rejected", t, func() {
		_, err := New(nil)
		So(err, ShouldNotBeNil)

		_, err = New([]AgentDescriptor{
			{Name: "agent", Address: "10.0.0.1", Role: Client},
			{Name: "Agent", Address: "10.0.0.2", Role: Server},
		})
		So(err, ShouldNotBeNil)

		_, err = New([]AgentDescriptor{{Name: "agent", Role: Client}})
		So(err, ShouldNotBeNil)
	})

	Convey("Loopback directory is single machine", t, func() {
		directory := Loopback()
		So(directory.IsMultiRole(), ShouldBeFalse)

		client, err := directory.ResolveOne(Client)
		So(err, ShouldBeNil)
		So(client.Address, ShouldEqual, "127.0.0.1")

		server, err := directory.ResolveOne(Server)
		So(err, ShouldBeNil)
		So(server.Address, ShouldEqual, "127.0.0.1")
	})
}
