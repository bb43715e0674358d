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

// Package roles drives the client and server sides of a multi-role run.
//
// The server role launches the server workload, publishes the resulting
// ServerConfiguration in the local state store and raises the online signal.
// The client role waits for every server peer to be alive, online and
// configured, then runs the load generator against it. Each peer is handled
// by its own retried workflow, so a failing peer never delays the others.
package roles
