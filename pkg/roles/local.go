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

package roles

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Local runs both roles in one process against the loopback directory.
type Local struct {
	Server *ServerRole
	Client *ClientRole
}

// Run starts the server role, runs the client role and stops the server role.
func (l Local) Run(ctx context.Context) ([]Result, error) {
	if err := l.Server.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := l.Server.Stop(); err != nil {
			logrus.Errorf("Cannot stop server workload: %v", err)
		}
	}()

	return l.Client.Run(ctx)
}
