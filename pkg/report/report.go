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
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/intelsdi-x/rendezvous/pkg/readiness"
	"github.com/intelsdi-x/rendezvous/pkg/workflow"
	"github.com/olekukonko/tablewriter"
)

var headers = []string{"Peer", "Status", "Attempts", "Elapsed", "Stalled phase", "Error"}

// Rows renders outcomes as table rows, in order.
func Rows(outcomes []workflow.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		status := color.GreenString("OK")
		phase, message := "-", "-"
		if !outcome.Succeeded() {
			status = color.RedString("FAILED")
			message = outcome.Err.Error()
			var readinessErr *readiness.Error
			if errors.As(outcome.Err, &readinessErr) {
				phase = readinessErr.Phase.String()
			}
		}
		rows = append(rows, []string{
			outcome.Peer,
			status,
			strconv.Itoa(outcome.Attempts),
			outcome.Elapsed.Round(time.Millisecond).String(),
			phase,
			message,
		})
	}
	return rows
}

// Write draws table of outcomes to w.
func Write(w io.Writer, title string, outcomes []workflow.Outcome) {
	fmt.Fprintln(w, color.New(color.Bold).Sprint(title))

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.AppendBulk(Rows(outcomes))
	table.Render()
}
