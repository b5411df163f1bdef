/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bootstrap

import "github.com/tomoncle/scholar/types"

// State is a step of a bootstrap run.
type State int

const (
	Disconnected State = iota
	Connected
	SchemaChecked
	SchemaApplied
	SchemaSkipped
	DataChecked
	DataPopulated
	DataSkipped
	Verified
	Closed
)

var stateNames = [...]struct{ name, desc string }{
	Disconnected:  {"disconnected", "no connection yet"},
	Connected:     {"connected", "database authenticated"},
	SchemaChecked: {"schema_checked", "core tables looked up"},
	SchemaApplied: {"schema_applied", "schema file applied"},
	SchemaSkipped: {"schema_skipped", "tables already present"},
	DataChecked:   {"data_checked", "field count read"},
	DataPopulated: {"data_populated", "catalog seeded"},
	DataSkipped:   {"data_skipped", "data already present"},
	Verified:      {"verified", "final counts read"},
	Closed:        {"closed", "connection released"},
}

var _ types.BaseEnum = Disconnected

// States lists every state in declaration order.
func States() []State {
	out := make([]State, 0, len(stateNames))
	for i := range stateNames {
		out = append(out, State(i))
	}
	return out
}

func (s State) IsValid() bool { return s >= Disconnected && s <= Closed }

func (s State) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s State) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return stateNames[s].name
}

func (s State) Desc() string {
	if !s.IsValid() {
		return types.IllegalDesc
	}
	return stateNames[s].desc
}

func (s State) String() string { return s.Name() }

// next lists the legal successors of each state. Closed is reachable from
// anywhere since the connection is released on every exit path.
var next = map[State][]State{
	Disconnected:  {Connected},
	Connected:     {SchemaChecked},
	SchemaChecked: {SchemaApplied, SchemaSkipped},
	SchemaApplied: {DataChecked},
	SchemaSkipped: {DataChecked},
	DataChecked:   {DataPopulated, DataSkipped},
	DataPopulated: {Verified},
	DataSkipped:   {Verified},
}

// CanTransition reports whether to may follow s.
func (s State) CanTransition(to State) bool {
	if to == Closed {
		return s != Closed
	}
	for _, n := range next[s] {
		if n == to {
			return true
		}
	}
	return false
}
