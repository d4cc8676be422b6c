// Copyright 2018 Google LLC
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

package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/radmedres/clmedview-sub000/uid"
)

type uidCommand struct {
	env    *environment
	random bool
	count  int
}

func (cmd *uidCommand) run(*kingpin.ParseContext) error {
	gen := uid.New
	if cmd.random {
		gen = uid.NewRandom
	}
	for i := 0; i < cmd.count; i++ {
		u, err := gen()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.env.out, u)
	}
	return nil
}
