// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default Chain. Each command gets its own child span of the
// chain span; after a command runs, whatever it left in CtxOut becomes CtxIn
// for the next command. The last value piped is left in CtxOut when the chain
// finishes, so a nested chain behaves like a single command.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable only needs a Go context; each command checks its own input.
func (c *BaseChain) IsExecutable(ctx Context) bool {
	return ctx != nil && ctx.GetContext() != nil
}

func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()
	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer func() {
		chCtx.SetContext(parentCtx)
		chainSpan.End()
	}()
	chCtx.SetContext(outerCtx)

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}

		commandCtx, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		if !command.IsExecutable(chCtx) {
			commandSpan.SetStatus(codes.Unset, "skipped: input not available")
			commandSpan.End()
			c.pipe(chCtx)
			continue
		}

		errorsBefore := len(chCtx.GetErrors())
		chCtx.SetContext(commandCtx)
		command.Execute(chCtx)
		chCtx.SetContext(outerCtx)

		if len(chCtx.GetErrors()) > errorsBefore {
			commandSpan.SetStatus(codes.Error, "command recorded an error")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed")
		}
		commandSpan.End()
		c.pipe(chCtx)
	}
	if out := chCtx.Get(CtxIn); out != nil {
		chCtx.Remove(CtxIn)
		chCtx.Add(CtxOut, out)
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain finished with errors")
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(outerCtx, 1)
		}
	} else {
		chainSpan.SetStatus(codes.Ok, "chain completed")
		if c.SuccessCounter != nil {
			c.SuccessCounter.Add(outerCtx, 1)
		}
	}
}

// pipe moves CtxOut to CtxIn. An empty CtxOut clears CtxIn so a command is
// never fed a stale input.
func (c *BaseChain) pipe(chCtx Context) {
	out := chCtx.Get(CtxOut)
	chCtx.Remove(CtxIn)
	if out != nil {
		chCtx.Add(CtxIn, out)
	}
	chCtx.Remove(CtxOut)
}
