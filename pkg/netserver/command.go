/*
 * Copyright 2025 Carver Automation Corporation.
 *
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

package netserver

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carverauto/devicetracker/pkg/logger"
)

const (
	cmdEnable     = "ENABLE"
	cmdRemove     = "REMOVE"
	cmdCapability = "CAPABILITY"
)

var (
	errMalformedCommand = errors.New("malformed command")
	errUnknownCommand   = errors.New("unknown command")
	errUnknownProtocol  = errors.New("unknown protocol")
	errNotEnabled       = errors.New("protocol not enabled")
)

// Command is one parsed client request: "!<seq> <verb> <args...>".
type Command struct {
	Seq  int
	Verb string
	Args []string
}

// ParseCommand splits a client line into its sequence number, verb and arguments.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "!") {
		return Command{}, errMalformedCommand
	}

	parts := strings.Fields(line[1:])
	if len(parts) < 2 {
		return Command{}, errMalformedCommand
	}

	seq, err := strconv.Atoi(parts[0])
	if err != nil {
		return Command{}, errMalformedCommand
	}

	return Command{Seq: seq, Verb: strings.ToUpper(parts[1]), Args: parts[2:]}, nil
}

// HandleCommand runs one client line for a session and queues the
// acknowledgement or error reply. Enabling a protocol replays its current
// state to the session after the acknowledgement.
func (s *Server) HandleCommand(sessionID, line string) error {
	sess, ok := s.Session(sessionID)
	if !ok {
		return ErrUnknownSession
	}

	_, span := logger.Tracer("devicetracker.netserver").Start(context.Background(), "netserver.command")
	defer span.End()

	span.SetAttributes(attribute.String("session.id", sessionID))

	cmd, err := ParseCommand(line)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		sess.enqueue(errorLine(0, err))

		return err
	}

	span.SetAttributes(attribute.String("command.verb", cmd.Verb), attribute.Int("command.seq", cmd.Seq))

	var enable func(string)

	switch cmd.Verb {
	case cmdEnable:
		enable, err = s.enable(sess, cmd.Args)
	case cmdRemove:
		err = s.remove(sess, cmd.Args)
	case cmdCapability:
		err = s.capability(sess, cmd.Args)
	default:
		if fn, ok := s.command(cmd.Verb); ok {
			err = fn(sessionID, cmd.Args)
		} else {
			err = errUnknownCommand
		}
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug().Err(err).Str("session", sessionID).Str("command", line).Msg("Command rejected")
		sess.enqueue(errorLine(cmd.Seq, err))

		return err
	}

	sess.enqueue(frame("ACK", strconv.Itoa(cmd.Seq)+" OK"))

	if enable != nil {
		enable(sessionID)
	}

	return nil
}

// enable subscribes the session. The field list defaults to every field
// and may be given as one comma list or as separate words.
func (s *Server) enable(sess *Session, args []string) (func(string), error) {
	if len(args) == 0 {
		return nil, errMalformedCommand
	}

	p, ok := s.lookup(args[0])
	if !ok {
		return nil, errUnknownProtocol
	}

	list := "*"
	if len(args) > 1 {
		list = strings.Join(args[1:], ",")
	}

	ids, err := p.ParseFields(list)
	if err != nil {
		return nil, err
	}

	sess.subscribe(p.Name, ids)

	return p.Enable, nil
}

func (s *Server) remove(sess *Session, args []string) error {
	if len(args) != 1 {
		return errMalformedCommand
	}

	if _, ok := s.lookup(args[0]); !ok {
		return errUnknownProtocol
	}

	if !sess.unsubscribe(args[0]) {
		return errNotEnabled
	}

	return nil
}

func (s *Server) capability(sess *Session, args []string) error {
	if len(args) != 1 {
		return errMalformedCommand
	}

	p, ok := s.lookup(args[0])
	if !ok {
		return errUnknownProtocol
	}

	sess.enqueue(capabilityLine(strings.ToUpper(p.Name), p))

	return nil
}

func isBuiltinCommand(verb string) bool {
	switch verb {
	case cmdEnable, cmdRemove, cmdCapability:
		return true
	}

	return false
}

func errorLine(seq int, err error) string {
	return frame("ERROR", strconv.Itoa(seq)+" "+err.Error())
}
