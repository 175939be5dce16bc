// Package cli is the admin console, grounded on the teacher's
// Cli_server_local (a Unix-socket line protocol dispatched to a single
// command callback) and on CallMap.RecvCommand's l/d/q vocabulary
// (cmd/b2bua_radius/call_map.go), generalized from call controllers to
// Control Sessions and colorized with gookit/color instead of plain text.
package cli

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/sirupsen/logrus"

	"github.com/dialplan-gateway/ctrlsession/internal/registry"
)

// Server is a Unix-socket admin console: one line in, one response out,
// same shape as the teacher's Cli_server_local.
type Server struct {
	reg      *registry.Registry
	listener net.Listener
	log      *logrus.Entry
}

// Listen creates the admin socket at address, removing a stale socket file
// left behind by an unclean shutdown the way NewCli_server_local does.
func Listen(address string, reg *registry.Registry, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if _, err := os.Stat(address); err == nil {
		if err := os.Remove(address); err != nil {
			return nil, fmt.Errorf("remove stale admin socket: %w", err)
		}
	}
	addr, err := net.ResolveUnixAddr("unix", address)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &Server{reg: reg, listener: listener, log: log}, nil
}

func (s *Server) Close() error {
	return s.listener.Close()
}

// Run accepts connections until the listener is closed.
func (s *Server) Run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		reply := s.dispatch(strings.TrimSpace(line))
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

// dispatch implements the "l" (list), "d <call-id>" (drop), "nd <node>"
// (simulate fs_nodedown), "nu <node>" (simulate fs_nodeup), "q" (quit) verbs
// that drove CallMap.RecvCommand, applied to the session registry instead of
// a map of call controllers. nd/nu stand in for the event-socket node-flap
// notices a real media switch connection would relay (§4.6), the same way
// internal/switchadapter/fakeswitch stands in for execute-complete events.
func (s *Server) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return color.FgRed.Render("empty command")
	}

	switch fields[0] {
	case "l":
		ids := s.reg.CallIDs()
		if len(ids) == 0 {
			return color.FgYellow.Render("no active sessions")
		}
		return color.FgGreen.Sprintf("%d active: %s", len(ids), strings.Join(ids, ", "))
	case "d":
		if len(fields) < 2 {
			return color.FgRed.Render("usage: d <call-id>")
		}
		if _, ok := s.reg.Lookup(fields[1]); !ok {
			return color.FgRed.Sprintf("no session for %s", fields[1])
		}
		s.reg.Drop(fields[1])
		return color.FgGreen.Sprintf("dropped %s", fields[1])
	case "nd":
		if len(fields) < 2 {
			return color.FgRed.Render("usage: nd <node>")
		}
		s.reg.BroadcastNodeDown(fields[1])
		return color.FgGreen.Sprintf("node_down broadcast for %s", fields[1])
	case "nu":
		if len(fields) < 2 {
			return color.FgRed.Render("usage: nu <node>")
		}
		s.reg.BroadcastNodeUp(fields[1])
		return color.FgGreen.Sprintf("node_up broadcast for %s", fields[1])
	case "q":
		return color.FgCyan.Render("bye")
	default:
		return color.FgRed.Sprintf("unknown command: %s", fields[0])
	}
}
