// wireline is the CLI client for wirelined.
//
// Usage:
//
//	wireline project list              – list known projects
//	wireline project forget <name>     – drop a project's session file
//
// wireline connects to the daemon over its Unix domain socket; it does
// not start the daemon itself.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ianremillard/wireline/internal/registry"
	"github.com/ianremillard/wireline/internal/transport"
	"github.com/ianremillard/wireline/pkg/client"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "project":
		cmdProject()
	default:
		fmt.Fprintf(os.Stderr, "wireline: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wireline project <list|forget>")
}

func cmdProject() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: wireline project <list|forget>")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "list":
		cmdProjectList()
	case "forget":
		cmdProjectForget()
	default:
		fmt.Fprintf(os.Stderr, "wireline: unknown project subcommand %q\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdProjectList() {
	cl, cancel := dial()
	defer cancel()

	ctx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	projects, err := client.ListProjects(ctx, cl.Requester())
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireline: %v\n", err)
		os.Exit(1)
	}
	if len(projects) == 0 {
		fmt.Println("no projects registered")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "PATH", "EXISTS"})
	for _, p := range projects {
		table.Append([]string{p.Name, p.Path, existsMark(p.Exists)})
	}
	table.Render()
}

func existsMark(exists bool) string {
	if exists {
		return "yes"
	}
	return "no"
}

// cmdProjectForget removes a project's backing session file. This acts
// directly on the session directory rather than through the daemon
// connection: SessionFile is deliberately not wire-visible (it's a
// registry-only field — see internal/registry.Project.ToWire), so
// locating and removing it is CLI-local filesystem work, the same way
// the surrounding environment is a collaborator rather than part of the
// wire protocol itself.
func cmdProjectForget() {
	if len(os.Args) < 4 || os.Args[3] == "" {
		fmt.Fprintln(os.Stderr, "usage: wireline project forget <name>")
		os.Exit(1)
	}
	name := os.Args[3]

	reg := registry.New(sessionDir(), registrationFile())
	if err := reg.Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "wireline: %v\n", err)
		os.Exit(1)
	}
	if _, ok := reg.Lookup(name); !ok {
		fmt.Fprintf(os.Stderr, "wireline: no such project %q\n", name)
		os.Exit(1)
	}

	if !confirmForget(name) {
		fmt.Println("aborted")
		return
	}

	if err := reg.Forget(name); err != nil {
		fmt.Fprintf(os.Stderr, "wireline: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed %q\n", name)
}

// confirmForget prompts interactively when stdin is a terminal. When
// it isn't (piped input, a script, a CI job), promptui has nothing
// sensible to read from, so forget is refused rather than guessing.
func confirmForget(name string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "wireline: stdin is not a terminal, refusing to forget without confirmation")
		return false
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove project %q", name),
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

func wirelineRoot() string {
	if env := os.Getenv("WIRELINE_ROOT"); env != "" {
		return env
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireline: cannot determine home directory: %v\n", err)
		os.Exit(1)
	}
	return filepath.Join(homeDir, ".wireline")
}

func socketPath() string {
	if env := os.Getenv("WIRELINE_SOCKET"); env != "" {
		return env
	}
	return filepath.Join(wirelineRoot(), "wirelined.sock")
}

func sessionDir() string {
	return filepath.Join(wirelineRoot(), "sessions")
}

func registrationFile() string {
	return filepath.Join(wirelineRoot(), "projects.yaml")
}

// dial connects to the daemon and starts the client's event loop on a
// background goroutine, returning a cancel func that stops it.
func dial() (*client.Client, context.CancelFunc) {
	conn, err := net.Dial("unix", socketPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "wireline: connecting to daemon: %v\n", err)
		os.Exit(1)
	}

	tr := transport.NewConn(conn)

	// No exporter configured yet; spans get real trace/span IDs but
	// stay local until an OTLP collector address is wired in.
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	cl := client.New(tr, tr, client.WithTracer(tracerProvider))

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go cl.Run(ctx)
	go func() {
		<-sigCh
		cancel()
		conn.Close()
	}()

	return cl, func() {
		cancel()
		conn.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}
}
