// Package shell drives the console core from a line-oriented terminal
// session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"console/internal/client"
	"console/internal/directory"
	"console/internal/gate"
	"console/internal/permission"
	"console/internal/syncengine"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModuleRegistry is the part of the module registry the shell drives.
type ModuleRegistry interface {
	Load(ctx context.Context) error
	Loaded() bool
	Modules() []client.Module
}

// RoleDirectory is the part of the role directory the shell drives.
type RoleDirectory interface {
	Refresh(ctx context.Context) ([]client.Role, error)
	Roles() []client.Role
	Lookup(ref string) (client.Role, bool)
	Selected() (client.Role, bool)
	Select(ctx context.Context, ref string) (*client.Role, error)
	Create(ctx context.Context, name string) (client.Role, bool, error)
	Rename(ctx context.Context, id, name string) (client.Role, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// MatrixEngine is the part of the sync engine the shell drives.
type MatrixEngine interface {
	Status() (syncengine.Status, *client.Role)
	Matrix() (permission.Matrix, bool)
	CellState(module string, kind permission.Kind) syncengine.CellState
	Dirty() bool
	Toggle(ctx context.Context, module string, kind permission.Kind) (syncengine.Outcome, error)
	Stage(module string, kind permission.Kind) (bool, error)
	BulkSave(ctx context.Context) (bool, error)
}

var errQuit = errors.New("quit")

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, args []string) error
}

type Shell struct {
	in       *bufio.Reader
	out      io.Writer
	modules  ModuleRegistry
	roles    RoleDirectory
	engine   MatrixEngine
	notify   gate.Notifier
	log      *zap.Logger
	commands map[string]command
	order    []string
}

// New builds a shell reading commands from in. in must be the same reader the
// confirmation gate reads from.
func New(in *bufio.Reader, out io.Writer, modules ModuleRegistry, roles RoleDirectory, engine MatrixEngine, n gate.Notifier, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shell{
		in:      in,
		out:     out,
		modules: modules,
		roles:   roles,
		engine:  engine,
		notify:  n,
		log:     log,
	}
	s.register()
	return s
}

func (s *Shell) register() {
	s.commands = map[string]command{}
	add := func(name, usage, summary string, run func(ctx context.Context, args []string) error) {
		s.commands[name] = command{usage: usage, summary: summary, run: run}
		s.order = append(s.order, name)
	}
	add("roles", "roles", "refresh and list roles", s.cmdRoles)
	add("modules", "modules", "list modules", s.cmdModules)
	add("select", "select <role|none>", "select a role by id or name", s.cmdSelect)
	add("show", "show", "show the permission matrix of the selected role", s.cmdShow)
	add("toggle", "toggle <module> <kind>", "flip one permission and save it", s.cmdToggle)
	add("stage", "stage <module> <kind>", "flip one permission locally", s.cmdStage)
	add("save", "save", "save the whole matrix of the selected role", s.cmdSave)
	add("create", "create <name>", "create a role", s.cmdCreate)
	add("rename", "rename <role> <name>", "rename a role", s.cmdRename)
	add("delete", "delete <role>", "delete a role", s.cmdDelete)
	add("help", "help", "show this help", s.cmdHelp)
	add("quit", "quit", "leave the console", func(context.Context, []string) error { return errQuit })
	s.commands["exit"] = s.commands["quit"]
}

// Bootstrap loads the module registry and the role list concurrently. Either
// failure is reported and the session continues; toggles fail their module id
// check until the modules load.
func (s *Shell) Bootstrap(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.modules.Load(ctx); err != nil {
			s.notify.Error("load modules", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.roles.Refresh(ctx); err != nil {
			s.notify.Error("load roles", err)
			return err
		}
		return nil
	})
	return g.Wait()
}

// Run reads and executes commands until quit, end of input, or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, headerStyle.Render("Role permission console")+" "+faintStyle.Render("(type help)"))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, s.prompt())

		line, err := s.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading command: %w", err)
		}
		if cerr := s.Exec(ctx, line); errors.Is(cerr, errQuit) {
			return nil
		}
		if err == io.EOF {
			fmt.Fprintln(s.out)
			return nil
		}
	}
}

func (s *Shell) prompt() string {
	if role, ok := s.roles.Selected(); ok {
		marker := ""
		if s.engine.Dirty() {
			marker = "*"
		}
		return promptStyle.Render(role.Name+marker) + "> "
	}
	return promptStyle.Render("console") + "> "
}

// Exec runs one command line. Errors are reported to the operator; the
// returned error is only for callers that need it.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	cmd, ok := s.commands[name]
	if !ok {
		s.notify.Warn(fmt.Sprintf("unknown command %q, type help", fields[0]))
		return fmt.Errorf("unknown command %q", fields[0])
	}
	err := cmd.run(ctx, fields[1:])
	if err != nil && !errors.Is(err, errQuit) {
		s.report(name, err)
	}
	return err
}

// report shows errors the core packages have not already shown.
func (s *Shell) report(op string, err error) {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		s.notify.Warn("usage: " + string(usage))
	case errors.Is(err, syncengine.ErrCellBusy),
		errors.Is(err, directory.ErrUnknownRole),
		errors.Is(err, errUnknownModule),
		errors.Is(err, errUnknownKind),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		s.notify.Error(op, err)
	default:
		s.log.Debug("command failed", zap.String("command", op), zap.Error(err))
	}
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func (s *Shell) usage(name string) error {
	return usageError(s.commands[name].usage)
}

var (
	errUnknownModule = errors.New("unknown module")
	errUnknownKind   = errors.New("unknown permission kind")
)

func (s *Shell) cmdRoles(ctx context.Context, _ []string) error {
	roles, err := s.roles.Refresh(ctx)
	if err != nil {
		s.notify.Error("load roles", err)
		return err
	}
	fmt.Fprintln(s.out, renderRoles(roles, s.selectedID()))
	return nil
}

func (s *Shell) selectedID() string {
	if r, ok := s.roles.Selected(); ok {
		return r.ID
	}
	return ""
}

func (s *Shell) cmdModules(ctx context.Context, _ []string) error {
	if !s.modules.Loaded() {
		if err := s.modules.Load(ctx); err != nil {
			s.notify.Error("load modules", err)
			return err
		}
	}
	fmt.Fprintln(s.out, renderModules(s.modules.Modules()))
	return nil
}

func (s *Shell) cmdSelect(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return s.usage("select")
	}
	ref := strings.Join(args, " ")
	if strings.EqualFold(ref, "none") {
		ref = ""
	}
	if ref != "" {
		if _, ok := s.roles.Lookup(ref); !ok {
			// The role may have been created elsewhere.
			if _, err := s.roles.Refresh(ctx); err != nil {
				s.log.Debug("role refresh before select failed", zap.Error(err))
			}
		}
	}

	role, err := s.roles.Select(ctx, ref)
	if err != nil {
		return err
	}
	if role == nil {
		s.notify.Success("No role selected")
		return nil
	}
	return s.cmdShow(ctx, nil)
}

func (s *Shell) cmdShow(_ context.Context, _ []string) error {
	status, role := s.engine.Status()
	m, ok := s.engine.Matrix()
	if !ok {
		if role == nil {
			s.notify.Warn("Select a role to see its permissions")
			return nil
		}
		s.notify.Warn(fmt.Sprintf("Permissions of %s are %s", role.Name, status))
		return nil
	}
	fmt.Fprintln(s.out, renderMatrix(role.Name, m, s.engine.CellState, s.engine.Dirty()))
	return nil
}

// cell resolves user input to a matrix cell of the selected role. Module
// names match case-insensitively; a module outside the matrix is passed
// through so the engine can reject it.
func (s *Shell) cell(name string, args []string) (string, permission.Kind, error) {
	if len(args) != 2 {
		return "", "", s.usage(name)
	}
	kind, ok := permission.ParseKind(strings.ToLower(args[1]))
	if !ok {
		return "", "", fmt.Errorf("%w %q", errUnknownKind, args[1])
	}
	module := args[0]
	for _, known := range s.moduleNames() {
		if strings.EqualFold(known, module) {
			return known, kind, nil
		}
	}
	return module, kind, nil
}

// moduleNames lists matrix rows, then canonical and registry modules.
func (s *Shell) moduleNames() []string {
	var names []string
	if m, ok := s.engine.Matrix(); ok {
		names = append(names, m.Modules()...)
	}
	names = append(names, permission.CanonicalModules...)
	for _, m := range s.modules.Modules() {
		names = append(names, m.Name)
	}
	return names
}

func (s *Shell) cmdToggle(ctx context.Context, args []string) error {
	module, kind, err := s.cell("toggle", args)
	if err != nil {
		return err
	}
	out, err := s.engine.Toggle(ctx, module, kind)
	if err != nil {
		return err
	}
	if out.Declined {
		s.notify.Warn("Cancelled, nothing changed")
	}
	return nil
}

func (s *Shell) cmdStage(_ context.Context, args []string) error {
	module, kind, err := s.cell("stage", args)
	if err != nil {
		return err
	}
	if !s.knownModule(module) {
		return fmt.Errorf("%w %q", errUnknownModule, module)
	}
	granted, err := s.engine.Stage(module, kind)
	if err != nil {
		return err
	}
	state := "revoked"
	if granted {
		state = "granted"
	}
	s.notify.Success(fmt.Sprintf("%s %s locally, run save to apply", permission.Code(module, kind), state))
	return nil
}

func (s *Shell) knownModule(module string) bool {
	for _, known := range s.moduleNames() {
		if known == module {
			return true
		}
	}
	return false
}

func (s *Shell) cmdSave(ctx context.Context, _ []string) error {
	saved, err := s.engine.BulkSave(ctx)
	if err != nil {
		return err
	}
	if !saved {
		s.notify.Warn("Cancelled, nothing saved")
	}
	return nil
}

func (s *Shell) cmdCreate(ctx context.Context, args []string) error {
	_, created, err := s.roles.Create(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if !created {
		s.notify.Warn("Cancelled, nothing created")
	}
	return nil
}

func (s *Shell) cmdRename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return s.usage("rename")
	}
	role, ok := s.roles.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", directory.ErrUnknownRole, args[0])
	}
	_, renamed, err := s.roles.Rename(ctx, role.ID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if !renamed {
		s.notify.Warn("Cancelled, nothing changed")
	}
	return nil
}

func (s *Shell) cmdDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return s.usage("delete")
	}
	ref := strings.Join(args, " ")
	role, ok := s.roles.Lookup(ref)
	if !ok {
		return fmt.Errorf("%w: %s", directory.ErrUnknownRole, ref)
	}
	deleted, err := s.roles.Delete(ctx, role.ID)
	if err != nil {
		return err
	}
	if !deleted {
		s.notify.Warn("Cancelled, nothing deleted")
	}
	return nil
}

func (s *Shell) cmdHelp(_ context.Context, _ []string) error {
	fmt.Fprintln(s.out, renderHelp(s.order, s.commands))
	return nil
}
