// Package shell is an interactive front end for a session store. Each running
// shell behaves like one browser tab on the shared storage partition.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"consultancy_auth/internal/session"
)

// App runs commands against a session store
type App struct {
	store *session.Store
	out   io.Writer
}

// New returns an App writing to out
func New(store *session.Store, out io.Writer) *App {
	return &App{store: store, out: out}
}

// Notify prints a line when another tab changed key. Wire it as the store's
// OnChange callback.
func (a *App) Notify(key string) {
	if key == "" {
		a.println("! storage cleared in another tab")
		return
	}
	a.println("! " + key + " changed in another tab")
}

func (a *App) println(s string) {
	_, _ = fmt.Fprintln(a.out, s)
}

func (a *App) status() string {
	u := a.store.User()
	if u == nil {
		return "guest@" + a.store.Branch()
	}
	name := u.Username
	if name == "" {
		name = u.Email
	}
	return name + "@" + a.store.Branch()
}

// Run reads commands from in until EOF, "exit" or "quit"
func (a *App) Run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprintf(a.out, "%s > ", a.status())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			a.println("Bye!")
			return
		}
		if err := a.Exec(ctx, parts[0], parts[1:]); err != nil {
			a.println("error: " + err.Error())
		}
	}
}

// Exec runs a single command
func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.store.IsAuthenticated() {
			a.println("Available commands: whoami, update, branch, users, refresh, logout, exit")
		} else {
			a.println("Available commands: login, register, branch, users, refresh, exit")
		}
		return nil
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email|username> <password>")
		}
		u, err := a.store.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		a.println(fmt.Sprintf("Logged in as %s (%s)", u.Email, u.Role))
		return nil
	case "register":
		return a.register(ctx, args)
	case "logout":
		if err := a.store.Logout(ctx); err != nil {
			return err
		}
		a.println("Logged out")
		return nil
	case "whoami":
		u := a.store.User()
		if u == nil {
			return session.ErrNotLoggedIn
		}
		a.println(fmt.Sprintf("%s <%s> role=%s phone=%s id=%s", u.FullName, u.Email, u.Role, u.Phone, u.ID))
		return nil
	case "update":
		return a.update(ctx, args)
	case "branch":
		if len(args) == 0 {
			a.println(a.store.Branch())
			return nil
		}
		return a.store.SetBranch(ctx, args[0])
	case "users":
		for _, u := range a.store.RegisteredUsers() {
			a.println(fmt.Sprintf("%-12s %-24s %s", u.Username, u.Email, u.Role))
		}
		return nil
	case "refresh":
		return a.store.Refresh(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// register <username> <email> <password> [role] [full name...]
func (a *App) register(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: register <username> <email> <password> [role] [full name]")
	}
	req := session.RegisterRequest{Username: args[0], Email: args[1], Password: args[2], Role: "student"}
	if len(args) > 3 {
		req.Role = args[3]
	}
	req.FullName = req.Username
	if len(args) > 4 {
		req.FullName = strings.Join(args[4:], " ")
	}
	res, err := a.store.Register(ctx, req)
	if err != nil {
		return err
	}
	a.println(res.Message)
	return nil
}

// update field=value ...
func (a *App) update(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: update <field>=<value> ...")
	}
	patch := make(map[string]any, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid field %q", kv)
		}
		patch[k] = v
	}
	u, err := a.store.UpdateUser(ctx, patch)
	if err != nil {
		return err
	}
	a.println("Updated " + u.Email)
	return nil
}
