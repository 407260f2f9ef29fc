package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dmitrymomot/pushkit/pkg/feed"
	"github.com/dmitrymomot/pushkit/pkg/preferences"
	"github.com/dmitrymomot/pushkit/pkg/push"
	"github.com/dmitrymomot/pushkit/pkg/registry"
	"github.com/dmitrymomot/pushkit/pkg/vapid"
)

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, e *env, out *printer, args []string) error
}

var commands = map[string]command{
	"status":      {"status", "show the subscription state of this device", cmdStatus},
	"subscribe":   {"subscribe [-y] [label]", "enable push on this device", cmdSubscribe},
	"unsubscribe": {"unsubscribe", "disable push on this device", cmdUnsubscribe},
	"reconcile":   {"reconcile", "retry removing stale registrations", cmdReconcile},
	"prefs":       {"prefs [get | set field=value...]", "show or change delivery preferences", cmdPrefs},
	"feed":        {"feed [list [-unread] [-kind K] [-limit N] | read ID | read-all | delete ID]", "browse the notification feed", cmdFeed},
	"test":        {"test", "ask the registry to send a test notification", cmdTest},
}

var commandOrder = []string{"status", "subscribe", "unsubscribe", "reconcile", "prefs", "feed", "test"}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: pushctl [-o text|yaml] [-timeout D] <command> [args]")
	fmt.Fprintln(w)
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(w, "  %-62s %s\n", c.usage, c.summary)
	}
	fmt.Fprintf(w, "  %-62s %s\n", "keygen", "print a new VAPID key pair for registryd")
	fmt.Fprintf(w, "  %-62s %s\n", "version", "print the version")
}

func cmdStatus(ctx context.Context, e *env, out *printer, _ []string) error {
	m := e.manager(nil)
	defer m.Close()
	return out.status(m.CheckStatus(ctx))
}

func cmdSubscribe(ctx context.Context, e *env, out *printer, args []string) error {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	yes := fs.Bool("y", false, "grant permission without asking")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	label := strings.Join(fs.Args(), " ")
	if label == "" {
		label = e.push.DeviceLabel
	}
	if label == "" {
		label, _ = os.Hostname()
	}

	var prompt func(context.Context) push.Permission
	if *yes {
		prompt = func(context.Context) push.Permission { return push.PermissionGranted }
	}
	m := e.manager(prompt)
	defer m.Close()

	st, err := m.Subscribe(ctx, label)
	if err != nil {
		return err
	}
	return out.status(st)
}

func cmdUnsubscribe(ctx context.Context, e *env, out *printer, _ []string) error {
	m := e.manager(nil)
	defer m.Close()

	st, err := m.Unsubscribe(ctx)
	if perr := out.status(st); perr != nil {
		return perr
	}
	return err
}

func cmdReconcile(ctx context.Context, e *env, out *printer, _ []string) error {
	m := e.manager(nil)
	defer m.Close()

	err := m.Reconcile(ctx)
	if perr := out.status(m.Status()); perr != nil {
		return perr
	}
	return err
}

func cmdPrefs(ctx context.Context, e *env, out *printer, args []string) error {
	sub := "get"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	s := e.preferences()
	defer s.Close()

	if _, err := s.Load(ctx); err != nil {
		return err
	}

	switch sub {
	case "get":
		return out.preferences(s.Get())
	case "set":
		if len(args) == 0 {
			return fmt.Errorf("%w: prefs set needs at least one field=value", errUsage)
		}
		var patch preferences.Patch
		for _, arg := range args {
			field, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("%w: expected field=value, got %q", errUsage, arg)
			}
			if err := patch.Set(registry.Field(field), value); err != nil {
				return err
			}
		}
		prefs, err := s.Set(ctx, patch)
		if err != nil {
			return err
		}
		return out.preferences(prefs)
	}
	return fmt.Errorf("%w: unknown prefs command %q", errUsage, sub)
}

func cmdFeed(ctx context.Context, e *env, out *printer, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	f := e.feed()
	defer f.Close()

	switch sub {
	case "list":
		fs := flag.NewFlagSet("feed list", flag.ContinueOnError)
		fs.SetOutput(e.stderr)
		unread := fs.Bool("unread", false, "only unread notifications")
		kind := fs.String("kind", "", "only notifications of this kind")
		limit := fs.Int("limit", 0, "page size")
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		if err := f.Refresh(ctx, *limit); err != nil {
			return err
		}

		filter := feed.All
		switch {
		case *kind != "":
			k := registry.Kind(*kind)
			if !k.Valid() {
				return fmt.Errorf("%w: unknown kind %q", errUsage, *kind)
			}
			filter = feed.OfKind(k)
			if *unread {
				filter = func(n registry.Notification) bool { return !n.Read && n.Kind == k }
			}
		case *unread:
			filter = feed.Unread
		}
		return out.notifications(f.List(filter), f.UnreadCount())

	case "read", "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: feed %s needs a notification ID", errUsage, sub)
		}
		if sub == "read" {
			if err := f.MarkRead(ctx, args[0]); err != nil {
				return err
			}
			return out.result("marked read", args[0])
		}
		if err := f.Delete(ctx, args[0]); err != nil {
			return err
		}
		return out.result("deleted", args[0])

	case "read-all":
		if err := f.MarkAllRead(ctx); err != nil {
			return err
		}
		return out.result("all notifications marked read", "")
	}
	return fmt.Errorf("%w: unknown feed command %q", errUsage, sub)
}

func cmdTest(ctx context.Context, e *env, out *printer, _ []string) error {
	if err := e.registry.SendTest(ctx); err != nil {
		return err
	}
	return out.result("test notification sent", "")
}

// keygen needs no registry, so it runs before setup.
func keygen(w io.Writer, out *printer) error {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	raw, err := vapid.DecodeServerKey(public)
	if err != nil {
		return err
	}
	if err := vapid.ValidatePublicKey(raw); err != nil {
		return err
	}

	if out.yaml {
		return out.encode(map[string]string{
			"PUSHKIT_VAPID_PUBLIC_KEY":  vapid.EncodeServerKey(raw),
			"PUSHKIT_VAPID_PRIVATE_KEY": private,
		})
	}
	fmt.Fprintf(w, "PUSHKIT_VAPID_PUBLIC_KEY=%s\n", vapid.EncodeServerKey(raw))
	fmt.Fprintf(w, "PUSHKIT_VAPID_PRIVATE_KEY=%s\n", private)
	return nil
}
