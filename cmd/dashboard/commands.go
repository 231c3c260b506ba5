package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rescueboard/internal/dashboard"
)

type globalOptions struct {
	server   string
	token    string
	email    string
	password string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "dashboard",
		Short:        "Admin console for the food rescue board",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("RESCUE_API_URL", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("RESCUE_TOKEN"), "bearer token from a previous login")
	root.PersistentFlags().StringVar(&opts.email, "email", os.Getenv("RESCUE_EMAIL"), "admin email, used when no token is given")
	root.PersistentFlags().StringVar(&opts.password, "password", os.Getenv("RESCUE_PASSWORD"), "admin password, used when no token is given")

	root.AddCommand(newLoginCmd(opts), newLogoutCmd(opts), newWatchCmd(opts), newDeleteCmd(opts))
	return root
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token for --token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := dashboard.NewClient(opts.server, nil)
			sess, err := client.Login(cmd.Context(), opts.email, opts.password)
			if err != nil {
				return err
			}
			if !sess.User.IsAdmin() {
				_ = client.Logout(cmd.Context(), sess)
				return errors.New("this account is not an admin")
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Token)
			return nil
		},
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token given with --token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.token == "" {
				return errors.New("--token is required")
			}
			client := dashboard.NewClient(opts.server, nil)
			return client.Logout(cmd.Context(), &dashboard.Session{Token: opts.token})
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		tab    string
		query  string
		top    int
		claims int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live stats and listings, refreshed every 5 seconds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := dashboard.NewClient(opts.server, nil)
			sess, cleanup, err := openSession(ctx, client, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			view := viewOptions{Tab: dashboard.Tab(tab), Query: query, Top: top, Claims: claims}
			poller := dashboard.NewPoller(client, sess, dashboard.DefaultPollInterval)
			poller.Run(ctx, func(s dashboard.Snapshot) {
				clearScreen(out)
				render(out, s, view)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(dashboard.TabAll), "all, available, taken or expired")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search title, location and poster")
	cmd.Flags().IntVar(&top, "top", 5, "number of locations in the histogram")
	cmd.Flags().IntVar(&claims, "claims", 5, "number of recent claims shown")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <food-id>",
		Short: "Delete a listing after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid food id %q", args[0])
			}

			ctx := cmd.Context()
			client := dashboard.NewClient(opts.server, nil)
			sess, cleanup, err := openSession(ctx, client, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete food #%d?", id)) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}

			if err := client.Delete(ctx, sess, uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Food #%d deleted.\n\n", id)

			snap := dashboard.NewPoller(client, sess, 0).Fetch(ctx)
			render(out, snap, viewOptions{Tab: dashboard.TabAll, Top: 5, Claims: 5})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// openSession uses --token when given, otherwise logs in and logs out again on cleanup.
func openSession(ctx context.Context, client *dashboard.Client, opts *globalOptions) (*dashboard.Session, func(), error) {
	if opts.token != "" {
		sess := &dashboard.Session{Token: opts.token}
		user, err := client.Me(ctx, sess)
		if err != nil {
			return nil, nil, err
		}
		sess.User = user
		return sess, func() {}, nil
	}

	if opts.email == "" || opts.password == "" {
		return nil, nil, errors.New("give --token, or --email and --password")
	}
	sess, err := client.Login(ctx, opts.email, opts.password)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = client.Logout(context.Background(), sess) }
	return sess, cleanup, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
