package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fragmede/authpanel/internal/config"
	"github.com/fragmede/authpanel/internal/session"
)

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the stored session and whether the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			return printStatus(cmd.Context(), cmd.OutOrStdout(), rt)
		},
	}
}

func printStatus(ctx context.Context, w io.Writer, rt *runtime) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		probe     session.Outcome
		healthErr error
	)
	call := rt.ctrl.CheckSessionCall()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		probe = call(gctx)
		return nil
	})
	g.Go(func() error {
		healthErr = rt.client.Health(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	rt.ctrl.Apply(probe)

	fmt.Fprintf(w, "server:  %s\n", rt.client.BaseURL())
	if healthErr != nil {
		fmt.Fprintf(w, "health:  unreachable (%v)\n", healthErr)
	} else {
		fmt.Fprintln(w, "health:  ok")
	}

	state := rt.ctrl.State()
	if state.User == nil {
		fmt.Fprintln(w, "session: signed out")
		return nil
	}
	fmt.Fprintf(w, "session: signed in as %s", state.User.Username)
	if state.User.Email != "" {
		fmt.Fprintf(w, " <%s>", state.User.Email)
	}
	fmt.Fprintln(w)
	return nil
}

func logoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session and forget its cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			return logout(cmd.Context(), cmd.OutOrStdout(), rt)
		},
	}
}

func logout(ctx context.Context, w io.Writer, rt *runtime) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt.ctrl.CheckSession(ctx)
	state := rt.ctrl.State()
	if state.User != nil {
		// The controller clears the jar as part of logging out.
		rt.ctrl.Logout(ctx)
		fmt.Fprintf(w, "Logged out %s\n", state.User.Username)
		return nil
	}

	fmt.Fprintln(w, "Not signed in")
	if err := rt.jar.Clear(); err != nil {
		return fmt.Errorf("clearing cookies: %w", err)
	}
	return nil
}
