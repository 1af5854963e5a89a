package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/remote"
)

func newRemoteCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage configured remotes",
	}
	cmd.AddCommand(
		newRemoteAddCmd(c),
		newRemoteListCmd(c),
		newRemoteShowCmd(c),
		newRemoteRenameCmd(c),
		newRemoteRemoveCmd(c),
		newRemoteSetURLCmd(c),
	)
	return cmd
}

func (c *cli) remotes() (*remote.Store, error) {
	repo, err := c.openRepo()
	if err != nil {
		return nil, err
	}
	return repo.Remotes(), nil
}

// lookup loads a configured remote, failing with domain.ErrNotFound
func (c *cli) lookup(store *remote.Store, name string) (*remote.Remote, error) {
	r, found, err := store.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("remote %s: %w", name, domain.ErrNotFound)
	}
	return r, nil
}

func newRemoteAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			r, err := store.Add(args[0], args[1])
			if err != nil {
				return err
			}

			tags, _ := cmd.Flags().GetBool("tags")
			noTags, _ := cmd.Flags().GetBool("no-tags")
			if !tags && !noTags {
				return nil
			}
			if tags {
				r.SetAutotag(domain.AutotagAll)
			} else {
				r.SetAutotag(domain.AutotagNone)
			}
			return store.Save(r)
		},
	}
	cmd.Flags().Bool("tags", false, "Always fetch all tags from this remote")
	cmd.Flags().Bool("no-tags", false, "Never fetch tags from this remote")
	cmd.MarkFlagsMutuallyExclusive("tags", "no-tags")
	return cmd
}

func newRemoteListCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured remotes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("long")
			for r, err := range store.All() {
				if err != nil {
					return err
				}
				if !verbose {
					fmt.Fprintln(c.stdout, r.Name())
					continue
				}
				push := r.PushURL()
				if push == "" {
					push = r.URL()
				}
				fmt.Fprintf(c.stdout, "%s\t%s (fetch)\n", r.Name(), r.URL())
				fmt.Fprintf(c.stdout, "%s\t%s (push)\n", r.Name(), push)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("long", "l", false, "Show URLs")
	return cmd
}

func newRemoteShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a remote's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			r, err := c.lookup(store, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(c.stdout, "* remote %s\n", r.Name())
			fmt.Fprintf(c.stdout, "  Fetch URL: %s\n", r.URL())
			if r.PushURL() != "" {
				fmt.Fprintf(c.stdout, "  Push  URL: %s\n", r.PushURL())
			}
			fmt.Fprintf(c.stdout, "  Tags: %s\n", r.Autotag())
			for _, spec := range r.FetchRefspecs() {
				fmt.Fprintf(c.stdout, "  Fetch refspec: %s\n", spec)
			}
			for _, spec := range r.PushRefspecs() {
				fmt.Fprintf(c.stdout, "  Push refspec: %s\n", spec)
			}
			return nil
		},
	}
}

func newRemoteRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a remote and move its remote-tracking refs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			r, err := c.lookup(store, args[0])
			if err != nil {
				return err
			}
			problems, err := store.Rename(r, args[1])
			if err != nil {
				return err
			}
			for _, spec := range problems {
				fmt.Fprintf(c.stderr, "warning: not updating non-default fetch refspec\n\t%s\n", spec)
			}
			return nil
		},
	}
}

func newRemoteRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a remote and its remote-tracking refs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			return store.Remove(args[0])
		},
	}
}

func newRemoteSetURLCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-url <name> <url>",
		Short: "Change a remote's URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.remotes()
			if err != nil {
				return err
			}
			r, err := c.lookup(store, args[0])
			if err != nil {
				return err
			}

			if push, _ := cmd.Flags().GetBool("push"); push {
				err = r.SetPushURL(args[1])
			} else {
				err = r.SetURL(args[1])
			}
			if err != nil {
				return err
			}
			return store.Save(r)
		},
	}
	cmd.Flags().Bool("push", false, "Set the push URL instead")
	return cmd
}
