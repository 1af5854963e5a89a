package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/spf13/cobra"

	"github.com/quantmind-br/remotefetch/internal/credentials"
	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/fetch"
	"github.com/quantmind-br/remotefetch/internal/remote"
	"github.com/quantmind-br/remotefetch/internal/transport"
	"github.com/quantmind-br/remotefetch/internal/tui"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// errPartial is returned when the fetch completed but some refs were not updated
var errPartial = errors.New("some local refs could not be updated")

const defaultRemote = "origin"

func newFetchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [remote|url] [refspec...]",
		Short: "Download objects and refs from a remote",
		Long: `Fetch connects to a configured remote or a URL, downloads the objects
selected by the given refspecs (or the remote's configured ones) and updates
the matching local references.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd, args)
		},
	}

	cmd.Flags().Bool("prune", false, "Remove remote-tracking refs that no longer exist on the remote")
	cmd.Flags().Bool("tags", false, "Fetch all tags")
	cmd.Flags().Bool("no-tags", false, "Do not fetch tags")
	cmd.Flags().Bool("no-progress", false, "Do not render transfer progress")
	addCredentialFlags(cmd)
	cmd.MarkFlagsMutuallyExclusive("tags", "no-tags")
	return cmd
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("username", "u", "", "Username for authentication")
	cmd.Flags().String("password", "", "Password, or the passphrase of --ssh-key")
	cmd.Flags().String("ssh-key", "", "Private key file for SSH authentication")
}

func (c *cli) runFetch(cmd *cobra.Command, args []string) error {
	name := defaultRemote
	if len(args) > 0 {
		name = args[0]
	}

	repo, err := c.openRepo()
	if err != nil {
		return err
	}
	r, err := repo.ResolveRemote(name)
	if err != nil {
		return err
	}

	_ = c.v.BindPFlag("fetch.prune", cmd.Flags().Lookup("prune"))
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	autotag := domain.AutotagPolicy(c.cfg.Fetch.Autotag)
	if all, _ := cmd.Flags().GetBool("tags"); all {
		autotag = domain.AutotagAll
	}
	if none, _ := cmd.Flags().GetBool("no-tags"); none {
		autotag = domain.AutotagNone
	}

	p := &fetchPrinter{w: c.stdout, url: r.URL()}
	if c.cfg.Fetch.Progress && !noProgress {
		p.bar = utils.NewTransferBar(c.stderr)
	}

	o := fetch.NewOrchestrator(fetch.OrchestratorOptions{
		Storer:  repo.Storer(),
		Factory: transport.Factory(c.transportOptions()),
		Logger:  c.log,
	})
	res, err := o.Fetch(cmd.Context(), r, fetch.Options{
		Credentials: c.credentialStrategy(cmd),
		Progress: func(line string) error {
			_, err := fmt.Fprintf(c.stderr, "remote: %s\n", line)
			return err
		},
		TransferProgress: p.transfer,
		UpdateTips:       p.tip,
		Prune:            c.v.GetBool("fetch.prune"),
		Refspecs:         args[min(1, len(args)):],
		Autotag:          autotag,
	})
	if ferr := p.finish(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}

	if res.Partial != nil {
		for _, f := range res.Partial.Failures {
			fmt.Fprintf(c.stderr, "error: cannot update %s: %v\n", f.RefName, f.Err)
		}
		return fmt.Errorf("%w: %w", errPartial, res.Partial)
	}
	return nil
}

// credentialStrategy prefers explicit flags, then an interactive prompt
// when stdin is a terminal. Without either the fetch is anonymous.
func (c *cli) credentialStrategy(cmd *cobra.Command) credentials.Strategy {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	sshKey, _ := cmd.Flags().GetString("ssh-key")

	switch {
	case sshKey != "":
		key := utils.ExpandPath(sshKey)
		return credentials.Static(credentials.SSHKey{
			Username:       username,
			PublicKeyPath:  key + ".pub",
			PrivateKeyPath: key,
			Passphrase:     password,
		})
	case username != "" || password != "":
		return credentials.Static(credentials.Plaintext{Username: username, Password: password})
	case tui.IsInteractive(c.stdin):
		return tui.NewPrompter(tui.PrompterOptions{Output: c.stderr})
	}
	return nil
}

// fetchPrinter renders fetch callbacks the way git prints them
type fetchPrinter struct {
	w      io.Writer
	url    string
	header bool
	bar    *utils.TransferBar
}

func (p *fetchPrinter) transfer(s domain.TransferStats) error {
	if p.bar == nil || s.TotalObjects == 0 {
		return nil
	}
	return p.bar.Update(int(s.ReceivedObjects), int(s.TotalObjects), int(s.IndexedDeltas), int(s.TotalDeltas), int64(s.ReceivedBytes))
}

func (p *fetchPrinter) tip(u domain.TipUpdate) error {
	if !p.header {
		p.header = true
		if _, err := fmt.Fprintf(p.w, "From %s\n", p.url); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(p.w, describeUpdate(u))
	return err
}

func (p *fetchPrinter) finish() error {
	if p.bar == nil {
		return nil
	}
	return p.bar.Finish()
}

func describeUpdate(u domain.TipUpdate) string {
	name := u.RefName.Short()
	switch {
	case u.IsCreate():
		kind := "ref"
		switch {
		case u.RefName.IsTag():
			kind = "tag"
		case u.RefName.IsRemote(), u.RefName.IsBranch():
			kind = "branch"
		}
		return fmt.Sprintf(" * [new %s] %s", kind, name)
	case u.IsDelete():
		return fmt.Sprintf(" - [deleted] %s", name)
	default:
		return fmt.Sprintf("   %s..%s %s", u.Old.String()[:7], u.New.String()[:7], name)
	}
}

func newLsRemoteCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-remote <remote|url>",
		Short: "List references advertised by a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, storer, err := c.lsTarget(args[0])
			if err != nil {
				return err
			}

			o := fetch.NewOrchestrator(fetch.OrchestratorOptions{
				Storer:  storer,
				Factory: transport.Factory(c.transportOptions()),
				Logger:  c.log,
			})
			for h, err := range o.Ls(cmd.Context(), r, c.credentialStrategy(cmd)) {
				if err != nil {
					return err
				}
				if h.SymrefTarget != "" {
					fmt.Fprintf(c.stdout, "ref: %s\t%s\n", h.SymrefTarget, h.Name)
				}
				fmt.Fprintf(c.stdout, "%s\t%s\n", h.OID, h.Name)
			}
			return nil
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

// lsTarget resolves arg against the local repository. A URL works without one.
func (c *cli) lsTarget(arg string) (*remote.Remote, storage.Storer, error) {
	repo, err := c.openRepo()
	if err != nil {
		if !remote.ValidURL(arg) {
			return nil, nil, err
		}
		r, err := remote.New(arg)
		return r, memory.NewStorage(), err
	}
	r, err := repo.ResolveRemote(arg)
	if err != nil {
		return nil, nil, err
	}
	return r, repo.Storer(), nil
}
