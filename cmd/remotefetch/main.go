package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	gogittransport "github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quantmind-br/remotefetch/internal/config"
	"github.com/quantmind-br/remotefetch/internal/repository"
	"github.com/quantmind-br/remotefetch/internal/transport"
	"github.com/quantmind-br/remotefetch/internal/utils"
	"github.com/quantmind-br/remotefetch/pkg/version"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := newRootCmd(newCLI()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli holds the state shared by every command of one invocation
type cli struct {
	cfgFile  string
	repoPath string
	verbose  bool

	cfg *config.Config
	v   *viper.Viper
	log *utils.Logger

	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	// client overrides the protocol client picked from each URL
	client gogittransport.Transport
}

func newCLI() *cli {
	return &cli{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "remotefetch",
		Short: "Fetch from git remotes and manage remote configuration",
		Long: `remotefetch connects to a git remote, negotiates credentials, downloads
the objects selected by the remote's refspecs and updates local
remote-tracking references.`,
		Version:           version.Short(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.setup(cmd) },
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ~/.remotefetch/config.yaml)")
	root.PersistentFlags().StringVarP(&c.repoPath, "repo", "C", ".", "Path to the local repository")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(newFetchCmd(c))
	root.AddCommand(newLsRemoteCmd(c))
	root.AddCommand(newRemoteCmd(c))
	root.AddCommand(newConfigCmd(c))
	root.AddCommand(newVersionCmd(c))
	return root
}

// setup loads configuration and builds the logger before any command runs
func (c *cli) setup(cmd *cobra.Command) error {
	var err error
	if c.cfgFile != "" {
		c.cfg, c.v, err = config.LoadFile(c.cfgFile)
	} else {
		c.cfg, c.v, err = config.LoadFile(config.ConfigFilePath())
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := c.cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	c.log = utils.NewLogger(utils.LoggerOptions{
		Level:   level,
		Format:  c.cfg.Logging.Format,
		Output:  c.stderr,
		Verbose: c.verbose,
	})
	return nil
}

func (c *cli) openRepo() (*repository.Repository, error) {
	return repository.Open(c.repoPath, repository.Options{Logger: c.log})
}

func (c *cli) transportOptions() transport.Options {
	t := c.cfg.Transport
	retries := t.ConnectRetries
	if retries == 0 {
		retries = -1
	}
	return transport.Options{
		Client:        c.client,
		MaxAuthRounds: t.MaxAuthRounds,
		Retrier: transport.NewRetrier(transport.RetrierOptions{
			MaxRetries:      retries,
			InitialInterval: t.RetryInitialInterval,
			MaxInterval:     t.RetryMaxInterval,
		}),
		Logger: c.log,
	}
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.stdout, version.Full())
		},
	}
}
