package git

import (
	"github.com/go-git/go-git/v5"
)

// Client defines the interface for opening and creating repositories
type Client interface {
	PlainOpenWithOptions(path string, o *git.PlainOpenOptions) (*git.Repository, error)
	PlainInit(path string, isBare bool) (*git.Repository, error)
}
