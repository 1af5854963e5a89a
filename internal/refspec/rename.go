package refspec

import (
	"strings"
)

// RemoteTrackingPrefix returns the ref namespace remote-tracking branches of name live in
func RemoteTrackingPrefix(name string) string {
	return "refs/remotes/" + name + "/"
}

// DefaultFetch returns the fetch refspec git configures for a new remote
func DefaultFetch(name string) string {
	return "+refs/heads/*:" + RemoteTrackingPrefix(name) + "*"
}

// RewriteForRename rewrites a fetch refspec of remote oldName so it targets
// newName. Only a destination starting with refs/remotes/<oldName>/ is
// rewritten; any other spec is reported as not migrated and returned as is.
func RewriteForRename(spec, oldName, newName string) (string, bool) {
	sep := strings.Index(spec, separator)
	if sep < 0 {
		return spec, false
	}

	src, dst := spec[:sep], spec[sep+1:]
	oldPrefix := RemoteTrackingPrefix(oldName)
	if !strings.HasPrefix(dst, oldPrefix) {
		return spec, false
	}

	return src + separator + RemoteTrackingPrefix(newName) + strings.TrimPrefix(dst, oldPrefix), true
}

// MigrateForRename rewrites every fetch refspec for a rename and returns the
// new list plus the specs that had to be kept verbatim
func MigrateForRename(specs []string, oldName, newName string) (migrated, problems []string) {
	migrated = make([]string, 0, len(specs))
	problems = []string{}
	for _, s := range specs {
		rewritten, ok := RewriteForRename(s, oldName, newName)
		if !ok {
			problems = append(problems, s)
		}
		migrated = append(migrated, rewritten)
	}
	return migrated, problems
}
