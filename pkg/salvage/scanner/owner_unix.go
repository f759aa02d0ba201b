//go:build unix

package scanner

import (
	"os"
	"os/user"
	"strconv"
	"sync"
	"syscall"
)

// Resolved names keyed by numeric id, shared across scans.
var (
	userNames  sync.Map
	groupNames sync.Map
)

// ownership returns the owner and group names for a file.
// Falls back to UID/GID strings if names cannot be resolved.
func ownership(info os.FileInfo) (owner, group string) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}

	owner = resolve(&userNames, strconv.FormatUint(uint64(stat.Uid), 10), lookupUser)
	group = resolve(&groupNames, strconv.FormatUint(uint64(stat.Gid), 10), lookupGroup)
	return owner, group
}

func lookupUser(uid string) (string, error) {
	u, err := user.LookupId(uid)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func lookupGroup(gid string) (string, error) {
	g, err := user.LookupGroupId(gid)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

func resolve(names *sync.Map, id string, lookup func(string) (string, error)) string {
	if name, ok := names.Load(id); ok {
		return name.(string)
	}
	name, err := lookup(id)
	if err != nil {
		name = id
	}
	names.Store(id, name)
	return name
}
