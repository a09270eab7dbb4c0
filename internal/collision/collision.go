// Package collision detects destination conflicts and resolves them by policy.
package collision

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bolet777/mediahub/internal/fileops"
)

// maxRenameAttempts bounds the "name (N).ext" search.
const maxRenameAttempts = 10000

// Policy selects how a collision is resolved.
type Policy string

const (
	PolicyRename Policy = "rename"
	PolicySkip   Policy = "skip"
	PolicyError  Policy = "error"
)

// ParsePolicy validates a policy name. The empty string means rename.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyRename, nil
	case PolicyRename, PolicySkip, PolicyError:
		return p, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q (want rename, skip or error)", s)
	}
}

// ErrCollision matches any *Error via errors.Is.
var ErrCollision = errors.New("destination collision")

// Error is the typed failure produced by the error policy.
type Error struct {
	Path        string
	IsDirectory bool
	Claimed     bool // occupied by an earlier item of the same batch
}

func (e *Error) Error() string {
	switch {
	case e.Claimed:
		return fmt.Sprintf("destination %s is already claimed by another item in this import", e.Path)
	case e.IsDirectory:
		return fmt.Sprintf("destination %s exists and is a directory", e.Path)
	default:
		return fmt.Sprintf("destination %s already exists", e.Path)
	}
}

func (e *Error) Is(target error) bool { return target == ErrCollision }

// Claims tracks destinations reserved by earlier items of one batch.
// It is owned by the single goroutine running that batch.
type Claims struct {
	paths map[string]struct{}
}

// NewClaims returns an empty claim set.
func NewClaims() *Claims {
	return &Claims{paths: make(map[string]struct{})}
}

// Claim reserves path.
func (c *Claims) Claim(path string) {
	c.paths[filepath.Clean(path)] = struct{}{}
}

// Has reports whether path was reserved. A nil set has no claims.
func (c *Claims) Has(path string) bool {
	if c == nil {
		return false
	}
	_, ok := c.paths[filepath.Clean(path)]
	return ok
}

// Len returns the number of claimed paths.
func (c *Claims) Len() int {
	if c == nil {
		return 0
	}
	return len(c.paths)
}

// Collision describes what occupies an intended destination.
// The zero value means no collision.
type Collision struct {
	Found        bool
	ExistingPath string
	IsDirectory  bool
	Claimed      bool
}

// Detect probes the batch claims and then the filesystem for dest. A claim
// wins over what is on disk: an earlier item of a real run has already
// written there, while a dry run has not, and both must report the same.
func Detect(ops fileops.FileOps, dest string, claims *Claims) Collision {
	if claims.Has(dest) {
		return Collision{Found: true, ExistingPath: dest, Claimed: true}
	}
	if ops.Exists(dest) {
		c := Collision{Found: true, ExistingPath: dest}
		if info, err := ops.Stat(dest); err == nil && info.IsDir() {
			c.IsDirectory = true
		}
		return c
	}
	return Collision{}
}

// Action is the outcome of Resolve.
type Action int

const (
	Proceed Action = iota
	Skip
	Fail
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case Fail:
		return "error"
	default:
		return "unknown"
	}
}

// Resolution carries the chosen destination (Proceed), a human-readable
// reason (Skip) or a typed error (Fail).
type Resolution struct {
	Action      Action
	Destination string
	Reason      string
	Err         error
}

// Resolve applies policy to c. Without a collision it always proceeds to dest.
// fileName is the sanitized name the rename policy derives new names from.
func Resolve(ops fileops.FileOps, c Collision, policy Policy, dest, fileName string, claims *Claims) Resolution {
	if !c.Found {
		return Resolution{Action: Proceed, Destination: dest}
	}

	switch policy {
	case PolicySkip:
		reason := "destination already exists: " + c.ExistingPath
		if c.Claimed {
			reason = "destination already claimed in this import: " + c.ExistingPath
		}
		return Resolution{Action: Skip, Reason: reason}
	case PolicyError:
		err := &Error{Path: c.ExistingPath, IsDirectory: c.IsDirectory, Claimed: c.Claimed}
		return Resolution{Action: Fail, Reason: err.Error(), Err: err}
	default:
		return rename(ops, dest, fileName, claims)
	}
}

// rename finds the first free "stem (N)ext" beside dest.
func rename(ops fileops.FileOps, dest, fileName string, claims *Claims) Resolution {
	dir := filepath.Dir(dest)
	stem, ext := splitName(fileName)

	for i := 1; i <= maxRenameAttempts; i++ {
		candidate := filepath.Join(dir, stem+" ("+strconv.Itoa(i)+")"+ext)
		if !ops.Exists(candidate) && !claims.Has(candidate) {
			return Resolution{Action: Proceed, Destination: candidate}
		}
	}

	err := &Error{Path: dest}
	return Resolution{
		Action: Fail,
		Reason: fmt.Sprintf("no free name for %s after %d attempts", dest, maxRenameAttempts),
		Err:    err,
	}
}

// splitName splits "photo.jpg" into "photo" and ".jpg". Dotfiles without a
// further extension keep their whole name as the stem.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}
