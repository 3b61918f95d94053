// internal/gitinfo/gitinfo.go
package gitinfo

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
)

// CurrentBranch resolves the branch checked out in the workspace so records
// can be stamped with it. Detached HEAD reports an error; callers treat any
// failure as "no branch".
func CurrentBranch(workspace string) (string, error) {
	repo, err := git.PlainOpenWithOptions(workspace, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached")
	}
	return head.Name().Short(), nil
}
