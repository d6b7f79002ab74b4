package git

import (
	"testing"
)

func TestParseWorktreeList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Worktree
	}{
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name: "main repository only",
			input: `worktree /src/app
HEAD abc1234567890abcdef1234567890abcdef123456
branch refs/heads/main
`,
			expected: []Worktree{
				{Path: "/src/app", Head: "abc1234567890abcdef1234567890abcdef123456", Branch: "main", IsMain: true},
			},
		},
		{
			name: "subdirectory layout with nested branch",
			input: `worktree /src/app
HEAD abc1234567890abcdef1234567890abcdef123456
branch refs/heads/main

worktree /src/app/.worktrees/feature/auth
HEAD def5678901234567890abcdef1234567890abcdef
branch refs/heads/feature/auth

worktree /src/app/.worktrees/scratch
HEAD 9abcdef01234567890abcdef1234567890abcdef0
detached

`,
			expected: []Worktree{
				{Path: "/src/app", Head: "abc1234567890abcdef1234567890abcdef123456", Branch: "main", IsMain: true},
				{Path: "/src/app/.worktrees/feature/auth", Head: "def5678901234567890abcdef1234567890abcdef", Branch: "feature/auth"},
				{Path: "/src/app/.worktrees/scratch", Head: "9abcdef01234567890abcdef1234567890abcdef0", Branch: "detached"},
			},
		},
		{
			name: "locked and prunable entries",
			input: `worktree /src/app
HEAD abc1234567890abcdef1234567890abcdef123456
branch refs/heads/main

worktree /src/app/.worktrees/usb
HEAD def5678901234567890abcdef1234567890abcdef
branch refs/heads/usb
locked on removable disk

worktree /src/app/.worktrees/plain-lock
HEAD def5678901234567890abcdef1234567890abcdef
branch refs/heads/plain-lock
locked

worktree /src/app/.worktrees/gone
HEAD 9abcdef01234567890abcdef1234567890abcdef0
branch refs/heads/gone
prunable gitdir file points to non-existent location
`,
			expected: []Worktree{
				{Path: "/src/app", Head: "abc1234567890abcdef1234567890abcdef123456", Branch: "main", IsMain: true},
				{Path: "/src/app/.worktrees/usb", Head: "def5678901234567890abcdef1234567890abcdef", Branch: "usb", Locked: true, LockReason: "on removable disk"},
				{Path: "/src/app/.worktrees/plain-lock", Head: "def5678901234567890abcdef1234567890abcdef", Branch: "plain-lock", Locked: true},
				{Path: "/src/app/.worktrees/gone", Head: "9abcdef01234567890abcdef1234567890abcdef0", Branch: "gone", Prunable: true},
			},
		},
		{
			name: "bare repository listed first",
			input: `worktree /work/app.git
bare

worktree /work/main
HEAD abc1234567890abcdef1234567890abcdef123456
branch refs/heads/main
`,
			expected: []Worktree{
				{Path: "/work/app.git", IsMain: true, IsBare: true},
				{Path: "/work/main", Head: "abc1234567890abcdef1234567890abcdef123456", Branch: "main"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseWorktreeList(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d worktrees, got %d", len(tt.expected), len(result))
			}

			for i, wt := range result {
				if wt != tt.expected[i] {
					t.Errorf("worktree[%d] = %+v, expected %+v", i, wt, tt.expected[i])
				}
			}
		})
	}
}

func TestWorktreeIsDetached(t *testing.T) {
	if !(Worktree{Branch: "detached"}).IsDetached() {
		t.Error("expected detached worktree")
	}
	if (Worktree{Branch: "main"}).IsDetached() {
		t.Error("expected attached worktree")
	}
}
