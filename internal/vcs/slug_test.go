package vcs

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"simple", "Add login page", 0, "add-login-page"},
		{"punctuation", "Fix: crash on /review (again)!", 0, "fix-crash-on-review-again"},
		{"diacritics", "Crème brûlée für Ärzte", 0, "creme-brulee-fur-arzte"},
		{"leading and trailing", "  --hello--  ", 0, "hello"},
		{"truncated", "abcdef ghijkl", 7, "abcdef"},
		{"empty", "!!!", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in, tt.max); got != tt.want {
				t.Errorf("Slugify(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		class string
		title string
		want  string
	}{
		{"/feature", "Add dark mode", "feat-issue-42-adw-abc12345-add-dark-mode"},
		{"/bug", "Login fails", "bug-issue-42-adw-abc12345-login-fails"},
		{"/chore", "", "chore-issue-42-adw-abc12345"},
		{"", "Misc", "chore-issue-42-adw-abc12345-misc"},
		{"/patch", "Fix typo", "patch-issue-42-adw-abc12345-fix-typo"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := BranchName(tt.class, "42", "abc12345", tt.title)
			if got != tt.want {
				t.Errorf("BranchName() = %q, want %q", got, tt.want)
			}
			if !ValidBranchName(got) {
				t.Errorf("ValidBranchName(%q) = false", got)
			}
		})
	}
}

func TestValidBranchName(t *testing.T) {
	tests := map[string]bool{
		"feat-issue-1-adw-x": true,
		"feature/login":      true,
		"":                   false,
		"-rf":                false,
		"has space":          false,
		"a..b":               false,
		"ends.lock":          false,
		"colon:name":         false,
		"trailing/":          false,
	}

	for name, want := range tests {
		if got := ValidBranchName(name); got != want {
			t.Errorf("ValidBranchName(%q) = %v, want %v", name, got, want)
		}
	}
}
