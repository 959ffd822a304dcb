package vcs

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds the descriptive part of generated branch names.
const MaxSlugLength = 40

// Slugify lowercases s, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single hyphen. The result is cut at
// maxLen bytes without leaving a trailing hyphen. maxLen <= 0 means no limit.
func Slugify(s string, maxLen int) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)

			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}

	return slug
}

// BranchPrefix maps an issue class name (feature, bug, chore, patch) to the
// short branch prefix.
func BranchPrefix(class string) string {
	switch strings.TrimPrefix(class, "/") {
	case "feature":
		return "feat"
	case "bug":
		return "bug"
	case "patch":
		return "patch"
	default:
		return "chore"
	}
}

// BranchName builds "<prefix>-issue-<n>-adw-<id>-<slug>". It is the
// deterministic fallback when the agent does not suggest a usable name.
func BranchName(class, issueNumber, adwID, title string) string {
	name := fmt.Sprintf("%s-issue-%s-adw-%s", BranchPrefix(class), issueNumber, adwID)
	if slug := Slugify(title, MaxSlugLength); slug != "" {
		name += "-" + slug
	}

	return name
}

// ValidBranchName reports whether name is safe to hand to git checkout -b.
func ValidBranchName(name string) bool {
	if name == "" || strings.HasPrefix(name, "-") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		if r <= ' ' || strings.ContainsRune("~^:?*[\\", r) || r == 0x7f {
			return false
		}
	}

	return true
}
