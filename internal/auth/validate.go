package auth

import (
	"fmt"
	"regexp"
	"strings"
)

// Password length policy. The deny list below catches the handful of
// passwords that show up in every credential-stuffing wordlist.
const (
	minPasswordLength = 8
	maxPasswordLength = 100
)

// commonPasswords are rejected outright (case-insensitive exact match).
var commonPasswords = []string{"password", "12345678", "qwerty", "admin", "root"}

// githubRepoPattern matches https://github.com/<owner>/<repo> with an
// optional trailing slash. Nothing else -- no branches, no paths, no .git.
var githubRepoPattern = regexp.MustCompile(`^https://github\.com/[^/]+/[^/]+/?$`)

// xssChars is the minimal character set stripped by SanitizeString. This
// is a best-effort display sanitizer for short config strings, NOT a
// substitute for the content validation pipeline.
var xssChars = regexp.MustCompile(`[<>"'&]`)

// FieldValidation is the outcome of validating one input field. Errors
// accumulates every violation found, not just the first.
type FieldValidation struct {
	IsValid bool
	Errors  []string
}

// ValidatePassword checks structural password rules: present, within
// length bounds, and not on the common-password deny list. All applicable
// checks run; an empty password short-circuits since nothing else applies.
func ValidatePassword(password string) FieldValidation {
	var errs []string

	if password == "" {
		return FieldValidation{IsValid: false, Errors: []string{"Password is required"}}
	}

	// Length bounds are in characters, not bytes, so multibyte passwords
	// measure the way users count them.
	length := len([]rune(password))
	if length < minPasswordLength {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if length > maxPasswordLength {
		errs = append(errs, "Password must be less than 100 characters")
	}

	lower := strings.ToLower(password)
	for _, common := range commonPasswords {
		if lower == common {
			errs = append(errs, "Password is too common")
			break
		}
	}

	return FieldValidation{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateGitHubRepo checks that the URL names a GitHub repository root.
// Returns a single error message on failure.
func ValidateGitHubRepo(repoURL string) (bool, string) {
	if repoURL == "" {
		return false, "Repository URL is required"
	}
	if !githubRepoPattern.MatchString(repoURL) {
		return false, "Invalid GitHub repository URL format"
	}
	return true, ""
}

// ValidateFolders checks the list of repository folders to mirror. Each
// entry must be a non-empty name with no path traversal or separators; an
// empty list is itself invalid.
func ValidateFolders(folders []string) FieldValidation {
	var errs []string

	if len(folders) == 0 {
		return FieldValidation{IsValid: false, Errors: []string{"At least one folder is required"}}
	}

	for _, folder := range folders {
		if folder == "" {
			errs = append(errs, "Invalid folder name")
			continue
		}
		if strings.Contains(folder, "..") || strings.ContainsAny(folder, `/\`) {
			errs = append(errs, fmt.Sprintf("Invalid folder name: %s", folder))
		}
	}

	return FieldValidation{IsValid: len(errs) == 0, Errors: errs}
}

// SanitizeString trims, truncates to maxLength runes, and strips the basic
// XSS character set. Used on display strings (titles, slogans) before they
// are stored.
func SanitizeString(input string, maxLength int) string {
	if input == "" {
		return ""
	}

	s := strings.TrimSpace(input)
	if runes := []rune(s); len(runes) > maxLength {
		s = string(runes[:maxLength])
	}
	return xssChars.ReplaceAllString(s, "")
}
