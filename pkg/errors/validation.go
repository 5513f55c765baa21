package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// packageIDRegex matches reverse-domain package identifiers such as
// "com.unity.textmeshpro". Unity package names are lowercase.
var packageIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(\.[a-z0-9_-]+)+$`)

// ValidatePackageID validates a package identifier.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or path separators
//   - Maximum length of 214 characters (the registry limit)
//   - At least two dot-separated lowercase segments
func ValidatePackageID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPackage, "package id cannot be empty")
	}

	if len(id) > 214 {
		return New(ErrCodeInvalidPackage, "package id too long (max 214 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package id contains invalid control characters")
		}
	}

	if strings.ContainsAny(id, `/\`) {
		return New(ErrCodeInvalidPackage, "package id cannot contain path separators: %q", id)
	}

	if !packageIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPackage, "invalid package id: %q", id)
	}

	return nil
}

// ValidateAssetID validates a project-relative asset identifier.
//
// Validation rules:
//   - Asset id cannot be empty
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the project)
//   - No path traversal sequences (..)
//   - No backslashes (asset ids always use forward slashes)
func ValidateAssetID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPath, "asset id cannot be empty")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "asset id contains invalid characters")
		}
	}

	if strings.HasPrefix(id, "/") {
		return New(ErrCodeInvalidPath, "asset id must be relative (cannot start with /): %s", id)
	}

	for _, seg := range strings.Split(id, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "asset id cannot contain path traversal sequences (..): %s", id)
		}
	}

	if strings.Contains(id, `\`) {
		return New(ErrCodeInvalidPath, "asset id cannot contain backslashes: %s", id)
	}

	return nil
}
