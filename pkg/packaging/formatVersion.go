package packaging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

var versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:[-.+_](.+))?`)

// FormatVersion formats the version for windows installers.
//
// Windows packages must confirm to W.X.Y.Z, so we convert our
// free-form versions to that. A trailing numeric build counter (eg:
// `1.2.3-44`) becomes Z, anything else becomes 0.
func FormatVersion(rawVersion string) (string, error) {
	// regex match and check the results
	matches := versionRegex.FindAllStringSubmatch(rawVersion, -1)

	if len(matches) == 0 {
		return "", errors.Errorf("Version %s did not match expected format", rawVersion)
	}

	if len(matches[0]) != 5 {
		return "", errors.Errorf("Something very wrong. Expected 5 subgroups got %d from string %s", len(matches[0]), rawVersion)
	}

	major := matches[0][1]
	minor := matches[0][2]
	patch := matches[0][3]
	commits := matches[0][4]

	// If things are "", they should be 0
	if minor == "" {
		minor = "0"
	}
	if patch == "" {
		patch = "0"
	}

	// Only keep the leading digits of the suffix. `44-g6146437`
	// becomes 44, `dev` becomes 0.
	commits = strings.TrimLeftFunc(commits, func(r rune) bool { return r < '0' || r > '9' })
	if i := strings.IndexFunc(commits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		commits = commits[:i]
	}
	if commits == "" {
		commits = "0"
	}

	return fmt.Sprintf("%s.%s.%s.%s", major, minor, patch, commits), nil
}

// MajorVersion returns the leading version component. It prefers a
// semver parse, and falls back to the text before the first dot, as
// conda versions are frequently not semver.
func MajorVersion(rawVersion string) string {
	if v, err := semver.NewVersion(rawVersion); err == nil {
		return strconv.FormatInt(v.Major(), 10)
	}
	return strings.SplitN(rawVersion, ".", 2)[0]
}

// MinorVersion returns `major.minor`, eg: `3.5` for `3.5.1`. Unlike
// a prefix slice, this is correct for `3.10`.
func MinorVersion(rawVersion string) string {
	if v, err := semver.NewVersion(rawVersion); err == nil {
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	parts := strings.SplitN(rawVersion, ".", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// VersionDigits returns the version with the dots removed, eg: `351`
// for `3.5.1`.
func VersionDigits(rawVersion string) string {
	return strings.Replace(rawVersion, ".", "", -1)
}
