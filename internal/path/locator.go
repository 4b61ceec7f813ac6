package path

import (
	"fmt"
	"regexp"
	"strings"
)

// Locator resolves a user-supplied name against a root bucket and optional
// data prefix, per the four rules of §4.A.
type Locator struct {
	Bucket string
	Prefix string
}

// WildcardRule substitutes a regex match with a replacement string before
// the name is classified. It is only applied when the caller opts in
// (tap and schema-probing paths).
type WildcardRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Resolve implements the four-rule resolution order of §4.A. When rule is
// non-nil and useWildcard is true, the substitution runs before
// classification.
func (l Locator) Resolve(name string, rule *WildcardRule, useWildcard bool) (string, error) {
	if useWildcard && rule != nil {
		name = rule.Pattern.ReplaceAllString(name, rule.Replacement)
	}

	// Rule 1: already an absolute remote path.
	if IsAbsoluteRemote(name) {
		return name, nil
	}

	// Rules 2-4 require a configured, absolute bucket.
	bucketPath, err := l.parsedBucket()
	if err != nil {
		return "", err
	}

	// Rule 3: absolute-local name is relative to root, prefix ignored.
	if strings.HasPrefix(name, "/") {
		joined, err := bucketPath.Join(strings.TrimPrefix(name, "/"))
		if err != nil {
			return "", err
		}
		return joined.String(), nil
	}

	// Rule 4: root/prefix/name, with a relative, non-traversing prefix.
	if l.Prefix != "" {
		if strings.HasPrefix(l.Prefix, "/") || IsAbsoluteRemote(l.Prefix) {
			return "", fmt.Errorf("ankaflow: locator prefix %q must be relative", l.Prefix)
		}
		if containsDotDot(l.Prefix) {
			return "", fmt.Errorf("ankaflow: locator prefix %q must not contain '..' segments", l.Prefix)
		}
		joined, err := bucketPath.Join(l.Prefix)
		if err != nil {
			return "", err
		}
		bucketPath = joined
	}

	joined, err := bucketPath.Join(name)
	if err != nil {
		return "", err
	}
	return joined.String(), nil
}

func (l Locator) parsedBucket() (Path, error) {
	if l.Bucket == "" {
		return Path{}, fmt.Errorf("ankaflow: locator has no configured bucket")
	}
	p, err := Parse(l.Bucket)
	if err != nil {
		return Path{}, err
	}
	if !p.IsAbsolute() {
		return Path{}, fmt.Errorf("ankaflow: locator bucket %q must be absolute", l.Bucket)
	}
	return p, nil
}

func containsDotDot(prefix string) bool {
	for _, part := range strings.Split(strings.Trim(prefix, "/"), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
