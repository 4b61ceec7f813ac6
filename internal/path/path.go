// Package path implements the scheme-aware path/locator model of spec §4.A:
// classification of local, s3, gs, http(s) and ftp identifiers, joining,
// endpoint synthesis, and the bucket/prefix Locator resolver used by every
// connector.
package path

import (
	"fmt"
	"strings"
)

// Scheme is one of the recognized path schemes.
type Scheme string

const (
	SchemeLocal Scheme = "local"
	SchemeS3    Scheme = "s3"
	SchemeGS    Scheme = "gs"
	SchemeHTTP  Scheme = "http"
	SchemeFTP   Scheme = "ftp"
)

// Path is a parsed, scheme-tagged path. Local paths have an empty Bucket;
// remote paths split into Bucket (the netloc) and Key (the path with any
// leading slash stripped).
type Path struct {
	Scheme Scheme
	Bucket string
	Key    string
}

// Parse classifies raw by its scheme prefix. Strings without a "scheme://"
// prefix are treated as local paths.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("ankaflow: empty path")
	}
	scheme, rest, hasScheme := splitScheme(raw)
	if !hasScheme {
		return Path{Scheme: SchemeLocal, Key: raw}, nil
	}
	switch scheme {
	case "s3":
		bucket, key := splitNetloc(rest)
		return Path{Scheme: SchemeS3, Bucket: bucket, Key: key}, nil
	case "gs", "gcs":
		bucket, key := splitNetloc(rest)
		return Path{Scheme: SchemeGS, Bucket: bucket, Key: key}, nil
	case "http", "https":
		bucket, key := splitNetloc(rest)
		return Path{Scheme: SchemeHTTP, Bucket: bucket, Key: key}, nil
	case "ftp", "ftps":
		bucket, key := splitNetloc(rest)
		return Path{Scheme: SchemeFTP, Bucket: bucket, Key: key}, nil
	case "file":
		return Path{Scheme: SchemeLocal, Key: strings.TrimPrefix(rest, "/")}, nil
	default:
		return Path{}, fmt.Errorf("ankaflow: unsupported path scheme %q", scheme)
	}
}

// IsAbsoluteRemote reports whether raw parses as an absolute remote path
// (i.e. contains a "scheme://" prefix).
func IsAbsoluteRemote(raw string) bool {
	_, _, has := splitScheme(raw)
	return has
}

// IsAbsolute reports whether the path is rooted: remote paths are always
// absolute; local paths are absolute if they start with "/".
func (p Path) IsAbsolute() bool {
	if p.Scheme != SchemeLocal {
		return true
	}
	return strings.HasPrefix(p.Key, "/")
}

// Anchor returns "scheme://bucket" for remote paths, or "" for local ones.
func (p Path) Anchor() string {
	if p.Scheme == SchemeLocal {
		return ""
	}
	return fmt.Sprintf("%s://%s", p.Scheme, p.Bucket)
}

// String renders the path back to its canonical form.
func (p Path) String() string {
	if p.Scheme == SchemeLocal {
		return p.Key
	}
	return fmt.Sprintf("%s/%s", p.Anchor(), strings.TrimPrefix(p.Key, "/"))
}

// Parts splits Key on "/".
func (p Path) Parts() []string {
	key := strings.Trim(p.Key, "/")
	if key == "" {
		return nil
	}
	return strings.Split(key, "/")
}

// Name is the final path segment.
func (p Path) Name() string {
	parts := p.Parts()
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Parent returns the path with its final segment removed.
func (p Path) Parent() Path {
	parts := p.Parts()
	if len(parts) <= 1 {
		cp := p
		cp.Key = ""
		return cp
	}
	cp := p
	cp.Key = strings.Join(parts[:len(parts)-1], "/")
	return cp
}

// Stem is Name without its final suffix.
func (p Path) Stem() string {
	name := p.Name()
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// Suffix is the final "."-delimited extension of Name, including the dot.
func (p Path) Suffix() string {
	name := p.Name()
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// Suffixes returns every "."-delimited extension, e.g. [".tar", ".gz"].
func (p Path) Suffixes() []string {
	name := p.Name()
	segments := strings.Split(name, ".")
	if len(segments) <= 1 {
		return nil
	}
	out := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		out = append(out, "."+seg)
	}
	return out
}

// IsGlob reports whether Key contains shell-glob metacharacters.
func (p Path) IsGlob() bool {
	return strings.ContainsAny(p.Key, "*?[")
}

// Join appends a relative segment to p. Joining with an absolute argument
// fails, matching the source's scheme-preserving join semantics.
func (p Path) Join(segment string) (Path, error) {
	if strings.HasPrefix(segment, "/") || IsAbsoluteRemote(segment) {
		return Path{}, fmt.Errorf("ankaflow: cannot join absolute path %q onto %q", segment, p.String())
	}
	cp := p
	if cp.Key == "" {
		cp.Key = segment
	} else {
		cp.Key = strings.TrimSuffix(cp.Key, "/") + "/" + segment
	}
	return cp, nil
}

// GetEndpoint synthesizes the provider's HTTPS endpoint for remote paths.
// S3 uses the bucket-virtual-host form when a region is given, and the
// global form otherwise; GS uses a region-specific endpoint when a region
// is given, and the global JSON API endpoint otherwise.
func (p Path) GetEndpoint(region string) (string, error) {
	switch p.Scheme {
	case SchemeS3:
		if region != "" {
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.Bucket, region, p.Key), nil
		}
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.Bucket, p.Key), nil
	case SchemeGS:
		if region != "" {
			return fmt.Sprintf("https://storage.%s.rep.googleapis.com/%s/%s", region, p.Bucket, p.Key), nil
		}
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", p.Bucket, p.Key), nil
	case SchemeHTTP, SchemeFTP:
		return p.String(), nil
	default:
		return "", fmt.Errorf("ankaflow: %s paths have no remote endpoint", p.Scheme)
	}
}

func splitScheme(raw string) (scheme, rest string, ok bool) {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return "", raw, false
	}
	return raw[:idx], raw[idx+3:], true
}

func splitNetloc(rest string) (bucket, key string) {
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return rest, ""
	}
	return rest[:idx], rest[idx+1:]
}
