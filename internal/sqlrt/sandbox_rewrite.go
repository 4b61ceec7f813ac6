package sqlrt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ankaflow/ankaflow/internal/path"
)

// scratchFiles caches remote-URL -> local scratch-file path for the
// lifetime of the process, so repeated rewrites of the same remote object
// within a run reuse one materialized file instead of fetching and writing
// a fresh one each time.
var (
	scratchMu    sync.Mutex
	scratchFiles = map[string]string{}
)

// remoteReadFuncPattern matches read_parquet/read_csv/read_json calls whose
// first argument is a single quoted literal, per §4.C's sandboxed rewriter.
var remoteReadFuncPattern = regexp.MustCompile(`(read_parquet|read_csv|read_json)\(\s*(['"])([^'"]*)['"]`)

// Fetcher retrieves a remote object's bytes synchronously.
type Fetcher func(url string) ([]byte, error)

// RewriteForSandbox replaces read_parquet/read_csv/read_json('remote-url')
// calls with a local scratch-file path, materializing each referenced
// object via fetch. Remote globs and comma-separated multi-file lists are
// rejected, matching the source's single-object sandboxed read.
func RewriteForSandbox(sql string, fetch Fetcher) (string, error) {
	var rewriteErr error
	out := remoteReadFuncPattern.ReplaceAllStringFunc(sql, func(match string) string {
		if rewriteErr != nil {
			return match
		}
		sub := remoteReadFuncPattern.FindStringSubmatch(match)
		fn, quote, arg := sub[1], sub[2], sub[3]

		if !path.IsAbsoluteRemote(arg) {
			return match
		}
		if strings.ContainsAny(arg, "*?[") || strings.Contains(arg, ",") {
			rewriteErr = fmt.Errorf("ankaflow: %s(...) remote globs and multi-file lists are not supported in a sandboxed runtime: %q", fn, arg)
			return match
		}

		local, cached := cachedScratchFile(arg)
		if !cached {
			data, err := fetch(arg)
			if err != nil {
				rewriteErr = fmt.Errorf("ankaflow: materializing %q: %w", arg, err)
				return match
			}
			var writeErr error
			local, writeErr = writeScratchFile(arg, data)
			if writeErr != nil {
				rewriteErr = writeErr
				return match
			}
			scratchMu.Lock()
			scratchFiles[arg] = local
			scratchMu.Unlock()
		}
		return fmt.Sprintf("%s(%c%s%c", fn, quote[0], local, quote[0])
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return out, nil
}

// cachedScratchFile returns the scratch file already materialized for url,
// if one still exists on disk; ok=false means fetch and write a new one.
func cachedScratchFile(url string) (local string, ok bool) {
	scratchMu.Lock()
	local, found := scratchFiles[url]
	scratchMu.Unlock()
	if !found {
		return "", false
	}
	if _, err := os.Stat(local); err != nil {
		return "", false
	}
	return local, true
}

func writeScratchFile(remoteURL string, data []byte) (string, error) {
	p, err := path.Parse(remoteURL)
	if err != nil {
		return "", err
	}
	ext := p.Suffix()
	name := fmt.Sprintf("ankaflow-scratch-%s%s", path.Digest(remoteURL), ext)
	f, err := os.Create(filepath.Join(os.TempDir(), name))
	if err != nil {
		return "", fmt.Errorf("ankaflow: creating scratch file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("ankaflow: writing scratch file: %w", err)
	}
	return f.Name(), nil
}
